package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PascalSV/shopping-list-pwa/internal/merge"
	"github.com/PascalSV/shopping-list-pwa/internal/store"
	"github.com/PascalSV/shopping-list-pwa/internal/types"
)

// executeStoreCmd executes a store subcommand against dbPath with captured
// output.
func executeStoreCmd(t *testing.T, dbPath string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	// Cobra parses into package-level variables; reset them so values from
	// previous tests do not leak.
	storeDBOverride = ""
	storeJSONOutput = false
	changeLogAfter = 0
	changeLogLimit = 100
	compactRetention = 720 * time.Hour
	snapshotOut = ""
	snapshotUpload = false

	fullArgs := append([]string{"store"}, args...)
	fullArgs = append(fullArgs, "--db", dbPath)

	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetArgs(fullArgs)

	err = rootCmd.Execute()

	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetArgs(nil)

	return outBuf.String(), errBuf.String(), err
}

// seedStore creates a server database with one list and two items, one of
// them deleted.
func seedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shoplist.db")

	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	_, err = merge.NewEngine(s, nil).Apply(context.Background(), "api-key/test", []types.SyncMutation{
		types.UpsertList(types.List{ID: "L1", Name: "Groceries", UpdatedAt: 1001}),
		types.UpsertItem(types.Item{ID: "I1", ListID: "L1", Label: "Milk", UpdatedAt: 1002}),
		types.UpsertItem(types.Item{ID: "I2", ListID: "L1", Label: "Eggs", UpdatedAt: 1003}),
		types.DeleteItem("I2", 1004),
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	return path
}

func TestStoreStats_Text(t *testing.T) {
	db := seedStore(t)

	stdout, _, err := executeStoreCmd(t, db, "stats")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"Lists:           1", "Items:           1", "Suggestions:     2", "Last compaction: -"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout = %q, want it to contain %q", stdout, want)
		}
	}
}

func TestStoreStats_JSON(t *testing.T) {
	db := seedStore(t)

	stdout, _, err := executeStoreCmd(t, db, "stats", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if result["item_count"] != float64(1) {
		t.Errorf("item_count = %v, want 1", result["item_count"])
	}
	if result["latest_sequence"] != float64(4) {
		t.Errorf("latest_sequence = %v, want 4", result["latest_sequence"])
	}
	if _, ok := result["meta"].(map[string]any); !ok {
		t.Errorf("meta missing from %s", stdout)
	}
}

func TestStoreChangeLog_Table(t *testing.T) {
	db := seedStore(t)

	stdout, _, err := executeStoreCmd(t, db, "changelog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want header + 4 entries:\n%s", len(lines), stdout)
	}
	if !strings.HasPrefix(lines[0], "SEQ") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[4], "delete") || !strings.Contains(lines[4], "api-key/test") {
		t.Errorf("last entry = %q, want a delete from api-key/test", lines[4])
	}
}

func TestStoreChangeLog_AfterAndLimit(t *testing.T) {
	db := seedStore(t)

	stdout, _, err := executeStoreCmd(t, db, "changelog", "--after", "1", "--limit", "2", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Entries []struct {
			Sequence int64  `json:"sequence"`
			EntityID string `json:"entity_id"`
		} `json:"entries"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("total = %d, want 2", result.Total)
	}
	if result.Entries[0].Sequence != 2 || result.Entries[0].EntityID != "I1" {
		t.Errorf("first entry = %+v, want sequence 2 for I1", result.Entries[0])
	}
}

func TestStoreChangeLog_Empty(t *testing.T) {
	db := seedStore(t)

	stdout, _, err := executeStoreCmd(t, db, "changelog", "--after", "100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "No change log entries.") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestStoreChangeLog_InvalidLimit(t *testing.T) {
	db := seedStore(t)

	_, _, err := executeStoreCmd(t, db, "changelog", "--limit", "0")
	if err == nil {
		t.Fatal("expected error for --limit 0")
	}
}

func TestStoreCompact_KeepsLatestPerEntity(t *testing.T) {
	db := seedStore(t)

	stdout, _, err := executeStoreCmd(t, db, "compact", "--retention", "0s", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	// I2 has an upsert and a delete; only the upsert goes.
	if result["removed"] != float64(1) {
		t.Errorf("removed = %v, want 1", result["removed"])
	}

	stdout, _, err = executeStoreCmd(t, db, "stats", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, `"last_compaction_removed": "1"`) {
		t.Errorf("stats = %s, want last_compaction_removed recorded", stdout)
	}
}

func TestStoreCompact_NegativeRetention(t *testing.T) {
	db := seedStore(t)

	_, _, err := executeStoreCmd(t, db, "compact", "--retention", "-1h")
	if err == nil {
		t.Fatal("expected error for negative retention")
	}
}

func TestStoreSnapshot_WritesFile(t *testing.T) {
	db := seedStore(t)
	out := filepath.Join(t.TempDir(), "snap", "current.db")

	stdout, _, err := executeStoreCmd(t, db, "snapshot", "--out", out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "Wrote snapshot "+out) {
		t.Errorf("stdout = %q", stdout)
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("snapshot is empty")
	}

	// The snapshot is a usable database.
	snap, err := store.NewSQLiteStore(out)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer snap.Close()
	stats, err := snap.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.ListCount != 1 {
		t.Errorf("snapshot ListCount = %d, want 1", stats.ListCount)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		got := formatSize(tt.bytes)
		if got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

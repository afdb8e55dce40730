package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/PascalSV/shopping-list-pwa/internal/store"
	shopsync "github.com/PascalSV/shopping-list-pwa/internal/sync"
	"github.com/PascalSV/shopping-list-pwa/internal/types"
)

// mockCompactionStore implements CompactionStore for testing.
type mockCompactionStore struct {
	mu         sync.Mutex
	calls      int
	lastCutoff time.Time
	removed    int64
	compactErr error
	meta       map[string]string
}

func (m *mockCompactionStore) CompactChangeLog(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastCutoff = cutoff
	return m.removed, m.compactErr
}

func (m *mockCompactionStore) SetSyncMeta(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.meta == nil {
		m.meta = make(map[string]string)
	}
	m.meta[key] = value
	return nil
}

func (m *mockCompactionStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestCompactionWorker_RunOnce_CutoffFromRetention(t *testing.T) {
	s := &mockCompactionStore{removed: 7}
	w := NewCompactionWorker(s, time.Hour, 48*time.Hour)
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	removed, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if removed != 7 {
		t.Errorf("removed = %d, want 7", removed)
	}
	if want := fixed.Add(-48 * time.Hour); !s.lastCutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", s.lastCutoff, want)
	}
	if s.meta[shopsync.SyncMetaLastCompactionAt] != "2026-03-10T12:00:00Z" {
		t.Errorf("last_compaction_at = %q", s.meta[shopsync.SyncMetaLastCompactionAt])
	}
	if s.meta[shopsync.SyncMetaLastCompactionRemoved] != "7" {
		t.Errorf("last_compaction_removed = %q, want 7", s.meta[shopsync.SyncMetaLastCompactionRemoved])
	}
}

func TestCompactionWorker_RunOnce_Error(t *testing.T) {
	s := &mockCompactionStore{compactErr: errors.New("database is locked")}
	w := NewCompactionWorker(s, time.Hour, time.Hour)

	if _, err := w.RunOnce(context.Background()); !errors.Is(err, s.compactErr) {
		t.Fatalf("RunOnce() error = %v, want %v", err, s.compactErr)
	}
	if len(s.meta) != 0 {
		t.Errorf("meta = %v, want nothing recorded on failure", s.meta)
	}
}

func TestCompactionWorker_WaitsForFirstTick(t *testing.T) {
	s := &mockCompactionStore{}
	w := NewCompactionWorker(s, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if s.Calls() != 0 {
		t.Errorf("CompactChangeLog calls = %d, want 0 before first interval", s.Calls())
	}
}

func TestCompactionWorker_RunsOnInterval(t *testing.T) {
	s := &mockCompactionStore{compactErr: errors.New("transient")}
	w := NewCompactionWorker(s, 20*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(110 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancellation")
	}

	// Keeps running after failures
	if s.Calls() < 2 {
		t.Errorf("CompactChangeLog calls = %d, want at least 2", s.Calls())
	}
}

func TestCompactionWorker_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(store.InMemory)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	old := time.Now().Add(-72 * time.Hour)
	entries := []shopsync.ChangeLogEntry{
		{TableName: types.TableItems, EntityID: "I1", Operation: types.OperationUpsert, UpdatedAt: 1, ReceivedAt: old},
		{TableName: types.TableItems, EntityID: "I1", Operation: types.OperationDelete, UpdatedAt: 2, ReceivedAt: old},
		{TableName: types.TableLists, EntityID: "L1", Operation: types.OperationUpsert, UpdatedAt: 3, ReceivedAt: old},
		{TableName: types.TableItems, EntityID: "I2", Operation: types.OperationUpsert, UpdatedAt: 4},
	}
	for i := range entries {
		err := s.WithRecordTx(ctx, func(tx store.RecordTx) error {
			_, err := tx.AppendChangeLog(ctx, &entries[i])
			return err
		})
		if err != nil {
			t.Fatalf("AppendChangeLog() error = %v", err)
		}
	}

	w := NewCompactionWorker(s, time.Hour, 24*time.Hour)
	removed, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1 (superseded I1 upsert)", removed)
	}

	got, err := s.GetSyncMeta(ctx, shopsync.SyncMetaLastCompactionRemoved)
	if err != nil {
		t.Fatalf("GetSyncMeta() error = %v", err)
	}
	if got != "1" {
		t.Errorf("last_compaction_removed = %q, want 1", got)
	}
}

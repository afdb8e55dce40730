package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/PascalSV/shopping-list-pwa/internal/config"
	"github.com/PascalSV/shopping-list-pwa/internal/store"
)

var (
	storeDBOverride string
	storeJSONOutput bool
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and maintain the server database",
	Long:  "Show statistics, read the change log, compact it and export snapshots without running the server.",
}

func init() {
	storeCmd.PersistentFlags().StringVar(&storeDBOverride, "db", "",
		"Database path (overrides config and SHOPLIST_DB_PATH)")
	storeCmd.PersistentFlags().BoolVar(&storeJSONOutput, "json", false,
		"Output in JSON format")

	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeChangeLogCmd)
	storeCmd.AddCommand(storeCompactCmd)
	storeCmd.AddCommand(storeSnapshotCmd)
}

// openServerStore opens the server database named by --db, or by the
// server configuration when the flag is absent.
func openServerStore() (*store.SQLiteStore, error) {
	path := storeDBOverride
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Database.Path
	}
	return store.NewSQLiteStore(path)
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	shopsync "github.com/PascalSV/shopping-list-pwa/internal/sync"
)

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts and maintenance history",
	Args:  cobra.NoArgs,
	RunE:  runStoreStats,
}

func runStoreStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := openServerStore()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.GetStats(ctx)
	if err != nil {
		return err
	}

	meta := make(map[string]string)
	for _, key := range []string{
		shopsync.SyncMetaLastCompactionAt,
		shopsync.SyncMetaLastCompactionRemoved,
		shopsync.SyncMetaLastSnapshotAt,
		shopsync.SyncMetaLastSnapshotPath,
	} {
		v, err := db.GetSyncMeta(ctx, key)
		if err != nil {
			return err
		}
		meta[key] = v
	}

	out := cmd.OutOrStdout()

	if storeJSONOutput {
		return printJSON(out, map[string]any{
			"list_count":       stats.ListCount,
			"item_count":       stats.ItemCount,
			"suggestion_count": stats.SuggestionCount,
			"latest_sequence":  stats.LatestSequence,
			"meta":             meta,
		})
	}

	fmt.Fprintf(out, "Lists:           %d\n", stats.ListCount)
	fmt.Fprintf(out, "Items:           %d\n", stats.ItemCount)
	fmt.Fprintf(out, "Suggestions:     %d\n", stats.SuggestionCount)
	fmt.Fprintf(out, "Latest sequence: %d\n", stats.LatestSequence)
	fmt.Fprintf(out, "Last compaction: %s\n", orDash(meta[shopsync.SyncMetaLastCompactionAt]))
	fmt.Fprintf(out, "Last snapshot:   %s\n", orDash(meta[shopsync.SyncMetaLastSnapshotAt]))

	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

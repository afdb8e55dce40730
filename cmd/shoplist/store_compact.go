package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PascalSV/shopping-list-pwa/internal/worker"
)

var compactRetention time.Duration

var storeCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Remove old change log entries",
	Long: "Delete change log entries older than the retention window, keeping the\n" +
		"latest entry for every list and item.",
	Args: cobra.NoArgs,
	RunE: runStoreCompact,
}

func init() {
	storeCompactCmd.Flags().DurationVar(&compactRetention, "retention", 720*time.Hour, "Keep entries newer than this")
}

func runStoreCompact(cmd *cobra.Command, args []string) error {
	if compactRetention < 0 {
		return errors.New("--retention must not be negative")
	}
	ctx := context.Background()

	db, err := openServerStore()
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := worker.NewCompactionWorker(db, 0, compactRetention).RunOnce(ctx)
	if err != nil {
		return err
	}

	if storeJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"removed":   removed,
			"retention": compactRetention.String(),
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d change log entries older than %s.\n", removed, compactRetention)
	return nil
}

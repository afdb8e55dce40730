package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	changeLogAfter int64
	changeLogLimit int
)

var storeChangeLogCmd = &cobra.Command{
	Use:   "changelog",
	Short: "Print accepted mutations in sequence order",
	Args:  cobra.NoArgs,
	RunE:  runStoreChangeLog,
}

func init() {
	storeChangeLogCmd.Flags().Int64Var(&changeLogAfter, "after", 0, "Only entries with a sequence greater than this")
	storeChangeLogCmd.Flags().IntVar(&changeLogLimit, "limit", 100, "Maximum number of entries")
}

func runStoreChangeLog(cmd *cobra.Command, args []string) error {
	if changeLogLimit <= 0 {
		return errors.New("--limit must be positive")
	}
	ctx := context.Background()

	db, err := openServerStore()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.GetChangeLogAfter(ctx, changeLogAfter, changeLogLimit)
	if err != nil {
		return err
	}

	if storeJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"entries": entries,
			"total":   len(entries),
		})
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No change log entries.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "SEQ\tTABLE\tENTITY\tOP\tSOURCE\tUPDATED_AT\tRECEIVED")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.Sequence,
			e.TableName,
			e.EntityID,
			e.Operation,
			e.SourceID,
			e.UpdatedAt,
			e.ReceivedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	return nil
}

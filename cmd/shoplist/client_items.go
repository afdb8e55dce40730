package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PascalSV/shopping-list-pwa/pkg/shoplist"
)

var (
	itemRemark   string
	itemListRef  string
	suggestLimit int
)

var clientItemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Show the items of the selected list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, selectList, printItems)
	},
}

var clientAddItemCmd = &cobra.Command{
	Use:   "add-item <label>",
	Short: "Add an item to the selected list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
			state, err := selectList(ctx, c, state)
			if err != nil {
				return state, err
			}
			return c.AddItem(ctx, state, args[0], itemRemark)
		}, printItems)
	},
}

var clientToggleCmd = &cobra.Command{
	Use:   "toggle <item>",
	Short: "Check an item off, or reopen it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
			it, err := findItem(state, args[0])
			if err != nil {
				return state, err
			}
			return c.ToggleItem(ctx, state, it.ID)
		}, printItems)
	},
}

var clientEditItemCmd = &cobra.Command{
	Use:   "edit-item <item> <label>",
	Short: "Change an item's label and remark",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
			it, err := findItem(state, args[0])
			if err != nil {
				return state, err
			}
			remark := it.Remark
			if cmd.Flags().Changed("remark") {
				remark = itemRemark
			}
			return c.EditItem(ctx, state, it.ID, args[1], remark)
		}, printItems)
	},
}

var clientDeleteItemCmd = &cobra.Command{
	Use:   "delete-item <item>",
	Short: "Delete an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
			it, err := findItem(state, args[0])
			if err != nil {
				return state, err
			}
			return c.DeleteItem(ctx, state, it.ID)
		}, printItems)
	},
}

var clientSuggestCmd = &cobra.Command{
	Use:   "suggest <query>",
	Short: "Show known labels matching a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, unchanged, func(cmd *cobra.Command, state shoplist.AppState) error {
			matches := shoplist.Suggest(state, args[0])
			if suggestLimit > 0 && len(matches) > suggestLimit {
				matches = matches[:suggestLimit]
			}

			if clientJSONOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"query":       args[0],
					"suggestions": matches,
				})
			}

			if len(matches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No suggestions.")
				return nil
			}
			w := newTabWriter(cmd.OutOrStdout())
			fmt.Fprintln(w, "LABEL\tCOUNT\tON LIST")
			for _, m := range matches {
				onList := ""
				if m.OnList {
					onList = "yes"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", m.DisplayLabel, m.Count, onList)
			}
			w.Flush()
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{clientItemsCmd, clientAddItemCmd} {
		cmd.Flags().StringVar(&itemListRef, "list", "", "List id or name (default: selected list)")
	}
	clientAddItemCmd.Flags().StringVar(&itemRemark, "remark", "", "Free-text remark")
	clientEditItemCmd.Flags().StringVar(&itemRemark, "remark", "", "Free-text remark (default: keep)")
	clientSuggestCmd.Flags().IntVar(&suggestLimit, "limit", 0, "Maximum number of suggestions")
}

// selectList switches to --list when given.
func selectList(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
	if itemListRef == "" {
		return state, nil
	}
	l, err := findList(state, itemListRef)
	if err != nil {
		return state, err
	}
	return c.SwitchList(ctx, state, l.ID)
}

func printItems(cmd *cobra.Command, state shoplist.AppState) error {
	items := state.CurrentItems()
	list, _ := state.CurrentList()

	if clientJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"list":  list,
			"items": items,
			"total": len(items),
		})
	}

	out := cmd.OutOrStdout()
	if list.ID == "" {
		fmt.Fprintln(out, "No list selected.")
		return nil
	}
	fmt.Fprintf(out, "%s\n", list.Name)
	if len(items) == 0 {
		fmt.Fprintln(out, "No items.")
		return nil
	}

	w := newTabWriter(out)
	for _, it := range items {
		box := "[ ]"
		if it.Done {
			box = "[x]"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", box, it.Label, it.Remark, it.ID)
	}
	w.Flush()
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PascalSV/shopping-list-pwa/pkg/shoplist"
)

var clientListsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Show all lists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, unchanged, printLists)
	},
}

var clientAddListCmd = &cobra.Command{
	Use:   "add-list <name>",
	Short: "Create a list and switch to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
			return c.AddList(ctx, state, args[0])
		}, printLists)
	},
}

var clientEditListCmd = &cobra.Command{
	Use:   "edit-list <list> <name>",
	Short: "Rename a list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
			l, err := findList(state, args[0])
			if err != nil {
				return state, err
			}
			return c.EditList(ctx, state, l.ID, args[1])
		}, printLists)
	},
}

var clientDeleteListCmd = &cobra.Command{
	Use:   "delete-list <list>",
	Short: "Delete a list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
			l, err := findList(state, args[0])
			if err != nil {
				return state, err
			}
			return c.DeleteList(ctx, state, l.ID)
		}, printLists)
	},
}

var clientFavoriteCmd = &cobra.Command{
	Use:   "favorite <list>",
	Short: "Toggle the favorite mark of a list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
			l, err := findList(state, args[0])
			if err != nil {
				return state, err
			}
			return c.ToggleFavorite(ctx, state, l.ID)
		}, printLists)
	},
}

var clientSwitchCmd = &cobra.Command{
	Use:   "switch <list>",
	Short: "Select the list that item commands work on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
			l, err := findList(state, args[0])
			if err != nil {
				return state, err
			}
			return c.SwitchList(ctx, state, l.ID)
		}, printItems)
	},
}

func unchanged(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
	return state, nil
}

func printLists(cmd *cobra.Command, state shoplist.AppState) error {
	if clientJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"lists":   state.Lists,
			"current": state.CurrentListID,
			"total":   len(state.Lists),
		})
	}

	if len(state.Lists) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No lists.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "\tID\tNAME\tFAVORITE")
	for _, l := range state.Lists {
		marker := ""
		if l.ID == state.CurrentListID {
			marker = "*"
		}
		fav := ""
		if l.IsFavorite {
			fav = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, l.ID, l.Name, fav)
	}
	w.Flush()
	return nil
}

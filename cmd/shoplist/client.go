package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PascalSV/shopping-list-pwa/internal/config"
	"github.com/PascalSV/shopping-list-pwa/internal/credential"
	"github.com/PascalSV/shopping-list-pwa/pkg/shoplist"
)

var (
	clientConfigPath string
	clientJSONOutput bool
	clientOffline    bool
	clientVerbose    bool
)

// openCredentials opens the token store. Tests swap in an in-memory keyring.
var openCredentials = credential.Open

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Use a shopping list from the command line",
	Long: "Edit lists and items against a local replica. Every edit is stored\n" +
		"locally first and pushed to the server when it is reachable.",
}

func init() {
	clientCmd.PersistentFlags().StringVar(&clientConfigPath, "config", "",
		"Client config file (default: ~/.config/shoplist/client.yaml)")
	clientCmd.PersistentFlags().BoolVar(&clientJSONOutput, "json", false,
		"Output in JSON format")
	clientCmd.PersistentFlags().BoolVar(&clientOffline, "offline", false,
		"Do not contact the server")
	clientCmd.PersistentFlags().BoolVarP(&clientVerbose, "verbose", "v", false,
		"Log sync activity to stderr")

	clientCmd.AddCommand(clientLoginCmd)
	clientCmd.AddCommand(clientBootstrapCmd)
	clientCmd.AddCommand(clientSyncCmd)
	clientCmd.AddCommand(clientStatusCmd)
	clientCmd.AddCommand(clientListsCmd)
	clientCmd.AddCommand(clientAddListCmd)
	clientCmd.AddCommand(clientEditListCmd)
	clientCmd.AddCommand(clientDeleteListCmd)
	clientCmd.AddCommand(clientFavoriteCmd)
	clientCmd.AddCommand(clientSwitchCmd)
	clientCmd.AddCommand(clientItemsCmd)
	clientCmd.AddCommand(clientAddItemCmd)
	clientCmd.AddCommand(clientToggleCmd)
	clientCmd.AddCommand(clientEditItemCmd)
	clientCmd.AddCommand(clientDeleteItemCmd)
	clientCmd.AddCommand(clientSuggestCmd)
}

// resolveToken prefers a configured token and falls back to the keyring.
func resolveToken(cfg *config.ClientConfig) (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}
	creds, err := openCredentials()
	if err != nil {
		return "", err
	}
	token, err := creds.Token(cfg.ServerURL)
	if errors.Is(err, credential.ErrNotFound) {
		return "", nil
	}
	return token, err
}

// openClient loads the client config, starts a client and returns its
// initial state. The caller must Shutdown the client.
func openClient(cmd *cobra.Command) (*shoplist.Client, shoplist.AppState, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadClient(clientConfigPath)
	if err != nil {
		return nil, shoplist.AppState{}, err
	}

	offline := cfg.Offline || clientOffline
	token := ""
	if !offline {
		if token, err = resolveToken(cfg); err != nil {
			return nil, shoplist.AppState{}, err
		}
	}

	level := slog.LevelWarn
	if clientVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	c, err := shoplist.New(shoplist.Config{
		LocalPath:      cfg.LocalPath,
		ServerURL:      cfg.ServerURL,
		Token:          token,
		ClientID:       cfg.ClientID,
		SyncInterval:   cfg.SyncInterval,
		ProbeInterval:  cfg.ProbeInterval,
		RequestTimeout: cfg.RequestTimeout,
		OfflineMode:    offline,
		Logger:         logger,
	})
	if err != nil {
		return nil, shoplist.AppState{}, err
	}

	state, err := c.Initialize(ctx)
	if err != nil {
		c.Shutdown(ctx)
		return nil, shoplist.AppState{}, err
	}
	return c, state, nil
}

// withClient runs fn against a started client and prints the state it
// returns with print.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error), print func(cmd *cobra.Command, state shoplist.AppState) error) error {
	c, state, err := openClient(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defer c.Shutdown(ctx)

	state, err = fn(ctx, c, state)
	if err != nil {
		return err
	}
	return print(cmd, state)
}

// findList resolves ref as a list id, or else as a unique case-insensitive
// list name.
func findList(state shoplist.AppState, ref string) (shoplist.List, error) {
	var match []shoplist.List
	for _, l := range state.Lists {
		if l.ID == ref {
			return l, nil
		}
		if strings.EqualFold(l.Name, strings.TrimSpace(ref)) {
			match = append(match, l)
		}
	}
	switch len(match) {
	case 0:
		return shoplist.List{}, fmt.Errorf("%w: %s", shoplist.ErrListNotFound, ref)
	case 1:
		return match[0], nil
	default:
		return shoplist.List{}, fmt.Errorf("%q names %d lists, use the id", ref, len(match))
	}
}

// findItem resolves ref as an item id, or else as a label on the selected
// list. Labels are unique per list.
func findItem(state shoplist.AppState, ref string) (shoplist.Item, error) {
	for _, it := range state.Items {
		if it.ID == ref {
			return it, nil
		}
	}
	for _, it := range state.CurrentItems() {
		if strings.EqualFold(it.Label, strings.TrimSpace(ref)) {
			return it, nil
		}
	}
	return shoplist.Item{}, fmt.Errorf("%w: %s", shoplist.ErrItemNotFound, ref)
}

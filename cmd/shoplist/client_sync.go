package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PascalSV/shopping-list-pwa/internal/config"
	"github.com/PascalSV/shopping-list-pwa/pkg/shoplist"
)

var (
	loginServer string
	loginToken  string
	loginLocal  string
)

var clientLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save the server address and store its token in the keyring",
	Long: "Write the client config and keep the bearer token in the OS keyring.\n" +
		"Pass --token - to read the token from stdin.",
	Args: cobra.NoArgs,
	RunE: runClientLogin,
}

var clientBootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Fetch the full state from the server",
	Args:  cobra.NoArgs,
	RunE:  runClientBootstrap,
}

var clientSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push queued edits and pull remote changes",
	Args:  cobra.NoArgs,
	RunE:  runClientSync,
}

var clientStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, queue length and cursor",
	Args:  cobra.NoArgs,
	RunE:  runClientStatus,
}

func init() {
	clientLoginCmd.Flags().StringVar(&loginServer, "server", "", "Server base URL (required)")
	clientLoginCmd.Flags().StringVar(&loginToken, "token", "", "Bearer token, or - for stdin (required)")
	clientLoginCmd.Flags().StringVar(&loginLocal, "local-path", "", "Local replica path")
	clientLoginCmd.MarkFlagRequired("server")
	clientLoginCmd.MarkFlagRequired("token")
}

func runClientLogin(cmd *cobra.Command, args []string) error {
	token := loginToken
	if token == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		token = string(data)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token must not be empty")
	}

	cfg, err := config.LoadClient(clientConfigPath)
	if err != nil {
		return err
	}
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(loginServer), "/")
	if loginLocal != "" {
		cfg.LocalPath = loginLocal
	}
	cfg.Token = ""

	creds, err := openCredentials()
	if err != nil {
		return err
	}
	if err := creds.SetToken(cfg.ServerURL, token); err != nil {
		return err
	}
	if err := config.SaveClient(clientConfigPath, cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s\n", cfg.ServerURL)
	return nil
}

func runClientBootstrap(cmd *cobra.Command, args []string) error {
	// Initialize bootstraps.
	return withClient(cmd, func(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
		if !state.Online {
			return state, fmt.Errorf("%w: server unreachable", shoplist.ErrSyncFailed)
		}
		return state, nil
	}, printStatus)
}

func runClientSync(cmd *cobra.Command, args []string) error {
	var stats *shoplist.SyncStats
	return withClient(cmd, func(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
		var err error
		if stats, err = c.SyncNow(ctx); err != nil {
			return state, err
		}
		return c.State(ctx)
	}, func(cmd *cobra.Command, state shoplist.AppState) error {
		if clientJSONOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"pushed":      stats.Pushed,
				"lists":       stats.Lists,
				"items":       stats.Items,
				"cursor":      stats.Cursor,
				"duration_ms": stats.Duration.Milliseconds(),
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d, received %d lists and %d items (cursor %d)\n",
			stats.Pushed, stats.Lists, stats.Items, stats.Cursor)
		return nil
	})
}

func runClientStatus(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *shoplist.Client, state shoplist.AppState) (shoplist.AppState, error) {
		return state, nil
	}, printStatus)
}

func printStatus(cmd *cobra.Command, state shoplist.AppState) error {
	current := ""
	if l, ok := state.CurrentList(); ok {
		current = l.Name
	}

	if clientJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"online":       state.Online,
			"pending":      state.Pending,
			"cursor":       state.Cursor,
			"lists":        len(state.Lists),
			"items":        len(state.Items),
			"suggestions":  len(state.Suggestions),
			"current_list": current,
		})
	}

	out := cmd.OutOrStdout()
	online := "offline"
	if state.Online {
		online = "online"
	}
	fmt.Fprintf(out, "Server:       %s\n", online)
	fmt.Fprintf(out, "Pending:      %d\n", state.Pending)
	fmt.Fprintf(out, "Cursor:       %d\n", state.Cursor)
	fmt.Fprintf(out, "Lists:        %d\n", len(state.Lists))
	fmt.Fprintf(out, "Items:        %d\n", len(state.Items))
	fmt.Fprintf(out, "Current list: %s\n", orDash(current))
	return nil
}

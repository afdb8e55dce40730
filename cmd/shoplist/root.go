package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/PascalSV/shopping-list-pwa/internal/api"
	"github.com/PascalSV/shopping-list-pwa/internal/config"
	"github.com/PascalSV/shopping-list-pwa/internal/merge"
	"github.com/PascalSV/shopping-list-pwa/internal/snapshot"
	"github.com/PascalSV/shopping-list-pwa/internal/store"
	"github.com/PascalSV/shopping-list-pwa/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:          "shoplist",
	Short:        "shoplist - shopping list sync server",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(clientCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	logger := newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	// 4. Initialize store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Initialize snapshot storage
	uploader, err := snapshot.NewUploader(cfg.Snapshot)
	if err != nil {
		db.Close()
		return err
	}
	snapshotPath := filepath.Join(cfg.Snapshot.Dir, snapshot.FileName)
	slog.Info("snapshot storage initialized", "dir", cfg.Snapshot.Dir, "bucket", cfg.Snapshot.Bucket)

	// 6. Initialize HTTP router
	handler := api.NewHandler(db, merge.NewEngine(db, logger), uploader, api.Options{
		Version:         Version,
		MaxMutations:    cfg.Sync.MaxMutations,
		SuggestionLimit: cfg.Sync.SuggestionLimit,
		MaxBodyBytes:    cfg.Sync.MaxBodyBytes,
		SnapshotPath:    snapshotPath,
	})
	router := api.NewRouter(handler, api.Authenticator{
		APIKey:    cfg.Auth.APIKey,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
	})
	slog.Info("router initialized")

	// 7. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 8. Background workers
	var wg sync.WaitGroup
	if interval := time.Duration(cfg.Worker.CompactionInterval); interval > 0 {
		compactor := worker.NewCompactionWorker(db, interval, time.Duration(cfg.Worker.ChangeLogRetention))
		startWorker(ctx, &wg, "compaction", compactor.Run)
	}
	if interval := time.Duration(cfg.Worker.SnapshotInterval); interval > 0 {
		snapshotter := worker.NewSnapshotGenerationWorker(db, uploader, snapshotPath, interval)
		startWorker(ctx, &wg, "snapshot-generation", snapshotter.Run)
	}

	// 9. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 10. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 11. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 11a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 11b. Wait for workers to complete
	wg.Wait()

	// 11c. Close store
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// newLogger builds the process logger from the log settings. Any format
// other than "text" logs JSON.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}

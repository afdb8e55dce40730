package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PascalSV/shopping-list-pwa/internal/snapshot"
	shopsync "github.com/PascalSV/shopping-list-pwa/internal/sync"
)

// SnapshotStore defines the store operations needed by the snapshot worker.
type SnapshotStore interface {
	GenerateSnapshot(ctx context.Context, path string) error
	SetSyncMeta(ctx context.Context, key, value string) error
}

// SnapshotGenerationWorker writes a consistent copy of the database to path
// and, when a bucket is configured, uploads it.
type SnapshotGenerationWorker struct {
	store    SnapshotStore
	uploader snapshot.Uploader
	path     string
	interval time.Duration
}

// NewSnapshotGenerationWorker creates a worker. A nil uploader keeps
// snapshots local.
func NewSnapshotGenerationWorker(store SnapshotStore, uploader snapshot.Uploader, path string, interval time.Duration) *SnapshotGenerationWorker {
	if uploader == nil {
		uploader = &snapshot.NoopUploader{}
	}
	return &SnapshotGenerationWorker{
		store:    store,
		uploader: uploader,
		path:     path,
		interval: interval,
	}
}

// Run starts the worker loop. Generates snapshot immediately on start,
// then on each interval. Respects context cancellation for graceful shutdown.
func (w *SnapshotGenerationWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "snapshot-generation",
		"interval", w.interval.String(),
		"path", w.path,
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.generateSnapshot(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "snapshot-generation",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.generateSnapshot(ctx)
		}
	}
}

// RunOnce generates the snapshot, uploads it and records when it happened.
// An upload failure leaves the local snapshot in place.
func (w *SnapshotGenerationWorker) RunOnce(ctx context.Context) error {
	if err := w.store.GenerateSnapshot(ctx, w.path); err != nil {
		return fmt.Errorf("generate snapshot: %w", err)
	}
	if err := w.uploader.Upload(ctx, w.path); err != nil {
		return err
	}

	if err := w.store.SetSyncMeta(ctx, shopsync.SyncMetaLastSnapshotAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.store.SetSyncMeta(ctx, shopsync.SyncMetaLastSnapshotPath, w.path)
}

// generateSnapshot runs one cycle and logs any errors.
func (w *SnapshotGenerationWorker) generateSnapshot(ctx context.Context) {
	start := time.Now()
	slog.Info("snapshot generation started",
		"component", "worker",
		"action", "snapshot_start",
	)

	if err := w.RunOnce(ctx); err != nil {
		// Check if it's a context cancellation (graceful shutdown)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("snapshot generation failed",
			"component", "worker",
			"action", "snapshot_failed",
			"error", err,
		)
		return
	}

	slog.Info("snapshot generation completed",
		"component", "worker",
		"action", "snapshot_complete",
		"path", w.path,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

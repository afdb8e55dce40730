package worker

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	shopsync "github.com/PascalSV/shopping-list-pwa/internal/sync"
)

// CompactionStore defines operations required for change_log compaction.
// Implemented by SQLiteStore.
type CompactionStore interface {
	// CompactChangeLog removes entries received before cutoff, keeping the
	// latest entry per entity. Returns the number removed.
	CompactChangeLog(ctx context.Context, cutoff time.Time) (int64, error)
	SetSyncMeta(ctx context.Context, key, value string) error
}

// CompactionWorker periodically trims the change log.
type CompactionWorker struct {
	store     CompactionStore
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewCompactionWorker creates a compaction worker.
func NewCompactionWorker(store CompactionStore, interval, retention time.Duration) *CompactionWorker {
	return &CompactionWorker{
		store:     store,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
//
// Waits for the first ticker interval before compacting so startup is not
// slowed by a full change_log scan.
func (c *CompactionWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "compaction",
		"interval", c.interval.String(),
		"retention", c.retention.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "compaction",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.compact(ctx)
		}
	}
}

// RunOnce compacts entries older than the retention window and records the
// outcome in sync_meta.
func (c *CompactionWorker) RunOnce(ctx context.Context) (int64, error) {
	now := c.now().UTC()
	removed, err := c.store.CompactChangeLog(ctx, now.Add(-c.retention))
	if err != nil {
		return 0, err
	}

	if err := c.store.SetSyncMeta(ctx, shopsync.SyncMetaLastCompactionAt, now.Format(time.RFC3339)); err != nil {
		return removed, err
	}
	if err := c.store.SetSyncMeta(ctx, shopsync.SyncMetaLastCompactionRemoved, strconv.FormatInt(removed, 10)); err != nil {
		return removed, err
	}
	return removed, nil
}

func (c *CompactionWorker) compact(ctx context.Context) {
	start := time.Now()
	removed, err := c.RunOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("compaction failed",
			"component", "worker",
			"worker", "compaction",
			"error", err,
		)
		return
	}

	slog.Info("compaction completed",
		"component", "worker",
		"worker", "compaction",
		"entries_deleted", removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

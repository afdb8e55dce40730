package store

import (
	"context"
	"time"

	shopsync "github.com/PascalSV/shopping-list-pwa/internal/sync"
	"github.com/PascalSV/shopping-list-pwa/internal/types"
)

// Query filters list and item reads. Since is inclusive: records with
// updatedAt >= Since are returned.
type Query struct {
	Since          int64
	IncludeDeleted bool
}

// Version is the stored state the merge rule compares an incoming write against.
type Version struct {
	UpdatedAt int64
	IsDeleted bool
}

// Store defines the interface contract for the authoritative entity store.
type Store interface {
	ListLists(ctx context.Context, q Query) ([]types.List, error)
	ListItems(ctx context.Context, q Query) ([]types.Item, error)
	ListSuggestions(ctx context.Context, limit int) ([]types.Suggestion, error)
	WithRecordTx(ctx context.Context, fn func(tx RecordTx) error) error
	GetStats(ctx context.Context) (*types.StoreStats, error)
	GetChangeLogAfter(ctx context.Context, afterSeq int64, limit int) ([]shopsync.ChangeLogEntry, error)
	CompactChangeLog(ctx context.Context, cutoff time.Time) (int64, error)
	GetSyncMeta(ctx context.Context, key string) (string, error)
	SetSyncMeta(ctx context.Context, key, value string) error
	GenerateSnapshot(ctx context.Context, path string) error
	Close() error
}

// RecordTx is the set of primitives available inside one mutation's
// transaction. Every call sees the writes made earlier in the same tx.
type RecordTx interface {
	ListVersion(ctx context.Context, id string) (Version, bool, error)
	ItemVersion(ctx context.Context, id string) (Version, bool, error)
	PutList(ctx context.Context, list types.List) error
	PutItem(ctx context.Context, item types.Item) error
	TombstoneList(ctx context.Context, id string, updatedAt int64) error
	TombstoneItem(ctx context.Context, id string, updatedAt int64) error
	IncrementSuggestion(ctx context.Context, label, displayLabel string, updatedAt int64) error
	AppendChangeLog(ctx context.Context, entry *shopsync.ChangeLogEntry) (int64, error)
}

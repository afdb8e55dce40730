// Package sync holds the change-log record shared by the server store and the
// background workers that maintain it.
package sync

import (
	"encoding/json"
	"time"
)

// ChangeLogEntry records one accepted mutation. UpdatedAt is the logical
// timestamp carried by the mutation; ReceivedAt is the server wall clock.
type ChangeLogEntry struct {
	Sequence   int64           `json:"sequence"`
	TableName  string          `json:"table_name"`
	EntityID   string          `json:"entity_id"`
	Operation  string          `json:"operation"` // "upsert" or "delete"
	Payload    json.RawMessage `json:"payload,omitempty"`
	SourceID   string          `json:"source_id"`
	UpdatedAt  int64           `json:"updated_at"`
	ReceivedAt time.Time       `json:"received_at"`
}

// SyncMeta keys
const (
	SyncMetaLastCompactionAt      = "last_compaction_at"
	SyncMetaLastCompactionRemoved = "last_compaction_removed"
	SyncMetaLastSnapshotAt        = "last_snapshot_at"
	SyncMetaLastSnapshotPath      = "last_snapshot_path"
)

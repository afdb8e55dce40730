// Package merge applies client mutations to the authoritative store using
// last-write-wins on each record's updatedAt.
package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PascalSV/shopping-list-pwa/internal/store"
	shopsync "github.com/PascalSV/shopping-list-pwa/internal/sync"
	"github.com/PascalSV/shopping-list-pwa/internal/types"
)

// Outcome is the fate of a single mutation.
type Outcome int

const (
	// Applied means the mutation replaced or tombstoned the stored record.
	Applied Outcome = iota
	// Stale means a stored record carried a strictly newer updatedAt.
	Stale
	// Ignored means a delete named a record the store has never seen.
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Stale:
		return "stale"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Result summarizes one batch.
type Result struct {
	Applied           int `json:"applied"`
	Stale             int `json:"stale"`
	Ignored           int `json:"ignored"`
	SuggestionsBumped int `json:"suggestions_bumped"`
}

// Engine applies mutation batches. It holds no state between calls and is
// safe for concurrent use; per-record ordering is resolved in the store.
type Engine struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates an Engine over s. A nil logger uses slog.Default().
func NewEngine(s store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, logger: logger, now: time.Now}
}

// Apply runs each mutation in order, each in its own record transaction.
// Stale writes are counted, never returned as errors. On a storage error
// Apply stops and returns the partial result; already-applied mutations
// stay applied and a retry of the whole batch is safe.
func (e *Engine) Apply(ctx context.Context, sourceID string, mutations []types.SyncMutation) (*Result, error) {
	res := &Result{}

	for i, m := range mutations {
		var (
			outcome Outcome
			bumped  bool
		)
		err := e.store.WithRecordTx(ctx, func(tx store.RecordTx) error {
			var err error
			outcome, bumped, err = e.applyOne(ctx, tx, sourceID, m)
			return err
		})
		if err != nil {
			e.logger.Error("mutation apply failed",
				"component", "merge",
				"action", "apply",
				"source_id", sourceID,
				"index", i,
				"type", string(m.Type),
				"entity_id", m.EntityID(),
				"error", err,
			)
			return res, fmt.Errorf("apply mutation %d (%s %s): %w", i, m.Type, m.EntityID(), err)
		}

		switch outcome {
		case Applied:
			res.Applied++
		case Stale:
			res.Stale++
			e.logger.Debug("stale mutation discarded",
				"component", "merge",
				"action", "discard",
				"source_id", sourceID,
				"type", string(m.Type),
				"entity_id", m.EntityID(),
				"updated_at", m.Timestamp(),
			)
		case Ignored:
			res.Ignored++
		}
		if bumped {
			res.SuggestionsBumped++
		}
	}

	return res, nil
}

// applyOne decides and writes a single mutation inside tx.
func (e *Engine) applyOne(ctx context.Context, tx store.RecordTx, sourceID string, m types.SyncMutation) (Outcome, bool, error) {
	switch m.Type {
	case types.MutationUpsertItem:
		return e.upsertItem(ctx, tx, sourceID, *m.Item)
	case types.MutationUpsertList:
		return e.upsertList(ctx, tx, sourceID, *m.List)
	case types.MutationDeleteItem:
		return e.deleteRecord(ctx, tx, sourceID, m, tx.ItemVersion, tx.TombstoneItem)
	case types.MutationDeleteList:
		return e.deleteRecord(ctx, tx, sourceID, m, tx.ListVersion, tx.TombstoneList)
	default:
		return 0, false, fmt.Errorf("unknown mutation type %q", m.Type)
	}
}

func (e *Engine) upsertItem(ctx context.Context, tx store.RecordTx, sourceID string, item types.Item) (Outcome, bool, error) {
	cur, found, err := tx.ItemVersion(ctx, item.ID)
	if err != nil {
		return 0, false, err
	}
	if found && cur.UpdatedAt > item.UpdatedAt {
		return Stale, false, nil
	}

	// Only a new appearance of the item counts towards its label.
	appearing := (!found || cur.IsDeleted) && !item.IsDeleted

	if err := tx.PutItem(ctx, item); err != nil {
		return 0, false, err
	}

	bumped := false
	if appearing {
		if key := types.NormalizeLabel(item.Label); key != "" {
			display := strings.TrimSpace(item.Label)
			if err := tx.IncrementSuggestion(ctx, key, display, item.UpdatedAt); err != nil {
				return 0, false, err
			}
			bumped = true
		}
	}

	if err := e.log(ctx, tx, sourceID, types.MutationUpsertItem, item.ID, item.UpdatedAt, item); err != nil {
		return 0, false, err
	}
	return Applied, bumped, nil
}

func (e *Engine) upsertList(ctx context.Context, tx store.RecordTx, sourceID string, list types.List) (Outcome, bool, error) {
	cur, found, err := tx.ListVersion(ctx, list.ID)
	if err != nil {
		return 0, false, err
	}
	if found && cur.UpdatedAt > list.UpdatedAt {
		return Stale, false, nil
	}

	if err := tx.PutList(ctx, list); err != nil {
		return 0, false, err
	}
	if err := e.log(ctx, tx, sourceID, types.MutationUpsertList, list.ID, list.UpdatedAt, list); err != nil {
		return 0, false, err
	}
	return Applied, false, nil
}

type versionFunc func(ctx context.Context, id string) (store.Version, bool, error)
type tombstoneFunc func(ctx context.Context, id string, updatedAt int64) error

func (e *Engine) deleteRecord(ctx context.Context, tx store.RecordTx, sourceID string, m types.SyncMutation, version versionFunc, tombstone tombstoneFunc) (Outcome, bool, error) {
	cur, found, err := version(ctx, m.ID)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return Ignored, false, nil
	}
	if cur.UpdatedAt > m.UpdatedAt {
		return Stale, false, nil
	}

	if err := tombstone(ctx, m.ID, m.UpdatedAt); err != nil {
		return 0, false, err
	}
	if err := e.log(ctx, tx, sourceID, m.Type, m.ID, m.UpdatedAt, nil); err != nil {
		return 0, false, err
	}
	return Applied, false, nil
}

// log appends the accepted mutation to the change log in the same tx.
func (e *Engine) log(ctx context.Context, tx store.RecordTx, sourceID string, typ types.MutationType, id string, updatedAt int64, record any) error {
	var payload json.RawMessage
	if record != nil {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal change log payload: %w", err)
		}
		payload = data
	}

	_, err := tx.AppendChangeLog(ctx, &shopsync.ChangeLogEntry{
		TableName:  typ.Table(),
		EntityID:   id,
		Operation:  typ.Operation(),
		Payload:    payload,
		SourceID:   sourceID,
		UpdatedAt:  updatedAt,
		ReceivedAt: e.now(),
	})
	return err
}

package shoplist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/PascalSV/shopping-list-pwa/internal/types"
)

// PendingMutation is a queued mutation and its position in the queue.
type PendingMutation struct {
	Seq      int64
	Mutation types.SyncMutation
	QueuedAt time.Time
}

// Queue is the FIFO log of local mutations not yet acknowledged by the
// server. Entries are removed only by Drain after a successful sync.
type Queue struct {
	store *LocalStore
}

type pendingRow struct {
	Seq      int64  `db:"seq"`
	Type     string `db:"type"`
	EntityID string `db:"entity_id"`
	Payload  string `db:"payload"`
	QueuedAt int64  `db:"queued_at"`
}

func (r pendingRow) decode() (PendingMutation, error) {
	var m types.SyncMutation
	if err := json.Unmarshal([]byte(r.Payload), &m); err != nil {
		return PendingMutation{}, fmt.Errorf("decode pending mutation %d: %w", r.Seq, err)
	}
	return PendingMutation{Seq: r.Seq, Mutation: m, QueuedAt: time.UnixMilli(r.QueuedAt)}, nil
}

// Enqueue appends m without touching the entity tables.
// Returns the queue sequence number.
func (q *Queue) Enqueue(ctx context.Context, m types.SyncMutation) (int64, error) {
	var seq int64
	err := q.store.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		seq, err = enqueue(ctx, tx, m)
		return err
	})
	return seq, err
}

// Pending returns every queued mutation in FIFO order.
func (q *Queue) Pending(ctx context.Context) ([]PendingMutation, error) {
	if err := q.store.ready(); err != nil {
		return nil, err
	}
	var rows []pendingRow
	if err := q.store.db.SelectContext(ctx, &rows,
		`SELECT seq, type, entity_id, payload, queued_at FROM pending ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	return decodeRows(rows)
}

// Drain removes and returns entries with seq <= through. Entries queued
// after a sync request was built survive to the next sync.
func (q *Queue) Drain(ctx context.Context, through int64) ([]PendingMutation, error) {
	var drained []PendingMutation
	err := q.store.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		drained, err = drain(ctx, tx, through)
		return err
	})
	return drained, err
}

// Len returns the number of queued mutations.
func (q *Queue) Len(ctx context.Context) (int, error) {
	if err := q.store.ready(); err != nil {
		return 0, err
	}
	var n int
	if err := q.store.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM pending`); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

func enqueue(ctx context.Context, tx *sqlx.Tx, m types.SyncMutation) (int64, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("encode mutation: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO pending (type, entity_id, payload, queued_at) VALUES (?, ?, ?, ?)`,
		string(m.Type), m.EntityID(), string(payload), time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("enqueue mutation: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue mutation: %w", err)
	}
	return seq, nil
}

func drain(ctx context.Context, tx *sqlx.Tx, through int64) ([]PendingMutation, error) {
	var rows []pendingRow
	if err := tx.SelectContext(ctx, &rows,
		`SELECT seq, type, entity_id, payload, queued_at FROM pending WHERE seq <= ? ORDER BY seq`, through); err != nil {
		return nil, fmt.Errorf("select drained: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending WHERE seq <= ?`, through); err != nil {
		return nil, fmt.Errorf("drain pending: %w", err)
	}
	return decodeRows(rows)
}

func decodeRows(rows []pendingRow) ([]PendingMutation, error) {
	out := make([]PendingMutation, 0, len(rows))
	for _, r := range rows {
		pm, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, pm)
	}
	return out, nil
}

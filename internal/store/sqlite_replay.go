package store

import (
	"context"
	"database/sql"
	"fmt"

	shopsync "github.com/PascalSV/shopping-list-pwa/internal/sync"
	"github.com/PascalSV/shopping-list-pwa/internal/types"
)

// execContext is satisfied by both *sql.DB and *sql.Tx.
type execContext interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithRecordTx runs fn inside a single write transaction. The transaction
// commits when fn returns nil and rolls back otherwise. Record transactions
// are serialized across the process.
func (s *SQLiteStore) WithRecordTx(ctx context.Context, fn func(tx RecordTx) error) error {
	if err := s.ready(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteRecordTx{execer: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sqliteRecordTx implements RecordTx over any execContext.
type sqliteRecordTx struct {
	execer execContext
}

func (t *sqliteRecordTx) ListVersion(ctx context.Context, id string) (Version, bool, error) {
	return t.version(ctx, `SELECT updated_at, is_deleted FROM lists WHERE id = ?`, id)
}

func (t *sqliteRecordTx) ItemVersion(ctx context.Context, id string) (Version, bool, error) {
	return t.version(ctx, `SELECT updated_at, is_deleted FROM items WHERE id = ?`, id)
}

func (t *sqliteRecordTx) version(ctx context.Context, query, id string) (Version, bool, error) {
	var v Version
	err := t.execer.QueryRowContext(ctx, query, id).Scan(&v.UpdatedAt, &v.IsDeleted)
	if isNoRows(err) {
		return Version{}, false, nil
	}
	if err != nil {
		return Version{}, false, fmt.Errorf("read version of %s: %w", id, err)
	}
	return v, true, nil
}

// PutList replaces every column of the list row.
func (t *sqliteRecordTx) PutList(ctx context.Context, l types.List) error {
	_, err := t.execer.ExecContext(ctx, `
		INSERT INTO lists (id, name, updated_at, is_deleted, is_favorite)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at,
			is_deleted = excluded.is_deleted,
			is_favorite = excluded.is_favorite
	`, l.ID, l.Name, l.UpdatedAt, l.IsDeleted, l.IsFavorite)
	if err != nil {
		return fmt.Errorf("put list %s: %w", l.ID, err)
	}
	return nil
}

// PutItem replaces every column of the item row.
func (t *sqliteRecordTx) PutItem(ctx context.Context, it types.Item) error {
	_, err := t.execer.ExecContext(ctx, `
		INSERT INTO items (id, list_id, label, remark, done, updated_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			list_id = excluded.list_id,
			label = excluded.label,
			remark = excluded.remark,
			done = excluded.done,
			updated_at = excluded.updated_at,
			is_deleted = excluded.is_deleted
	`, it.ID, it.ListID, it.Label, it.Remark, it.Done, it.UpdatedAt, it.IsDeleted)
	if err != nil {
		return fmt.Errorf("put item %s: %w", it.ID, err)
	}
	return nil
}

// TombstoneList marks a list deleted. Missing lists are left alone.
func (t *sqliteRecordTx) TombstoneList(ctx context.Context, id string, updatedAt int64) error {
	_, err := t.execer.ExecContext(ctx,
		`UPDATE lists SET is_deleted = 1, updated_at = ? WHERE id = ?`, updatedAt, id)
	if err != nil {
		return fmt.Errorf("tombstone list %s: %w", id, err)
	}
	return nil
}

// TombstoneItem marks an item deleted. Missing items are left alone.
func (t *sqliteRecordTx) TombstoneItem(ctx context.Context, id string, updatedAt int64) error {
	_, err := t.execer.ExecContext(ctx,
		`UPDATE items SET is_deleted = 1, updated_at = ? WHERE id = ?`, updatedAt, id)
	if err != nil {
		return fmt.Errorf("tombstone item %s: %w", id, err)
	}
	return nil
}

// IncrementSuggestion adds one use of label, creating the counter at 1.
// The display label follows the most recent use.
func (t *sqliteRecordTx) IncrementSuggestion(ctx context.Context, label, displayLabel string, updatedAt int64) error {
	_, err := t.execer.ExecContext(ctx, `
		INSERT INTO suggestions (label, display_label, count, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(label) DO UPDATE SET
			count = count + 1,
			display_label = excluded.display_label,
			updated_at = excluded.updated_at
	`, label, displayLabel, updatedAt)
	if err != nil {
		return fmt.Errorf("increment suggestion %q: %w", label, err)
	}
	return nil
}

// AppendChangeLog appends entry within the transaction and returns its sequence.
func (t *sqliteRecordTx) AppendChangeLog(ctx context.Context, entry *shopsync.ChangeLogEntry) (int64, error) {
	return appendChangeLog(ctx, t.execer, entry)
}

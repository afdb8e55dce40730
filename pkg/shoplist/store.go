package shoplist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/PascalSV/shopping-list-pwa/internal/store"
	"github.com/PascalSV/shopping-list-pwa/internal/types"
	"github.com/PascalSV/shopping-list-pwa/migrations"
)

// Keys in the local meta table.
const (
	metaCursor         = "cursor"
	metaLastViewedList = "last_viewed_list"
	metaClientID       = "client_id"
)

// LocalStore is the client's offline replica: lists, items, suggestions,
// the mutation queue and a few scalar settings.
type LocalStore struct {
	db     *sqlx.DB
	closed atomic.Bool
}

// Row types mirror the public records field for field so they convert
// directly; only the column tags differ.
type listRow struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	UpdatedAt  int64  `db:"updated_at"`
	IsDeleted  bool   `db:"is_deleted"`
	IsFavorite bool   `db:"is_favorite"`
}

type itemRow struct {
	ID        string `db:"id"`
	ListID    string `db:"list_id"`
	Label     string `db:"label"`
	Remark    string `db:"remark"`
	Done      bool   `db:"done"`
	UpdatedAt int64  `db:"updated_at"`
	IsDeleted bool   `db:"is_deleted"`
}

type suggestionRow struct {
	Label        string `db:"label"`
	DisplayLabel string `db:"display_label"`
	Count        int64  `db:"count"`
}

// OpenLocalStore opens (creating if needed) the replica at path and applies
// the client migrations. Use store.InMemory for a throwaway replica.
func OpenLocalStore(ctx context.Context, path string) (*LocalStore, error) {
	dsn := path
	if path != store.InMemory {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create local store directory: %w", err)
			}
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if path == store.InMemory {
		db.SetMaxOpenConns(1)
	}

	if err := store.RunMigrations(ctx, db.DB, migrations.Client()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}

	return &LocalStore{db: db}, nil
}

// Close closes the database. Later calls fail with ErrStoreNotInitialized.
func (s *LocalStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *LocalStore) ready() error {
	if s.closed.Load() {
		return ErrStoreNotInitialized
	}
	return nil
}

// withTx runs fn in a transaction, committing when fn returns nil.
func (s *LocalStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Lists returns every local list, tombstones included.
func (s *LocalStore) Lists(ctx context.Context) ([]types.List, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []listRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, updated_at, is_deleted, is_favorite FROM lists ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("select lists: %w", err)
	}
	lists := make([]types.List, 0, len(rows))
	for _, r := range rows {
		lists = append(lists, types.List(r))
	}
	return lists, nil
}

// Items returns every local item, tombstones included.
func (s *LocalStore) Items(ctx context.Context) ([]types.Item, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, list_id, label, remark, done, updated_at, is_deleted FROM items ORDER BY updated_at DESC, id`); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	items := make([]types.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, types.Item(r))
	}
	return items, nil
}

// Suggestions returns the local suggestion table, most used first.
func (s *LocalStore) Suggestions(ctx context.Context) ([]types.Suggestion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []suggestionRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT label, display_label, count FROM suggestions ORDER BY count DESC, label`); err != nil {
		return nil, fmt.Errorf("select suggestions: %w", err)
	}
	out := make([]types.Suggestion, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.Suggestion(r))
	}
	return out, nil
}

// List returns the list with id, tombstoned or not.
func (s *LocalStore) List(ctx context.Context, id string) (types.List, error) {
	if err := s.ready(); err != nil {
		return types.List{}, err
	}
	var r listRow
	err := s.db.GetContext(ctx, &r,
		`SELECT id, name, updated_at, is_deleted, is_favorite FROM lists WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return types.List{}, ErrListNotFound
	}
	if err != nil {
		return types.List{}, fmt.Errorf("get list %s: %w", id, err)
	}
	return types.List(r), nil
}

// Item returns the item with id, tombstoned or not.
func (s *LocalStore) Item(ctx context.Context, id string) (types.Item, error) {
	if err := s.ready(); err != nil {
		return types.Item{}, err
	}
	var r itemRow
	err := s.db.GetContext(ctx, &r,
		`SELECT id, list_id, label, remark, done, updated_at, is_deleted FROM items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Item{}, ErrItemNotFound
	}
	if err != nil {
		return types.Item{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return types.Item(r), nil
}

// SaveLists upserts lists by id, replacing every field.
func (s *LocalStore) SaveLists(ctx context.Context, lists []types.List) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return saveLists(ctx, tx, lists)
	})
}

// SaveItems upserts items by id, replacing every field.
func (s *LocalStore) SaveItems(ctx context.Context, items []types.Item) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return saveItems(ctx, tx, items)
	})
}

// ReplaceSuggestions swaps the whole suggestion table for suggestions.
func (s *LocalStore) ReplaceSuggestions(ctx context.Context, suggestions []types.Suggestion) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return replaceSuggestions(ctx, tx, suggestions)
	})
}

// ReplaceAll overwrites lists, items and suggestions with resp and stores its
// cursor. Used for bootstrap when nothing is queued locally.
func (s *LocalStore) ReplaceAll(ctx context.Context, resp *types.SyncResponse) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := clearRecords(ctx, tx); err != nil {
			return err
		}
		return applyResponse(ctx, tx, resp)
	})
}

// Rebase replaces lists and items with the live set in resp and re-applies
// every queued mutation on top. Used for bootstrap while edits are queued:
// bootstrap omits tombstones, so records deleted elsewhere must be dropped
// here or no later sync would ever report them.
func (s *LocalStore) Rebase(ctx context.Context, resp *types.SyncResponse) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := clearRecords(ctx, tx); err != nil {
			return err
		}
		if err := applyResponse(ctx, tx, resp); err != nil {
			return err
		}
		return replayPending(ctx, tx)
	})
}

// MergeResponse upserts every list and item in resp, replaces suggestions,
// stores the cursor and drains queue entries up to and including through,
// all in one transaction. Mutations still queued afterwards are re-applied
// on top so local edits made while the request was in flight stay visible.
func (s *LocalStore) MergeResponse(ctx context.Context, resp *types.SyncResponse, through int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := applyResponse(ctx, tx, resp); err != nil {
			return err
		}
		if through > 0 {
			if _, err := drain(ctx, tx, through); err != nil {
				return err
			}
		}
		return replayPending(ctx, tx)
	})
}

// Record applies m to the local tables and enqueues it in one transaction.
// Returns the queue sequence number.
func (s *LocalStore) Record(ctx context.Context, m types.SyncMutation) (int64, error) {
	var seq int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := applyMutation(ctx, tx, m); err != nil {
			return err
		}
		var err error
		seq, err = enqueue(ctx, tx, m)
		return err
	})
	return seq, err
}

// Cursor returns the cursor of the last successful sync, or 0.
func (s *LocalStore) Cursor(ctx context.Context) (int64, error) {
	v, err := s.meta(ctx, metaCursor)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cursor %q: %w", v, err)
	}
	return n, nil
}

// SetCursor stores the cursor.
func (s *LocalStore) SetCursor(ctx context.Context, cursor int64) error {
	return s.setMeta(ctx, metaCursor, strconv.FormatInt(cursor, 10))
}

// LastViewedList returns the id of the list last switched to, or "".
func (s *LocalStore) LastViewedList(ctx context.Context) (string, error) {
	return s.meta(ctx, metaLastViewedList)
}

// SetLastViewedList stores the list to restore on next start.
func (s *LocalStore) SetLastViewedList(ctx context.Context, listID string) error {
	return s.setMeta(ctx, metaLastViewedList, listID)
}

// ClientID returns the install's client id, storing newID() on first use.
func (s *LocalStore) ClientID(ctx context.Context, newID func() string) (string, error) {
	id, err := s.meta(ctx, metaClientID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id = newID()
	if err := s.setMeta(ctx, metaClientID, id); err != nil {
		return "", err
	}
	return id, nil
}

// Queue returns the mutation queue backed by this store.
func (s *LocalStore) Queue() *Queue {
	return &Queue{store: s}
}

func (s *LocalStore) meta(ctx context.Context, key string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	var v string
	err := s.db.GetContext(ctx, &v, `SELECT value FROM meta WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", key, err)
	}
	return v, nil
}

func (s *LocalStore) setMeta(ctx context.Context, key, value string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return setMeta(ctx, s.db, key, value)
}

func setMeta(ctx context.Context, ex sqlx.ExecerContext, key, value string) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

func saveLists(ctx context.Context, tx *sqlx.Tx, lists []types.List) error {
	for _, l := range lists {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO lists (id, name, updated_at, is_deleted, is_favorite)
			VALUES (:id, :name, :updated_at, :is_deleted, :is_favorite)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				updated_at = excluded.updated_at,
				is_deleted = excluded.is_deleted,
				is_favorite = excluded.is_favorite`,
			listRow(l))
		if err != nil {
			return fmt.Errorf("save list %s: %w", l.ID, err)
		}
	}
	return nil
}

func saveItems(ctx context.Context, tx *sqlx.Tx, items []types.Item) error {
	for _, it := range items {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO items (id, list_id, label, remark, done, updated_at, is_deleted)
			VALUES (:id, :list_id, :label, :remark, :done, :updated_at, :is_deleted)
			ON CONFLICT(id) DO UPDATE SET
				list_id = excluded.list_id,
				label = excluded.label,
				remark = excluded.remark,
				done = excluded.done,
				updated_at = excluded.updated_at,
				is_deleted = excluded.is_deleted`,
			itemRow(it))
		if err != nil {
			return fmt.Errorf("save item %s: %w", it.ID, err)
		}
	}
	return nil
}

func replaceSuggestions(ctx context.Context, tx *sqlx.Tx, suggestions []types.Suggestion) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM suggestions`); err != nil {
		return fmt.Errorf("clear suggestions: %w", err)
	}
	for _, sg := range suggestions {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO suggestions (label, display_label, count)
			VALUES (:label, :display_label, :count)`,
			suggestionRow(sg))
		if err != nil {
			return fmt.Errorf("save suggestion %s: %w", sg.Label, err)
		}
	}
	return nil
}

func clearRecords(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM lists`); err != nil {
		return fmt.Errorf("clear lists: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	return nil
}

// replayPending re-applies every queued mutation in seq order.
func replayPending(ctx context.Context, tx *sqlx.Tx) error {
	var rows []pendingRow
	if err := tx.SelectContext(ctx, &rows,
		`SELECT seq, type, entity_id, payload, queued_at FROM pending ORDER BY seq`); err != nil {
		return fmt.Errorf("select pending: %w", err)
	}
	pending, err := decodeRows(rows)
	if err != nil {
		return err
	}
	for _, pm := range pending {
		if err := applyMutation(ctx, tx, pm.Mutation); err != nil {
			return err
		}
	}
	return nil
}

func applyResponse(ctx context.Context, tx *sqlx.Tx, resp *types.SyncResponse) error {
	if err := saveLists(ctx, tx, resp.Lists); err != nil {
		return err
	}
	if err := saveItems(ctx, tx, resp.Items); err != nil {
		return err
	}
	if err := replaceSuggestions(ctx, tx, resp.Suggestions); err != nil {
		return err
	}
	return setMeta(ctx, tx, metaCursor, strconv.FormatInt(resp.Cursor, 10))
}

// applyMutation writes m to the local tables the way the server would if it
// accepted it.
func applyMutation(ctx context.Context, tx *sqlx.Tx, m types.SyncMutation) error {
	switch {
	case m.Type == types.MutationUpsertList && m.List != nil:
		return saveLists(ctx, tx, []types.List{*m.List})
	case m.Type == types.MutationUpsertItem && m.Item != nil:
		return saveItems(ctx, tx, []types.Item{*m.Item})
	case m.Type == types.MutationDeleteList:
		if _, err := tx.ExecContext(ctx,
			`UPDATE lists SET is_deleted = 1, updated_at = ? WHERE id = ?`, m.UpdatedAt, m.ID); err != nil {
			return fmt.Errorf("tombstone list %s: %w", m.ID, err)
		}
		return nil
	case m.Type == types.MutationDeleteItem:
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET is_deleted = 1, updated_at = ? WHERE id = ?`, m.UpdatedAt, m.ID); err != nil {
			return fmt.Errorf("tombstone item %s: %w", m.ID, err)
		}
		return nil
	default:
		return fmt.Errorf("apply mutation: unsupported %q", m.Type)
	}
}

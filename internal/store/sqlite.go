package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PascalSV/shopping-list-pwa/internal/types"
	"github.com/PascalSV/shopping-list-pwa/migrations"
	_ "modernc.org/sqlite"
)

// InMemory opens a private in-memory database, used by tests and dev mode.
const InMemory = ":memory:"

// SQLiteStore is the SQLite-backed authoritative entity store.
type SQLiteStore struct {
	db *sql.DB

	// writeMu serializes record transactions so a version check and the
	// write that depends on it never interleave with another writer.
	writeMu sync.Mutex
	closed  atomic.Bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath, applies
// pragmas, and runs the embedded server migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != InMemory {
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each connection to :memory: is a separate database.
	if dbPath == InMemory {
		db.SetMaxOpenConns(1)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(context.Background(), db, migrations.Server()); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newSQLiteStoreFromDB wraps an already-open handle without migrating it.
func newSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// dsn attaches per-connection pragmas so every pooled connection gets them,
// not only the one enablePragmas happens to run on.
func dsn(dbPath string) string {
	if dbPath == InMemory {
		return dbPath
	}
	params := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=foreign_keys(1)",
		"_pragma=synchronous(NORMAL)",
		"_txlock=immediate",
	}
	return dbPath + "?" + strings.Join(params, "&")
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection. Later calls fail with ErrNotInitialized.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) ready() error {
	if s.closed.Load() {
		return ErrNotInitialized
	}
	return nil
}

// ListLists returns lists with updated_at >= q.Since, newest first.
func (s *SQLiteStore) ListLists(ctx context.Context, q Query) ([]types.List, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, updated_at, is_deleted, is_favorite
		FROM lists
		WHERE updated_at >= ?`
	if !q.IncludeDeleted {
		query += ` AND is_deleted = 0`
	}
	query += ` ORDER BY updated_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, q.Since)
	if err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	defer rows.Close()

	lists := make([]types.List, 0)
	for rows.Next() {
		var l types.List
		if err := rows.Scan(&l.ID, &l.Name, &l.UpdatedAt, &l.IsDeleted, &l.IsFavorite); err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lists: %w", err)
	}
	return lists, nil
}

// ListItems returns items with updated_at >= q.Since, newest first.
func (s *SQLiteStore) ListItems(ctx context.Context, q Query) ([]types.Item, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, list_id, label, remark, done, updated_at, is_deleted
		FROM items
		WHERE updated_at >= ?`
	if !q.IncludeDeleted {
		query += ` AND is_deleted = 0`
	}
	query += ` ORDER BY updated_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, q.Since)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := make([]types.Item, 0)
	for rows.Next() {
		var it types.Item
		if err := rows.Scan(&it.ID, &it.ListID, &it.Label, &it.Remark, &it.Done, &it.UpdatedAt, &it.IsDeleted); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// ListSuggestions returns the most used labels, highest count first.
// A non-positive limit returns every suggestion.
func (s *SQLiteStore) ListSuggestions(ctx context.Context, limit int) ([]types.Suggestion, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT label, display_label, count
		FROM suggestions
		ORDER BY count DESC, label ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := make([]types.Suggestion, 0)
	for rows.Next() {
		var sg types.Suggestion
		if err := rows.Scan(&sg.Label, &sg.DisplayLabel, &sg.Count); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		suggestions = append(suggestions, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return suggestions, nil
}

// GetStats returns aggregate store statistics over live records.
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var stats types.StoreStats
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM lists WHERE is_deleted = 0),
			(SELECT COUNT(*) FROM items WHERE is_deleted = 0),
			(SELECT COUNT(*) FROM suggestions),
			(SELECT MAX(sequence) FROM change_log)
	`).Scan(&stats.ListCount, &stats.ItemCount, &stats.SuggestionCount, &seq)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	if seq.Valid {
		stats.LatestSequence = seq.Int64
	}
	return &stats, nil
}

// isNoRows reports whether err means the queried row does not exist.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

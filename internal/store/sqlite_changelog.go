package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	shopsync "github.com/PascalSV/shopping-list-pwa/internal/sync"
)

// receivedAtLayout is fixed-width so stored values sort chronologically as text.
const receivedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

const insertChangeLogSQL = `
	INSERT INTO change_log (table_name, entity_id, operation, payload, source_id, updated_at, received_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

// changeLogArgs returns the SQL arguments for inserting a ChangeLogEntry.
func changeLogArgs(e *shopsync.ChangeLogEntry) []any {
	receivedAt := e.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return []any{
		e.TableName, e.EntityID, e.Operation,
		nullablePayload(e.Payload), e.SourceID, e.UpdatedAt,
		receivedAt.UTC().Format(receivedAtLayout),
	}
}

func appendChangeLog(ctx context.Context, execer execContext, entry *shopsync.ChangeLogEntry) (int64, error) {
	result, err := execer.ExecContext(ctx, insertChangeLogSQL, changeLogArgs(entry)...)
	if err != nil {
		return 0, fmt.Errorf("append change log: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	entry.Sequence = seq
	return seq, nil
}

// GetChangeLogAfter returns entries with sequence > afterSeq, up to limit.
func (s *SQLiteStore) GetChangeLogAfter(ctx context.Context, afterSeq int64, limit int) ([]shopsync.ChangeLogEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, table_name, entity_id, operation, payload, source_id, updated_at, received_at
		FROM change_log
		WHERE sequence > ?
		ORDER BY sequence ASC
		LIMIT ?
	`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query change log: %w", err)
	}
	defer rows.Close()

	entries := make([]shopsync.ChangeLogEntry, 0)
	for rows.Next() {
		var e shopsync.ChangeLogEntry
		var payload sql.NullString
		var receivedAt string

		if err := rows.Scan(&e.Sequence, &e.TableName, &e.EntityID, &e.Operation,
			&payload, &e.SourceID, &e.UpdatedAt, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan change log entry: %w", err)
		}

		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		var parseErr error
		if e.ReceivedAt, parseErr = time.Parse(receivedAtLayout, receivedAt); parseErr != nil {
			slog.Warn("change_log: failed to parse received_at", "value", receivedAt, "error", parseErr)
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetLatestSequence returns the highest sequence number in the change log.
// Returns 0 if the change log is empty.
func (s *SQLiteStore) GetLatestSequence(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM change_log`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get latest sequence: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// CompactChangeLog removes entries received before cutoff, keeping the newest
// entry for each entity so the log still names every record ever written.
// Returns the number of entries removed.
func (s *SQLiteStore) CompactChangeLog(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM change_log
		WHERE received_at < ?
		  AND sequence NOT IN (
			SELECT MAX(sequence) FROM change_log GROUP BY table_name, entity_id
		  )
	`, cutoff.UTC().Format(receivedAtLayout))
	if err != nil {
		return 0, fmt.Errorf("compact change log: %w", err)
	}
	return result.RowsAffected()
}

// GetSyncMeta retrieves a sync metadata value by key.
func (s *SQLiteStore) GetSyncMeta(ctx context.Context, key string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}

	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM sync_meta WHERE key = ?
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sync meta key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get sync meta: %w", err)
	}
	return value, nil
}

// SetSyncMeta sets a sync metadata value.
func (s *SQLiteStore) SetSyncMeta(ctx context.Context, key, value string) error {
	if err := s.ready(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_meta (key, value) VALUES (?, ?)
	`, key, value)
	if err != nil {
		return fmt.Errorf("set sync meta: %w", err)
	}
	return nil
}

// nullablePayload converts a json.RawMessage to a sql-friendly value.
// Returns nil for empty payloads, string otherwise.
func nullablePayload(p json.RawMessage) any {
	if len(p) == 0 {
		return nil
	}
	return string(p)
}

package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return newSQLiteStoreFromDB(db), mock
}

func TestStore_ReadErrorsAreWrapped(t *testing.T) {
	diskErr := errors.New("disk I/O error")

	tests := []struct {
		name    string
		pattern string
		call    func(s *SQLiteStore) error
		prefix  string
	}{
		{
			name:    "lists",
			pattern: "SELECT id, name, updated_at",
			call: func(s *SQLiteStore) error {
				_, err := s.ListLists(context.Background(), Query{})
				return err
			},
			prefix: "query lists",
		},
		{
			name:    "items",
			pattern: "SELECT id, list_id, label",
			call: func(s *SQLiteStore) error {
				_, err := s.ListItems(context.Background(), Query{})
				return err
			},
			prefix: "query items",
		},
		{
			name:    "suggestions",
			pattern: "SELECT label, display_label, count",
			call: func(s *SQLiteStore) error {
				_, err := s.ListSuggestions(context.Background(), 50)
				return err
			},
			prefix: "query suggestions",
		},
		{
			name:    "stats",
			pattern: "SELECT",
			call: func(s *SQLiteStore) error {
				_, err := s.GetStats(context.Background())
				return err
			},
			prefix: "get stats",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectQuery(tt.pattern).WillReturnError(diskErr)

			err := tt.call(s)

			if !errors.Is(err, diskErr) {
				t.Fatalf("error = %v, want wrapped disk error", err)
			}
			if !strings.HasPrefix(err.Error(), tt.prefix) {
				t.Errorf("error = %q, want prefix %q", err.Error(), tt.prefix)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestStore_ListLists_IterationError(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "name", "updated_at", "is_deleted", "is_favorite"}).
		AddRow("L1", "Groceries", 1000, false, false).
		RowError(0, errors.New("corrupt page"))
	mock.ExpectQuery("SELECT id, name").WillReturnRows(rows)

	_, err := s.ListLists(context.Background(), Query{})

	if err == nil || !strings.Contains(err.Error(), "corrupt page") {
		t.Errorf("error = %v, want iteration error", err)
	}
}

func TestStore_WithRecordTx_BeginFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	called := false
	err := s.WithRecordTx(context.Background(), func(RecordTx) error {
		called = true
		return nil
	})

	if err == nil || !strings.Contains(err.Error(), "begin transaction") {
		t.Errorf("error = %v, want begin failure", err)
	}
	if called {
		t.Error("fn must not run when the transaction cannot start")
	}
}

func TestStore_WithRecordTx_CommitFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE items SET is_deleted = 1").
		WithArgs(int64(5), "I1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk full"))

	err := s.WithRecordTx(context.Background(), func(tx RecordTx) error {
		return tx.TombstoneItem(context.Background(), "I1", 5)
	})

	if err == nil || !strings.Contains(err.Error(), "commit transaction") {
		t.Errorf("error = %v, want commit failure", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/PascalSV/shopping-list-pwa/internal/types"
)

func TestRecordTx_VersionMissing(t *testing.T) {
	s := newTestStore(t)

	withTx(t, s, func(ctx context.Context, tx RecordTx) error {
		_, found, err := tx.ItemVersion(ctx, "nope")
		if err != nil {
			return err
		}
		if found {
			t.Error("ItemVersion(nope) found = true, want false")
		}
		_, found, err = tx.ListVersion(ctx, "nope")
		if err != nil {
			return err
		}
		if found {
			t.Error("ListVersion(nope) found = true, want false")
		}
		return nil
	})
}

func TestRecordTx_VersionSeesEarlierWriteInSameTx(t *testing.T) {
	s := newTestStore(t)

	withTx(t, s, func(ctx context.Context, tx RecordTx) error {
		if err := tx.PutItem(ctx, types.Item{ID: "I1", ListID: "L1", Label: "Milk", UpdatedAt: 1002}); err != nil {
			return err
		}
		if err := tx.TombstoneItem(ctx, "I1", 1005); err != nil {
			return err
		}

		v, found, err := tx.ItemVersion(ctx, "I1")
		if err != nil {
			return err
		}
		if !found || v.UpdatedAt != 1005 || !v.IsDeleted {
			t.Errorf("ItemVersion = %+v found=%v, want tombstone at 1005", v, found)
		}
		return nil
	})
}

func TestRecordTx_PutListReplacesAllColumns(t *testing.T) {
	// Given: A favorite, tombstoned list
	s := newTestStore(t)
	withTx(t, s, func(ctx context.Context, tx RecordTx) error {
		return tx.PutList(ctx, types.List{ID: "L1", Name: "Old", UpdatedAt: 1, IsDeleted: true, IsFavorite: true})
	})

	// When: A later full record revives it
	putList(t, s, "L1", "New", 2)

	// Then: No column from the old row survives
	lists, err := s.ListLists(context.Background(), Query{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("ListLists failed: %v", err)
	}
	want := types.List{ID: "L1", Name: "New", UpdatedAt: 2}
	if len(lists) != 1 || lists[0] != want {
		t.Errorf("lists = %+v, want [%+v]", lists, want)
	}
}

func TestRecordTx_TombstoneMissingIsNoop(t *testing.T) {
	s := newTestStore(t)
	tombstoneItem(t, s, "ghost", 10)
	tombstoneList(t, s, "ghost", 10)

	items, _ := s.ListItems(context.Background(), Query{IncludeDeleted: true})
	lists, _ := s.ListLists(context.Background(), Query{IncludeDeleted: true})
	if len(items) != 0 || len(lists) != 0 {
		t.Errorf("tombstoning unknown ids created rows: items=%v lists=%v", items, lists)
	}
}

func TestRecordTx_TombstoneKeepsOtherFields(t *testing.T) {
	s := newTestStore(t)
	putItem(t, s, types.Item{ID: "I1", ListID: "L1", Label: "Milk", Remark: "2 l", UpdatedAt: 1})
	tombstoneItem(t, s, "I1", 5)

	items, _ := s.ListItems(context.Background(), Query{IncludeDeleted: true})
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	got := items[0]
	if !got.IsDeleted || got.UpdatedAt != 5 || got.Label != "Milk" || got.Remark != "2 l" {
		t.Errorf("item = %+v, want tombstone at 5 with original fields", got)
	}
}

func TestRecordTx_IncrementSuggestionTracksLatestDisplay(t *testing.T) {
	s := newTestStore(t)
	bump(t, s, "milk", "Milk", 1)
	bump(t, s, "milk", "MILK", 1)

	got, err := s.ListSuggestions(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListSuggestions failed: %v", err)
	}
	want := types.Suggestion{Label: "milk", DisplayLabel: "MILK", Count: 2}
	if len(got) != 1 || got[0] != want {
		t.Errorf("suggestions = %+v, want [%+v]", got, want)
	}
}

func TestWithRecordTx_RollsBackOnError(t *testing.T) {
	// Given: A transaction that writes then fails
	s := newTestStore(t)
	boom := errors.New("boom")

	err := s.WithRecordTx(context.Background(), func(tx RecordTx) error {
		if err := tx.PutList(context.Background(), types.List{ID: "L1", Name: "x", UpdatedAt: 1}); err != nil {
			return err
		}
		if err := tx.IncrementSuggestion(context.Background(), "x", "x", 1); err != nil {
			return err
		}
		return boom
	})

	// Then: The error surfaces and nothing was written
	if !errors.Is(err, boom) {
		t.Fatalf("WithRecordTx error = %v, want boom", err)
	}
	stats, _ := s.GetStats(context.Background())
	if stats.ListCount != 0 || stats.SuggestionCount != 0 {
		t.Errorf("stats after rollback = %+v, want empty", stats)
	}
}

func TestWithRecordTx_ConcurrentIncrementsAreNotLost(t *testing.T) {
	// Given: A file-backed store with a real connection pool
	s, err := NewSQLiteStore(t.TempDir() + "/concurrent.db")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// When: Many goroutines bump the same counter
	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.WithRecordTx(context.Background(), func(tx RecordTx) error {
				return tx.IncrementSuggestion(context.Background(), "milk", "Milk", int64(i+1))
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("WithRecordTx failed: %v", err)
		}
	}

	// Then: Every increment landed
	got, _ := s.ListSuggestions(context.Background(), 1)
	if len(got) != 1 || got[0].Count != n {
		t.Errorf("suggestions = %+v, want count %d", got, n)
	}
}

package pgstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/japaniel/lingonary/pkg/db"
)

// setupStore connects to the database named by LINGONARY_TEST_PG_DSN and
// empties the words table. Tests skip when it is unset.
func setupStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("LINGONARY_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LINGONARY_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, dsn, PoolConfig{MaxConns: 4, MaxConnLifetime: time.Minute})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	s, err := New(ctx, pool)
	if err != nil {
		pool.Close()
		t.Fatalf("init: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE words RESTART IDENTITY`); err != nil {
		pool.Close()
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	w := db.NewWord("casas", "Houses / Homes", 0, 0, time.Now())
	id1, err := s.Upsert(ctx, w)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	w.TimesCorrect = 2
	w.HasBeenInQuiz = true
	id2, err := s.Upsert(ctx, w)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same id, got %d and %d", id1, id2)
	}

	w.HasBeenInQuiz = false
	if _, err := s.Upsert(ctx, w); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := s.Get(ctx, "casas")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TimesCorrect != 2 || !got.HasBeenInQuiz {
		t.Fatalf("unexpected record %+v", got)
	}

	if _, err := s.Get(ctx, "nada"); !errors.Is(err, db.ErrWordNotFound) {
		t.Fatalf("expected ErrWordNotFound, got %v", err)
	}
}

func TestInsertBatchAndStats(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	n, err := s.InsertBatch(ctx, []db.Word{
		{LearningText: "uno", NativeText: "one"},
		{LearningText: "dos", NativeText: "two", HasBeenInQuiz: true, TimesCorrect: 7},
		{LearningText: "uno", NativeText: "one again"},
	})
	if err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 created, got %d", n)
	}

	st, err := s.Stats(ctx, 6)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st != (db.LibraryStats{Total: 2, New: 1, Mastered: 1}) {
		t.Fatalf("unexpected stats %+v", st)
	}

	if err := s.Delete(ctx, "uno"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	cnt, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected 1 word, got %d", cnt)
	}
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	db.SetMaxOpenConns(1)
	if err := InitDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestUpsertWordReplacesByLearningText(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	w := NewWord("casas", "Houses / Homes", 5700, 11200, time.Now())
	id1, err := UpsertWord(ctx, db, w)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	w.TimesCorrect = 3
	w.HasBeenInQuiz = true
	id2, err := UpsertWord(ctx, db, w)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same id, got %d and %d", id1, id2)
	}

	got, err := GetWord(ctx, db, "casas")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TimesCorrect != 3 || !got.HasBeenInQuiz {
		t.Fatalf("expected replaced record, got %+v", got)
	}
	if got.StartTime != 5700 || got.EndTime != 11200 {
		t.Fatalf("expected offsets to round-trip, got %d-%d", got.StartTime, got.EndTime)
	}

	n, err := CountWords(ctx, db)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestUpsertWordNeverClearsSeenFlag(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	w := NewWord("Navidad", "Christmas", 0, 0, time.Now())
	w.HasBeenInQuiz = true
	if _, err := UpsertWord(ctx, db, w); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// A stale snapshot taken before the word was shown lands late.
	w.HasBeenInQuiz = false
	if _, err := UpsertWord(ctx, db, w); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := GetWord(ctx, db, "Navidad")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.HasBeenInQuiz {
		t.Fatalf("has_been_in_quiz went back to false")
	}
}

func TestUpsertWordValidation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	if _, err := UpsertWord(ctx, db, Word{LearningText: "   ", NativeText: "x"}); err == nil {
		t.Fatalf("expected error for blank learning text")
	}

	if _, err := UpsertWord(ctx, db, Word{LearningText: " dos ", NativeText: "Two", TimesCorrect: -2}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := GetWord(ctx, db, "dos")
	if err != nil {
		t.Fatalf("get trimmed key: %v", err)
	}
	if got.TimesCorrect != 0 {
		t.Fatalf("expected times_correct clamped to 0, got %d", got.TimesCorrect)
	}
	if got.DateAdded == 0 {
		t.Fatalf("expected date_added to be stamped")
	}
}

func TestInsertWordIfAbsentPreservesProgress(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	w := NewWord("fiestas", "Parties / Festivities", 0, 0, time.Now())
	w.TimesCorrect = 4
	if _, err := UpsertWord(ctx, db, w); err != nil {
		t.Fatalf("insert: %v", err)
	}

	created, err := InsertWordIfAbsent(ctx, db, NewWord("fiestas", "Parties", 10, 20, time.Now()))
	if err != nil {
		t.Fatalf("insert if absent: %v", err)
	}
	if created {
		t.Fatalf("expected existing row to be kept")
	}
	got, _ := GetWord(ctx, db, "fiestas")
	if got.TimesCorrect != 4 || got.NativeText != "Parties / Festivities" {
		t.Fatalf("existing row was modified: %+v", got)
	}

	created, err = InsertWordIfAbsent(ctx, db, NewWord("semanas", "Weeks", 0, 0, time.Now()))
	if err != nil {
		t.Fatalf("insert if absent: %v", err)
	}
	if !created {
		t.Fatalf("expected new row")
	}
}

func TestListWordsNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	base := time.Date(2025, 12, 24, 10, 0, 0, 0, time.UTC)
	for i, s := range []string{"Las", "vacaciones", "de"} {
		if _, err := UpsertWord(ctx, db, NewWord(s, s, 0, 0, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("insert %s: %v", s, err)
		}
	}
	words, err := ListWords(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(words) != 3 {
		t.Fatalf("expected 3 words, got %d", len(words))
	}
	if words[0].LearningText != "de" || words[2].LearningText != "Las" {
		t.Fatalf("unexpected order: %s, %s, %s", words[0].LearningText, words[1].LearningText, words[2].LearningText)
	}
}

func TestGetAndDeleteWord(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	if _, err := GetWord(ctx, db, "Reyes"); !errors.Is(err, ErrWordNotFound) {
		t.Fatalf("expected ErrWordNotFound, got %v", err)
	}
	if _, err := UpsertWord(ctx, db, NewWord("Reyes", "Three Wise Men / Epiphany", 0, 0, time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := DeleteWord(ctx, db, "Reyes"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetWord(ctx, db, "Reyes"); !errors.Is(err, ErrWordNotFound) {
		t.Fatalf("expected ErrWordNotFound after delete, got %v", err)
	}
	if err := DeleteWord(ctx, db, "Reyes"); err != nil {
		t.Fatalf("deleting a missing word: %v", err)
	}
}

func TestStatsMatchesSummarize(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	fixtures := []Word{
		{LearningText: "a", NativeText: "1"},
		{LearningText: "b", NativeText: "2", HasBeenInQuiz: true, TimesCorrect: 2},
		{LearningText: "c", NativeText: "3", HasBeenInQuiz: true, TimesCorrect: 6},
		{LearningText: "d", NativeText: "4", HasBeenInQuiz: true, TimesCorrect: 9},
		{LearningText: "e", NativeText: "5"},
	}
	for _, w := range fixtures {
		if _, err := UpsertWord(ctx, db, w); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	st, err := GetStats(ctx, db, 6)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := LibraryStats{Total: 5, New: 2, Learning: 1, Mastered: 2}
	if st != want {
		t.Fatalf("expected %+v, got %+v", want, st)
	}
	if got := Summarize(fixtures, 6); got != want {
		t.Fatalf("Summarize: expected %+v, got %+v", want, got)
	}

	empty := setupTestDB(t)
	defer empty.Close()
	st, err = GetStats(ctx, empty, 6)
	if err != nil {
		t.Fatalf("stats on empty db: %v", err)
	}
	if st != (LibraryStats{}) {
		t.Fatalf("expected zero stats, got %+v", st)
	}
}

func TestInsertBatchRollsBackOnError(t *testing.T) {
	conn := setupTestDB(t)
	defer conn.Close()
	store := NewSQLiteStore(conn)
	ctx := context.Background()

	n, err := store.InsertBatch(ctx, []Word{
		{LearningText: "pone", NativeText: "Puts / Sets up"},
		{LearningText: "", NativeText: "broken"},
	})
	if err == nil {
		t.Fatalf("expected error from blank word in batch")
	}
	if n != 0 {
		t.Fatalf("expected 0 created, got %d", n)
	}
	cnt, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected rollback, found %d rows", cnt)
	}

	n, err = store.InsertBatch(ctx, []Word{
		{LearningText: "pone", NativeText: "Puts / Sets up"},
		{LearningText: "el", NativeText: "The (Masculine Singular)"},
	})
	if err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 created, got %d", n)
	}
}

func TestUpsertWordConcurrency(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	const n = 8
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			id, err := UpsertWord(ctx, db, Word{LearningText: "perro", NativeText: "dog", TimesCorrect: i})
			if err != nil {
				t.Errorf("upsert word: %v", err)
				ids <- 0
				return
			}
			ids <- id
		}(i)
	}
	var first int64
	for i := 0; i < n; i++ {
		id := <-ids
		if id == 0 {
			t.Fatalf("error in goroutine")
		}
		if i == 0 {
			first = id
		}
		if id != first {
			t.Fatalf("expected same id, got %d and %d", first, id)
		}
	}
	var cnt int
	if err := db.QueryRow(`SELECT COUNT(*) FROM words WHERE learning_text = ?`, "perro").Scan(&cnt); err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected 1 word row, got %d", cnt)
	}
}

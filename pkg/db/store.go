package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrWordNotFound is returned when no word matches the learning text.
var ErrWordNotFound = errors.New("word not found")

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const wordColumns = `id, learning_text, native_text, times_correct, has_been_in_quiz, date_added, start_time, end_time`

// normalize trims the key and clamps the counter. A zero DateAdded is stamped with now.
func normalize(w *Word) error {
	w.LearningText = strings.TrimSpace(w.LearningText)
	if w.LearningText == "" {
		return fmt.Errorf("learning text must be non-empty")
	}
	if w.TimesCorrect < 0 {
		w.TimesCorrect = 0
	}
	if w.DateAdded == 0 {
		w.DateAdded = time.Now().UnixMilli()
	}
	return nil
}

// UpsertWord inserts the word or replaces the row sharing its learning text,
// and returns the row id. A replace never clears has_been_in_quiz.
func UpsertWord(ctx context.Context, db DBExecutor, w Word) (int64, error) {
	if err := normalize(&w); err != nil {
		return 0, err
	}

	var id int64
	query := `INSERT INTO words (learning_text, native_text, times_correct, has_been_in_quiz, date_added, start_time, end_time)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(learning_text)
			  DO UPDATE SET
			    native_text = excluded.native_text,
			    times_correct = excluded.times_correct,
			    has_been_in_quiz = MAX(words.has_been_in_quiz, excluded.has_been_in_quiz),
			    date_added = excluded.date_added,
			    start_time = excluded.start_time,
			    end_time = excluded.end_time
			  RETURNING id`

	err := db.QueryRowContext(ctx, query,
		w.LearningText, w.NativeText, w.TimesCorrect, w.HasBeenInQuiz, w.DateAdded, w.StartTime, w.EndTime,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert word %q: %w", w.LearningText, err)
	}
	return id, nil
}

// InsertWordIfAbsent inserts the word unless its learning text is already saved.
// Existing rows, and the progress on them, are left alone.
func InsertWordIfAbsent(ctx context.Context, db DBExecutor, w Word) (bool, error) {
	if err := normalize(&w); err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO words (learning_text, native_text, times_correct, has_been_in_quiz, date_added, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(learning_text) DO NOTHING`,
		w.LearningText, w.NativeText, w.TimesCorrect, w.HasBeenInQuiz, w.DateAdded, w.StartTime, w.EndTime,
	)
	if err != nil {
		return false, fmt.Errorf("insert word %q: %w", w.LearningText, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWord(r rowScanner) (Word, error) {
	var w Word
	var native sql.NullString
	err := r.Scan(&w.ID, &w.LearningText, &native, &w.TimesCorrect, &w.HasBeenInQuiz, &w.DateAdded, &w.StartTime, &w.EndTime)
	if native.Valid {
		w.NativeText = native.String
	}
	return w, err
}

// GetWord returns the word with the given learning text.
func GetWord(ctx context.Context, db DBExecutor, learningText string) (Word, error) {
	w, err := scanWord(db.QueryRowContext(ctx,
		`SELECT `+wordColumns+` FROM words WHERE learning_text = ? LIMIT 1`,
		strings.TrimSpace(learningText)))
	if err == sql.ErrNoRows {
		return Word{}, ErrWordNotFound
	}
	if err != nil {
		return Word{}, fmt.Errorf("get word %q: %w", learningText, err)
	}
	return w, nil
}

// ListWords returns every saved word, newest first.
func ListWords(ctx context.Context, db DBExecutor) ([]Word, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+wordColumns+` FROM words ORDER BY date_added DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Word
	for rows.Next() {
		w, err := scanWord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteWord removes the word with the given learning text. Deleting a missing word is not an error.
func DeleteWord(ctx context.Context, db DBExecutor, learningText string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM words WHERE learning_text = ?`, strings.TrimSpace(learningText))
	return err
}

// CountWords returns the number of saved words.
func CountWords(ctx context.Context, db DBExecutor) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM words`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// GetStats computes LibraryStats in SQL.
func GetStats(ctx context.Context, db DBExecutor, threshold int) (LibraryStats, error) {
	var st LibraryStats
	err := db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN has_been_in_quiz = 0 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN has_been_in_quiz = 1 AND times_correct < ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN times_correct >= ? THEN 1 ELSE 0 END), 0)
		FROM words`, threshold, threshold).Scan(&st.Total, &st.New, &st.Learning, &st.Mastered)
	if err != nil {
		return LibraryStats{}, fmt.Errorf("word stats: %w", err)
	}
	return st, nil
}

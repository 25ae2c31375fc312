// Package pgstore is a PostgreSQL Word Store for setups that keep the library on a server.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/japaniel/lingonary/pkg/db"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS words (
	id BIGSERIAL PRIMARY KEY,
	learning_text TEXT NOT NULL UNIQUE,
	native_text TEXT NOT NULL,
	times_correct INTEGER NOT NULL DEFAULT 0 CHECK (times_correct >= 0),
	has_been_in_quiz BOOLEAN NOT NULL DEFAULT FALSE,
	date_added BIGINT NOT NULL,
	start_time INTEGER NOT NULL DEFAULT 0,
	end_time INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_words_date_added ON words (date_added DESC)`

const wordColumns = `id, learning_text, native_text, times_correct, has_been_in_quiz, date_added, start_time, end_time`

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PoolConfig struct {
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// NewPool parses dsn and opens a pool with the given limits.
func NewPool(ctx context.Context, dsn string, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}
	return pool, nil
}

// Store implements db.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ db.Store = (*Store)(nil)

// New wraps pool and creates the words table if needed.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return &Store{pool: pool}, nil
}

func prepare(w *db.Word) error {
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

// Upsert inserts the word or replaces the row sharing its learning text.
func (s *Store) Upsert(ctx context.Context, w db.Word) (int64, error) {
	if err := prepare(&w); err != nil {
		return 0, err
	}
	query := `
		INSERT INTO words (learning_text, native_text, times_correct, has_been_in_quiz, date_added, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (learning_text) DO UPDATE SET
			native_text = EXCLUDED.native_text,
			times_correct = EXCLUDED.times_correct,
			has_been_in_quiz = words.has_been_in_quiz OR EXCLUDED.has_been_in_quiz,
			date_added = EXCLUDED.date_added,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time
		RETURNING id
	`
	var id int64
	err := s.pool.QueryRow(ctx, query,
		w.LearningText, w.NativeText, w.TimesCorrect, w.HasBeenInQuiz, w.DateAdded, w.StartTime, w.EndTime,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert word %q: %w", w.LearningText, err)
	}
	return id, nil
}

func insertIfAbsent(ctx context.Context, q DBTX, w db.Word) (bool, error) {
	if err := prepare(&w); err != nil {
		return false, err
	}
	tag, err := q.Exec(ctx, `
		INSERT INTO words (learning_text, native_text, times_correct, has_been_in_quiz, date_added, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (learning_text) DO NOTHING`,
		w.LearningText, w.NativeText, w.TimesCorrect, w.HasBeenInQuiz, w.DateAdded, w.StartTime, w.EndTime,
	)
	if err != nil {
		return false, fmt.Errorf("insert word %q: %w", w.LearningText, err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertIfAbsent inserts the word unless it is already saved.
func (s *Store) InsertIfAbsent(ctx context.Context, w db.Word) (bool, error) {
	return insertIfAbsent(ctx, s.pool, w)
}

// InsertBatch inserts absent words in one transaction.
func (s *Store) InsertBatch(ctx context.Context, words []db.Word) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	created := 0
	for _, w := range words {
		ok, err := insertIfAbsent(ctx, tx, w)
		if err != nil {
			return 0, err
		}
		if ok {
			created++
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit batch (%d items): %w", len(words), err)
	}
	return created, nil
}

func scanWord(row pgx.Row) (db.Word, error) {
	var w db.Word
	err := row.Scan(&w.ID, &w.LearningText, &w.NativeText, &w.TimesCorrect, &w.HasBeenInQuiz, &w.DateAdded, &w.StartTime, &w.EndTime)
	return w, err
}

// Get returns the word with the given learning text.
func (s *Store) Get(ctx context.Context, learningText string) (db.Word, error) {
	w, err := scanWord(s.pool.QueryRow(ctx,
		`SELECT `+wordColumns+` FROM words WHERE learning_text = $1`, strings.TrimSpace(learningText)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Word{}, db.ErrWordNotFound
		}
		return db.Word{}, fmt.Errorf("get word %q: %w", learningText, err)
	}
	return w, nil
}

// List returns every saved word, newest first.
func (s *Store) List(ctx context.Context) ([]db.Word, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+wordColumns+` FROM words ORDER BY date_added DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list words: %w", err)
	}
	defer rows.Close()

	var out []db.Word
	for rows.Next() {
		w, err := scanWord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, learningText string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM words WHERE learning_text = $1`, strings.TrimSpace(learningText))
	if err != nil {
		return fmt.Errorf("delete word: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM words`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count words: %w", err)
	}
	return n, nil
}

func (s *Store) Stats(ctx context.Context, threshold int) (db.LibraryStats, error) {
	var st db.LibraryStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE NOT has_been_in_quiz),
			COUNT(*) FILTER (WHERE has_been_in_quiz AND times_correct < $1),
			COUNT(*) FILTER (WHERE times_correct >= $1)
		FROM words`, threshold).Scan(&st.Total, &st.New, &st.Learning, &st.Mastered)
	if err != nil {
		return db.LibraryStats{}, fmt.Errorf("word stats: %w", err)
	}
	return st, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

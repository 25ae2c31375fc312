package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Store is the Word Store contract shared by the SQLite and PostgreSQL backends.
type Store interface {
	Upsert(ctx context.Context, w Word) (int64, error)
	InsertIfAbsent(ctx context.Context, w Word) (bool, error)
	InsertBatch(ctx context.Context, words []Word) (int, error)
	Get(ctx context.Context, learningText string) (Word, error)
	List(ctx context.Context) ([]Word, error)
	Delete(ctx context.Context, learningText string) error
	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context, threshold int) (LibraryStats, error)
	Close() error
}

// SQLiteStore is the local Word Store.
type SQLiteStore struct {
	DB *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore wraps an initialized connection.
func NewSQLiteStore(conn *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: conn}
}

func (s *SQLiteStore) Upsert(ctx context.Context, w Word) (int64, error) {
	return UpsertWord(ctx, s.DB, w)
}

func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, w Word) (bool, error) {
	return InsertWordIfAbsent(ctx, s.DB, w)
}

// InsertBatch inserts absent words in one transaction and returns how many rows were created.
// Any failure rolls back the whole batch.
func (s *SQLiteStore) InsertBatch(ctx context.Context, words []Word) (int, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	created := 0
	for _, w := range words {
		ok, err := InsertWordIfAbsent(ctx, tx, w)
		if err != nil {
			return 0, err
		}
		if ok {
			created++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch (%d items): %w", len(words), err)
	}
	return created, nil
}

func (s *SQLiteStore) Get(ctx context.Context, learningText string) (Word, error) {
	return GetWord(ctx, s.DB, learningText)
}

func (s *SQLiteStore) List(ctx context.Context) ([]Word, error) {
	return ListWords(ctx, s.DB)
}

func (s *SQLiteStore) Delete(ctx context.Context, learningText string) error {
	return DeleteWord(ctx, s.DB, learningText)
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	return CountWords(ctx, s.DB)
}

func (s *SQLiteStore) Stats(ctx context.Context, threshold int) (LibraryStats, error) {
	return GetStats(ctx, s.DB, threshold)
}

func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}

package ingest

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/japaniel/lingonary/pkg/db"
)

// Upserter persists whole word records, replacing by learning text.
type Upserter interface {
	Upsert(ctx context.Context, w db.Word) (int64, error)
}

// Saver persists word records in the background. Save never reports failure to
// the caller: errors go to OnError and the log, and the next successful save of
// the same word overwrites whatever is stale. With more than one worker, saves
// complete in no particular order.
type Saver struct {
	store  Upserter
	pool   WorkerPoolInterface
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	// OnError is called from a worker goroutine for each failed or dropped save.
	// Set it before the first Save.
	OnError func(w db.Word, err error)

	saved  atomic.Int64
	failed atomic.Int64
}

// NewSaver starts a saver with the given number of workers and queue capacity.
func NewSaver(store Upserter, workers, queue int, logger *zap.Logger) *Saver {
	return newSaverWithPool(store, NewWorkerPool(workers, queue), logger)
}

func newSaverWithPool(store Upserter, pool WorkerPoolInterface, logger *zap.Logger) *Saver {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Saver{
		store:  store,
		pool:   pool,
		logger: logger.Named("saver"),
		ctx:    ctx,
		cancel: cancel,
	}
	pool.Start(ctx)
	return s
}

// Save queues a copy of w for persistence and returns without waiting for it.
// When the queue is full the save is dropped and reported like a failed write;
// the word's next save carries the same fields.
func (s *Saver) Save(w db.Word) {
	snapshot := w
	err := s.pool.TrySubmit(func(ctx context.Context) error {
		if _, err := s.store.Upsert(ctx, snapshot); err != nil {
			s.fail(snapshot, err)
			return err
		}
		s.saved.Add(1)
		return nil
	})
	if err != nil {
		s.fail(snapshot, err)
	}
}

func (s *Saver) fail(w db.Word, err error) {
	s.failed.Add(1)
	s.logger.Warn("word save failed",
		zap.String("learning_text", w.LearningText),
		zap.Int("times_correct", w.TimesCorrect),
		zap.Error(err),
	)
	if s.OnError != nil {
		s.OnError(w, err)
	}
}

// Counts returns how many saves succeeded and failed so far.
func (s *Saver) Counts() (saved, failed int64) {
	return s.saved.Load(), s.failed.Load()
}

// Close waits for queued saves to finish and stops the workers.
// Saves after Close are dropped and reported through OnError.
func (s *Saver) Close() {
	s.pool.Close()
	s.cancel()
}

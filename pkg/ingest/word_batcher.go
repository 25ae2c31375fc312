package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/japaniel/lingonary/pkg/db"
)

// BatchInserter inserts a batch of words atomically, keeping rows that already exist.
type BatchInserter interface {
	InsertBatch(ctx context.Context, words []db.Word) (int, error)
}

// WordBatcher buffers words and inserts them in batches on a committer goroutine.
type WordBatcher struct {
	mu          sync.Mutex
	buf         []db.Word
	cap         int
	flushTicker *time.Ticker
	closed      bool
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	commitCh chan []db.Word
	store    BatchInserter
	OnError  func(error)

	created atomic.Int64

	// lastErr stores the first asynchronous error seen by the batcher. Protected by errMu.
	errMu   sync.Mutex
	lastErr error
}

// NewWordBatcher creates a batcher that flushes when bufferSize words are
// queued, or every flushInterval (0 disables the timer).
func NewWordBatcher(store BatchInserter, bufferSize int, flushInterval time.Duration) *WordBatcher {
	if bufferSize <= 0 {
		bufferSize = 50
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &WordBatcher{
		buf:      make([]db.Word, 0, bufferSize),
		cap:      bufferSize,
		ctx:      ctx,
		cancel:   cancel,
		commitCh: make(chan []db.Word, 2),
		store:    store,
	}

	b.wg.Add(1)
	go b.committer()

	if flushInterval > 0 {
		b.flushTicker = time.NewTicker(flushInterval)
		b.wg.Add(1)
		go b.loop()
	}
	return b
}

// Add queues a word for insertion.
func (b *WordBatcher) Add(w db.Word) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBatcherClosed
	}
	b.buf = append(b.buf, w)
	if len(b.buf) >= b.cap {
		b.flushLocked()
	}
	return nil
}

// flushLocked assumes b.mu is held. A full commit channel blocks Add, which is the backpressure.
func (b *WordBatcher) flushLocked() {
	if len(b.buf) == 0 {
		return
	}
	batch := b.buf
	b.buf = make([]db.Word, 0, b.cap)

	select {
	case b.commitCh <- batch:
	case <-b.ctx.Done():
		b.recordErr(fmt.Errorf("word batcher: dropping batch of %d words due to context cancellation", len(batch)))
	}
}

func (b *WordBatcher) recordErr(err error) {
	b.errMu.Lock()
	if b.lastErr == nil {
		b.lastErr = err
	}
	b.errMu.Unlock()
	if b.OnError != nil {
		b.OnError(err)
	}
}

func (b *WordBatcher) committer() {
	defer b.wg.Done()
	for batch := range b.commitCh {
		// Background context so a closing batcher still commits what it was given.
		n, err := b.store.InsertBatch(context.Background(), batch)
		if err != nil {
			b.recordErr(err)
			continue
		}
		b.created.Add(int64(n))
	}
}

func (b *WordBatcher) loop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-b.flushTicker.C:
			b.mu.Lock()
			b.flushLocked()
			b.mu.Unlock()
		}
	}
}

// Created returns the number of rows inserted by committed batches.
func (b *WordBatcher) Created() int {
	return int(b.created.Load())
}

// Close flushes what is buffered, waits for commits and returns the first async error.
func (b *WordBatcher) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBatcherClosed
	}
	b.closed = true
	if b.flushTicker != nil {
		b.flushTicker.Stop()
	}
	b.flushLocked()
	b.mu.Unlock()

	b.cancel()
	close(b.commitCh)
	b.wg.Wait()

	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.lastErr
}

var ErrBatcherClosed = &BatcherError{"word batcher closed"}

type BatcherError struct{ msg string }

func (e *BatcherError) Error() string { return e.msg }

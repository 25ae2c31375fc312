package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/lingonary/pkg/transcript"
)

// Importer saves the words of a transcript into the word store.
type Importer struct {
	Store     BatchInserter
	BatchSize int
	Padding   time.Duration
	// Logger is used for informational messages. nil means no logging.
	Logger *zap.Logger
	// OnProgress is called periodically with the number of processed entries and total entries.
	OnProgress func(current, total int)
	// Now stamps DateAdded on new words.
	Now func() time.Time
}

// ImportResult counts what an import did. Skipped covers blank tokens,
// repeats inside the transcript and words that were already saved.
type ImportResult struct {
	Entries int
	Created int
	Skipped int
}

// NewImporter creates an Importer with default batching and padding.
func NewImporter(store BatchInserter, logger *zap.Logger) *Importer {
	return &Importer{
		Store:     store,
		BatchSize: 50,
		Padding:   transcript.DefaultPadding,
		Logger:    logger,
		Now:       time.Now,
	}
}

// Import inserts every distinct word of entries that is not yet saved.
// Saved words keep their progress. On cancellation, batches already queued are still committed.
func (im *Importer) Import(ctx context.Context, entries []transcript.Entry) (ImportResult, error) {
	res := ImportResult{Entries: len(entries)}
	if len(entries) == 0 {
		return res, nil
	}
	logger := im.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now
	if im.Now != nil {
		now = im.Now
	}

	bw := NewWordBatcher(im.Store, im.BatchSize, 0)
	seen := make(map[string]bool, len(entries))
	var loopErr error

Loop:
	for i, e := range entries {
		select {
		case <-ctx.Done():
			loopErr = ctx.Err()
			break Loop
		default:
		}

		// blank tokens and repeats are skipped but still count as processed
		w, ok := transcript.ToWord(e, im.Padding, now())
		if ok && !seen[w.LearningText] {
			seen[w.LearningText] = true
			if err := bw.Add(w); err != nil {
				loopErr = err
				break Loop
			}
		}
		if im.OnProgress != nil && im.BatchSize > 0 && (i+1)%im.BatchSize == 0 {
			im.OnProgress(i+1, len(entries))
		}
	}

	closeErr := bw.Close()
	res.Created = bw.Created()
	res.Skipped = res.Entries - res.Created

	if loopErr == nil {
		loopErr = closeErr
		if im.OnProgress != nil {
			im.OnProgress(len(entries), len(entries))
		}
	}
	if loopErr != nil {
		logger.Warn("transcript import stopped", zap.Int("created", res.Created), zap.Error(loopErr))
		return res, loopErr
	}
	logger.Info("transcript imported",
		zap.Int("entries", res.Entries),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

package db

import "time"

// Word is a saved vocabulary entry. LearningText is its natural key.
type Word struct {
	ID            int64
	LearningText  string
	NativeText    string
	TimesCorrect  int
	HasBeenInQuiz bool
	// DateAdded is epoch milliseconds; only used for ordering.
	DateAdded int64
	// StartTime and EndTime are millisecond offsets into the source audio.
	StartTime int
	EndTime   int
}

// NewWord builds an unsaved word with zero progress, stamped with now.
func NewWord(learning, native string, startTime, endTime int, now time.Time) Word {
	return Word{
		LearningText: learning,
		NativeText:   native,
		DateAdded:    now.UnixMilli(),
		StartTime:    startTime,
		EndTime:      endTime,
	}
}

// AddedAt returns DateAdded as a time.Time.
func (w Word) AddedAt() time.Time {
	return time.UnixMilli(w.DateAdded)
}

// IsMastered reports whether the word has reached the given threshold.
func (w Word) IsMastered(threshold int) bool {
	return w.TimesCorrect >= threshold
}

// LibraryStats summarizes a word library against a mastery threshold.
type LibraryStats struct {
	Total    int
	New      int // never shown in a quiz
	Learning int // shown, below threshold
	Mastered int
}

// Summarize computes LibraryStats for an in-memory list of words.
func Summarize(words []Word, threshold int) LibraryStats {
	var st LibraryStats
	st.Total = len(words)
	for _, w := range words {
		if !w.HasBeenInQuiz {
			st.New++
		}
		if w.IsMastered(threshold) {
			st.Mastered++
		} else if w.HasBeenInQuiz {
			st.Learning++
		}
	}
	return st
}

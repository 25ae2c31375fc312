package quiz

import "github.com/japaniel/lingonary/pkg/db"

// SelectPool returns the words eligible for a quiz. Mastered words (at or
// above threshold) are left out unless includeMastered is set.
func SelectPool(words []db.Word, threshold int, includeMastered bool) []db.Word {
	if includeMastered {
		return append([]db.Word(nil), words...)
	}
	out := make([]db.Word, 0, len(words))
	for _, w := range words {
		if !w.IsMastered(threshold) {
			out = append(out, w)
		}
	}
	return out
}

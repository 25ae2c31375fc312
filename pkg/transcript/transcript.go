// Package transcript reads timed podcast transcripts and turns tapped entries
// into vocabulary words.
package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/japaniel/lingonary/pkg/db"
)

// DefaultPadding widens a saved word's audio window so playback starts a little early.
const DefaultPadding = 2500 * time.Millisecond

// Entry is one timed word of a transcript.
type Entry struct {
	ID         int    `json:"id"`
	Word       string `json:"w"`
	StartTime  int64  `json:"s"` // ms
	EndTime    int64  `json:"e"` // ms
	Definition string `json:"d"`
}

// Parse decodes a transcript JSON array.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return entries, nil
}

// Load reads a transcript file.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// CleanWord strips punctuation around a transcript token ("Nochebuena," -> "Nochebuena").
func CleanWord(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ToWord converts an entry into an unsaved word. ok is false when nothing is left after cleaning.
func ToWord(e Entry, padding time.Duration, now time.Time) (w db.Word, ok bool) {
	learning := CleanWord(e.Word)
	if learning == "" {
		return db.Word{}, false
	}
	pad := padding.Milliseconds()
	start := e.StartTime - pad
	if start < 0 {
		start = 0
	}
	end := e.EndTime + pad
	return db.NewWord(learning, strings.TrimSpace(e.Definition), int(start), int(end), now), true
}

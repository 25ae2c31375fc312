// Package cli is the terminal front end for reviewing saved words.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/japaniel/lingonary/pkg/config"
	"github.com/japaniel/lingonary/pkg/db"
	"github.com/japaniel/lingonary/pkg/quiz"
)

const maxAttempts = 3

// WordLister is the read side of the word store the front end needs.
type WordLister interface {
	List(ctx context.Context) ([]db.Word, error)
	Stats(ctx context.Context, threshold int) (db.LibraryStats, error)
}

// App runs reviews against a word store.
type App struct {
	Store  WordLister
	Saver  quiz.Saver
	Logger *zap.Logger
	Prefs  config.Quiz
	// Rand overrides the session's randomness (tests).
	Rand *rand.Rand
}

// Review runs one quiz session on in/out. Entering "q" leaves early.
func (a *App) Review(ctx context.Context, in io.Reader, out io.Writer) error {
	words, err := a.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("load words: %w", err)
	}
	if len(words) < a.Prefs.MinWords {
		fmt.Fprintf(out, "Save at least %d words to start a quiz!\n", a.Prefs.MinWords)
		return nil
	}

	pool := quiz.SelectPool(words, a.Prefs.MasteryThreshold, a.Prefs.IncludeMastered)
	s := quiz.NewSession(a.Saver, a.Logger)
	if a.Rand != nil {
		s.Rand = a.Rand
	}
	if s.Initialize(pool, a.Prefs.Length) == quiz.StateCompleted {
		fmt.Fprintln(out, "Nothing to review. Every word is mastered.")
		return nil
	}

	reader := bufio.NewReader(in)
	for s.State() != quiz.StateCompleted {
		if ctx.Err() != nil {
			s.Exit()
			return ctx.Err()
		}
		printQuestion(out, s)

		visible := len(s.VisibleSlots())
		slot, quit, ok := getAnswer(reader, out, visible)
		if quit {
			s.Exit()
			break
		}
		q, _ := s.Current()
		if !ok {
			fmt.Fprintf(out, "Skipping. Correct answer was %s\n", q.NativeText)
			if _, err := s.Advance(); err != nil {
				return err
			}
			continue
		}

		res, err := s.SubmitSlot(slot)
		if err != nil {
			return err
		}
		if res.Correct {
			fmt.Fprintln(out, "Correct!")
		} else {
			fmt.Fprintf(out, "Wrong. Correct answer was %s. %s\n", letter(res.CorrectSlot), q.NativeText)
		}

		if s.ContinueAvailable() {
			fmt.Fprint(out, "Press Enter to continue ")
			if line, err := reader.ReadString('\n'); err == nil && strings.EqualFold(strings.TrimSpace(line), "q") {
				s.Exit()
				break
			}
			fmt.Fprintln(out)
		}
		if _, err := s.Advance(); err != nil {
			return err
		}
	}

	answered, correct := s.Score()
	_, total := s.Progress()
	fmt.Fprintf(out, "\nFinal score: %d/%d (%d of %d questions answered)\n", correct, answered, answered, total)
	return nil
}

func printQuestion(out io.Writer, s *quiz.Session) {
	q, _ := s.Current()
	cur, total := s.Progress()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "[%d/%d] %s\n\n", cur, total, q.LearningText)
	for i, sl := range s.VisibleSlots() {
		fmt.Fprintf(out, "%s. %s\n", letter(i), sl.Label())
	}
	fmt.Fprintln(out)
}

func letter(i int) string {
	return string(rune('A' + i))
}

// getAnswer reads a slot letter. quit is set for "q"; ok is false when the
// user ran out of attempts or input.
func getAnswer(reader *bufio.Reader, out io.Writer, optionCount int) (slot int, quit, ok bool) {
	if optionCount < 1 {
		return -1, false, false
	}
	maxLetter := byte('A' + optionCount - 1)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		line, err := reader.ReadString('\n')
		answer := strings.ToUpper(strings.TrimSpace(line))
		if answer == "Q" {
			return -1, true, false
		}
		if len(answer) == 1 && answer[0] >= 'A' && answer[0] <= maxLetter {
			return int(answer[0] - 'A'), false, true
		}
		if err != nil {
			return -1, true, false
		}
		if attempt < maxAttempts {
			fmt.Fprintf(out, "Please answer with a letter from A to %c.\n", maxLetter)
		}
	}
	return -1, false, false
}

// PrintStats writes the word library summary.
func (a *App) PrintStats(ctx context.Context, out io.Writer) error {
	st, err := a.Store.Stats(ctx, a.Prefs.MasteryThreshold)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Words:    %d\n", st.Total)
	fmt.Fprintf(out, "New:      %d\n", st.New)
	fmt.Fprintf(out, "Learning: %d\n", st.Learning)
	fmt.Fprintf(out, "Mastered: %d (%d+ correct)\n", st.Mastered, a.Prefs.MasteryThreshold)
	return nil
}

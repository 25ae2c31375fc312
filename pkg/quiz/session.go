// Package quiz runs a multiple-choice vocabulary review: one learning-language
// word at a time, its translation among up to three distractors, and a
// per-word mastery counter that moves with each answer.
//
// A Session is driven by a single owner (the screen) and is not safe for
// concurrent use. Persistence is handed to a Saver and never awaited.
package quiz

import (
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/japaniel/lingonary/pkg/db"
)

const (
	// DefaultLength is the number of questions when no length is configured.
	DefaultLength = 10
	// MaxOptions is the number of answer slots on screen.
	MaxOptions = 4
)

var (
	ErrNoActiveQuestion = errors.New("quiz: no active question")
	ErrNotAnOption      = errors.New("quiz: selection is not one of the current options")
	ErrAlreadyAnswered  = errors.New("quiz: question already answered")
	ErrInactive         = errors.New("quiz: session is not running")
)

// State is a session's position in its lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateAwaitingAnswer
	StateAnswerRevealed
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateAnswerRevealed:
		return "answer_revealed"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Saver persists a whole word record in the background.
type Saver interface {
	Save(w db.Word)
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(w db.Word)

func (f SaverFunc) Save(w db.Word) { f(w) }

// Result describes a scored answer.
type Result struct {
	Correct bool
	// Word is the question word after its counter was updated.
	Word db.Word
	// SelectedSlot and CorrectSlot index into Slots.
	SelectedSlot int
	CorrectSlot  int
}

// Session is one visit to the quiz screen.
type Session struct {
	// Rand drives sampling and option order. NewSession seeds it from the clock.
	Rand *rand.Rand
	// OnExit is called once when the session completes or is exited.
	OnExit func()

	saver  Saver
	logger *zap.Logger

	id    uuid.UUID
	state State
	done  chan struct{}

	// pool is the session's snapshot of the caller's words; sequence,
	// current and options index into it.
	pool     []db.Word
	sequence []int
	position int
	current  int
	options  []int
	slots    [MaxOptions]Slot

	answered int
	correct  int
}

// NewSession creates an uninitialized session. A nil logger disables logging
// and a nil saver discards updates.
func NewSession(saver Saver, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if saver == nil {
		saver = SaverFunc(func(db.Word) {})
	}
	return &Session{
		Rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		saver:   saver,
		logger:  logger,
		done:    make(chan struct{}),
		current: -1,
	}
}

// Initialize starts a session over pool with at most quizLength questions and
// loads the first one. A non-positive quizLength means DefaultLength. An empty
// or nil pool completes the session immediately.
func (s *Session) Initialize(pool []db.Word, quizLength int) State {
	if quizLength <= 0 {
		quizLength = DefaultLength
	}
	if s.state == StateCompleted {
		s.done = make(chan struct{})
	}

	s.id = uuid.New()
	s.pool = append([]db.Word(nil), pool...)
	s.position = 0
	s.current = -1
	s.options = nil
	s.answered, s.correct = 0, 0

	n := len(s.pool)
	if quizLength < n {
		n = quizLength
	}
	s.sequence = s.Rand.Perm(len(s.pool))[:n]
	s.state = StateAwaitingAnswer

	s.logger.Info("quiz session started",
		zap.String("session_id", s.id.String()),
		zap.Int("pool_size", len(s.pool)),
		zap.Int("questions", n),
	)
	return s.LoadNextQuestion()
}

// LoadNextQuestion shows the question at the cursor, or completes the session
// when the sequence is exhausted. The question word is marked as seen and saved.
func (s *Session) LoadNextQuestion() State {
	if s.state == StateUninitialized || s.state == StateCompleted {
		return s.state
	}
	if s.position >= len(s.sequence) {
		s.complete()
		return s.state
	}

	s.current = s.sequence[s.position]
	q := &s.pool[s.current]
	q.HasBeenInQuiz = true
	s.saver.Save(*q)

	s.options = s.buildOptions(s.current)
	s.resetSlots()
	s.state = StateAwaitingAnswer
	return s.state
}

// buildOptions returns the question plus up to MaxOptions-1 distractors, in
// random order. Distractors carry distinct labels so exactly one option
// matches the answer.
func (s *Session) buildOptions(q int) []int {
	opts := make([]int, 0, MaxOptions)
	opts = append(opts, q)
	labels := map[string]bool{s.pool[q].NativeText: true}
	for _, c := range s.Rand.Perm(len(s.pool)) {
		if len(opts) == MaxOptions {
			break
		}
		if c == q || labels[s.pool[c].NativeText] {
			continue
		}
		labels[s.pool[c].NativeText] = true
		opts = append(opts, c)
	}
	s.Rand.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
	return opts
}

// SubmitAnswer scores selected, which must be one of the current options
// (matched by its native-language label), and saves the question word.
func (s *Session) SubmitAnswer(selected db.Word) (Result, error) {
	if err := s.checkAnswerable(); err != nil {
		return Result{}, err
	}
	for i, o := range s.options {
		if s.pool[o].NativeText == selected.NativeText {
			return s.score(i), nil
		}
	}
	s.violation(ErrNotAnOption, zap.String("selected", selected.NativeText))
	return Result{}, ErrNotAnOption
}

// SubmitSlot answers with the option shown in slot i.
func (s *Session) SubmitSlot(i int) (Result, error) {
	if err := s.checkAnswerable(); err != nil {
		return Result{}, err
	}
	if i < 0 || i >= len(s.options) {
		s.violation(ErrNotAnOption, zap.Int("slot", i))
		return Result{}, ErrNotAnOption
	}
	return s.score(i), nil
}

func (s *Session) checkAnswerable() error {
	switch s.state {
	case StateAwaitingAnswer:
		return nil
	case StateAnswerRevealed:
		s.violation(ErrAlreadyAnswered)
		return ErrAlreadyAnswered
	default:
		s.violation(ErrNoActiveQuestion)
		return ErrNoActiveQuestion
	}
}

// violation reports a caller bug. DPanic panics under a development logger
// and only logs in production; session state is never touched.
func (s *Session) violation(err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("session_id", s.id.String()),
		zap.Stringer("state", s.state),
		zap.Error(err),
	)
	s.logger.DPanic("quiz precondition violated", fields...)
}

func (s *Session) score(slot int) Result {
	q := &s.pool[s.current]
	res := Result{SelectedSlot: slot, CorrectSlot: -1}

	if s.pool[s.options[slot]].NativeText == q.NativeText {
		res.Correct = true
		res.CorrectSlot = slot
		s.slots[slot].State = SlotCorrect
		q.TimesCorrect++
		s.correct++
	} else {
		s.slots[slot].State = SlotIncorrect
		if q.TimesCorrect > 0 {
			q.TimesCorrect--
		}
		for i, o := range s.options {
			if s.pool[o].NativeText == q.NativeText {
				s.slots[i].State = SlotCorrect
				res.CorrectSlot = i
				break
			}
		}
	}
	s.answered++
	s.saver.Save(*q)

	for i := range s.slots {
		s.slots[i].Enabled = false
	}
	s.state = StateAnswerRevealed
	res.Word = *q

	s.logger.Debug("answer submitted",
		zap.String("session_id", s.id.String()),
		zap.String("learning_text", q.LearningText),
		zap.Bool("correct", res.Correct),
		zap.Int("times_correct", q.TimesCorrect),
	)
	return res
}

// Advance moves to the next question. From AwaitingAnswer it skips the
// current question unscored.
func (s *Session) Advance() (State, error) {
	if s.state != StateAwaitingAnswer && s.state != StateAnswerRevealed {
		s.logger.Warn("advance on inactive session",
			zap.String("session_id", s.id.String()),
			zap.Stringer("state", s.state),
		)
		return s.state, ErrInactive
	}
	s.position++
	return s.LoadNextQuestion(), nil
}

// Exit ends the session early, as when the user navigates back.
func (s *Session) Exit() {
	if s.state == StateAwaitingAnswer || s.state == StateAnswerRevealed {
		s.complete()
	}
}

func (s *Session) complete() {
	s.state = StateCompleted
	s.current = -1
	s.options = nil
	s.resetSlots()
	s.logger.Info("quiz session finished",
		zap.String("session_id", s.id.String()),
		zap.Int("answered", s.answered),
		zap.Int("correct", s.correct),
		zap.Int("questions", len(s.sequence)),
	)
	close(s.done)
	if s.OnExit != nil {
		s.OnExit()
	}
}

// Done is closed when the session completes or is exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() State { return s.state }

// ID identifies the current run in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// Current returns the word being asked.
func (s *Session) Current() (db.Word, bool) {
	if s.current < 0 {
		return db.Word{}, false
	}
	return s.pool[s.current], true
}

// Options returns the current answer choices in display order.
func (s *Session) Options() []db.Word {
	out := make([]db.Word, len(s.options))
	for i, o := range s.options {
		out[i] = s.pool[o]
	}
	return out
}

// Sequence returns the sampled questions in order, with their current counters.
func (s *Session) Sequence() []db.Word {
	out := make([]db.Word, len(s.sequence))
	for i, idx := range s.sequence {
		out[i] = s.pool[idx]
	}
	return out
}

// Progress returns the 1-based number of the question on screen and the total.
func (s *Session) Progress() (current, total int) {
	total = len(s.sequence)
	if s.current < 0 {
		if s.state == StateCompleted {
			return total, total
		}
		return 0, total
	}
	return s.position + 1, total
}

// Score returns how many questions were answered and how many correctly.
func (s *Session) Score() (answered, correct int) {
	return s.answered, s.correct
}

// ContinueAvailable reports whether the continue control should be shown.
func (s *Session) ContinueAvailable() bool {
	return s.state == StateAnswerRevealed
}

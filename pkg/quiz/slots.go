package quiz

import "github.com/japaniel/lingonary/pkg/db"

// SlotState is the feedback shown on an answer slot.
type SlotState int

const (
	SlotDefault SlotState = iota
	SlotCorrect
	SlotIncorrect
)

func (s SlotState) String() string {
	switch s {
	case SlotCorrect:
		return "correct"
	case SlotIncorrect:
		return "incorrect"
	default:
		return "default"
	}
}

// Slot is one answer button. Slots past the option count are hidden and disabled.
type Slot struct {
	Word    db.Word
	State   SlotState
	Enabled bool
	Hidden  bool
}

// Label is the text shown on the slot.
func (s Slot) Label() string {
	return s.Word.NativeText
}

func (s *Session) resetSlots() {
	for i := range s.slots {
		if i < len(s.options) {
			s.slots[i] = Slot{Word: s.pool[s.options[i]], Enabled: true}
		} else {
			s.slots[i] = Slot{Hidden: true}
		}
	}
}

// Slots returns the display state of every answer slot.
func (s *Session) Slots() [MaxOptions]Slot {
	return s.slots
}

// VisibleSlots returns the slots that are not hidden.
func (s *Session) VisibleSlots() []Slot {
	out := make([]Slot, 0, MaxOptions)
	for _, sl := range s.slots {
		if !sl.Hidden {
			out = append(out, sl)
		}
	}
	return out
}

// Package history keeps the bounded, in-process conversation state for one
// session. There is no cross-process persistence.
package history

import "github.com/upb/rag-chat/models"

// DefaultMaxHistory is the default bound on retained turns. Kept small so
// prompts and memory stay flat in long sessions.
const DefaultMaxHistory = 3

// History is a FIFO-bounded list of conversation turns, most recent last.
// Capacity is fixed at construction.
//
// Not safe for concurrent use: the orchestrator serializes access per
// session, and a History must not be shared across orchestrator instances.
type History struct {
	turns      []models.ConversationTurn
	maxHistory int
}

// New creates a History bounded at maxHistory turns. maxHistory <= 0 falls
// back to DefaultMaxHistory.
func New(maxHistory int) *History {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &History{
		turns:      make([]models.ConversationTurn, 0, maxHistory),
		maxHistory: maxHistory,
	}
}

// Append adds a turn at the tail, evicting the oldest turn first when the
// history is at capacity.
func (h *History) Append(turn models.ConversationTurn) {
	if len(h.turns) >= h.maxHistory {
		h.turns = h.turns[1:]
	}
	h.turns = append(h.turns, turn)
}

// Snapshot returns a copy of the retained turns, oldest first.
func (h *History) Snapshot() []models.ConversationTurn {
	out := make([]models.ConversationTurn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Clear drops all retained turns.
func (h *History) Clear() {
	h.turns = h.turns[:0]
}

// Len returns the number of retained turns.
func (h *History) Len() int {
	return len(h.turns)
}

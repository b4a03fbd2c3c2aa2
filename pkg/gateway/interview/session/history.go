package session

import "github.com/voxhire/voxhire/pkg/core/llm"

// DefaultHistoryMaxTurns bounds stored conversation turns (user and
// assistant each count as one).
const DefaultHistoryMaxTurns = 20

// historyLog keeps the bounded per-session conversation history. Trimming
// drops the oldest turns; the cap is forced even so user/assistant pairs
// stay aligned.
type historyLog struct {
	turns    []llm.Turn
	maxTurns int
}

func newHistoryLog(maxTurns int) *historyLog {
	if maxTurns <= 0 {
		maxTurns = DefaultHistoryMaxTurns
	}
	if maxTurns%2 != 0 {
		maxTurns++
	}
	return &historyLog{maxTurns: maxTurns}
}

func (h *historyLog) appendUser(text string) {
	h.append(llm.Turn{Role: llm.RoleUser, Text: text})
}

func (h *historyLog) appendAssistant(text string) {
	h.append(llm.Turn{Role: llm.RoleAssistant, Text: text})
}

func (h *historyLog) append(turn llm.Turn) {
	h.turns = append(h.turns, turn)
	if excess := len(h.turns) - h.maxTurns; excess > 0 {
		h.turns = append(h.turns[:0], h.turns[excess:]...)
	}
}

func (h *historyLog) len() int { return len(h.turns) }

// snapshot returns a copy safe to hand to a completion goroutine.
func (h *historyLog) snapshot() []llm.Turn {
	out := make([]llm.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

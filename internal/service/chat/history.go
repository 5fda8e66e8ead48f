package chat

import (
	"sync"

	"github.com/zhouzirui/z-tavern/chatbot/internal/model/chat"
)

// History is the ordered, append-only transcript of one session. It has no
// capacity bound; it lives exactly as long as its session.
type History struct {
	mu    sync.RWMutex
	turns []chat.Turn
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{turns: make([]chat.Turn, 0, 16)}
}

// Append adds turns to the end in the given order. Appending several turns in
// one call makes them visible atomically to Snapshot.
func (h *History) Append(turns ...chat.Turn) {
	h.mu.Lock()
	h.turns = append(h.turns, turns...)
	h.mu.Unlock()
}

// Snapshot returns a copy of the transcript. Later appends never show up in a
// snapshot that was already taken.
func (h *History) Snapshot() []chat.Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	copied := make([]chat.Turn, len(h.turns))
	copy(copied, h.turns)
	return copied
}

// Len reports the number of recorded turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

package chat

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/z-tavern/chatbot/internal/model/chat"
	"github.com/zhouzirui/z-tavern/chatbot/internal/model/language"
)

// SubmitHandler is what a UI calls once per user submission.
type SubmitHandler interface {
	OnSubmit(ctx context.Context, text string) (string, error)
}

// Session is one running conversation: its history, its dispatcher and the
// currently selected reply language.
type Session struct {
	id        string
	createdAt time.Time

	languages  language.Store
	history    *History
	dispatcher *Dispatcher

	mu       sync.RWMutex
	language string
}

var _ SubmitHandler = (*Session)(nil)

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Language returns the current language selection.
func (s *Session) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SetLanguage changes the reply language used by later turns.
func (s *Session) SetLanguage(lang string) error {
	selected, ok := s.languages.FindByID(lang)
	if !ok {
		return invalidArgument("unsupported language %q", lang)
	}

	s.mu.Lock()
	s.language = selected.ID
	s.mu.Unlock()
	return nil
}

// OnSubmit runs one turn with the current language selection.
func (s *Session) OnSubmit(ctx context.Context, text string) (string, error) {
	return s.dispatcher.HandleTurn(ctx, s.Language(), text)
}

// HandleTurn runs one turn with an explicit language, leaving the session's
// selection untouched.
func (s *Session) HandleTurn(ctx context.Context, lang, text string) (string, error) {
	return s.dispatcher.HandleTurn(ctx, lang, text)
}

// Transcript returns a snapshot of the recorded turns.
func (s *Session) Transcript() []chat.Turn {
	return s.history.Snapshot()
}

// Busy reports whether a turn is waiting on the model.
func (s *Session) Busy() bool {
	return s.dispatcher.State() == StateAwaitingResponse
}

// Info returns a serializable view of the session.
func (s *Session) Info() chat.SessionInfo {
	return chat.SessionInfo{
		ID:         s.id,
		Language:   s.Language(),
		CreatedAt:  s.createdAt,
		Busy:       s.Busy(),
		Transcript: s.Transcript(),
	}
}

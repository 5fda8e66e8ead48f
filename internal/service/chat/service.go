package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-tavern/chatbot/internal/model/chat"
	"github.com/zhouzirui/z-tavern/chatbot/internal/model/language"
)

// Service owns the lifecycle of chat sessions. Each session is created on
// start, looked up by id while it runs and destroyed on close.
type Service struct {
	languages  language.Store
	assembler  *PromptAssembler
	inferencer Inferencer
	log        logrus.FieldLogger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService bootstraps the in-memory session registry.
func NewService(languages language.Store, assembler *PromptAssembler, inferencer Inferencer, log logrus.FieldLogger) *Service {
	return &Service{
		languages:  languages,
		assembler:  assembler,
		inferencer: inferencer,
		log:        log,
		sessions:   make(map[string]*Session),
	}
}

// InferenceEnabled reports whether turns can reach a model at all.
func (s *Service) InferenceEnabled() bool {
	return s.inferencer != nil
}

// CreateSession starts a session with an empty history. An empty lang selects
// language.Default.
func (s *Service) CreateSession(_ context.Context, lang string) (*Session, error) {
	if language.Normalize(lang) == "" {
		lang = language.Default
	}
	selected, ok := s.languages.FindByID(lang)
	if !ok {
		return nil, invalidArgument("unsupported language %q", lang)
	}

	id := uuid.NewString()
	history := NewHistory()
	session := &Session{
		id:         id,
		createdAt:  time.Now().UTC(),
		languages:  s.languages,
		history:    history,
		dispatcher: NewDispatcher(history, s.assembler, s.inferencer, s.log.WithField("session", id)),
		language:   selected.ID,
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"session": id, "language": selected.ID}).Info("session created")
	return session, nil
}

// GetSession retrieves a running session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// CloseSession ends a session and drops its history.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	s.log.WithFields(logrus.Fields{"session": sessionID, "turns": session.history.Len()}).Info("session closed")
	return nil
}

// ListSessions returns the running sessions ordered by creation time.
func (s *Service) ListSessions(_ context.Context) []chat.SessionInfo {
	s.mu.RLock()
	infos := make([]chat.SessionInfo, 0, len(s.sessions))
	for _, session := range s.sessions {
		infos = append(infos, session.Info())
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

package chat

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-tavern/chatbot/internal/model/chat"
	chatService "github.com/zhouzirui/z-tavern/chatbot/internal/service/chat"
	"github.com/zhouzirui/z-tavern/chatbot/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	log     logrus.FieldLogger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, log logrus.FieldLogger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		log:     log,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.handleListSessions)
		r.Post("/", h.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleGetSession)
			r.Delete("/", h.handleCloseSession)
			r.Put("/language", h.handleSetLanguage)
			r.Post("/turns", h.handleTurn)
		})
	})
}

// TurnResponse is returned after a successful turn; the transcript lets the
// caller redraw the whole conversation.
type TurnResponse struct {
	Reply      string      `json:"reply"`
	Transcript []chat.Turn `json:"transcript"`
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.ListSessions(r.Context()))
}

// handleCreateSession 创建会话，请求体可为空
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Language string `json:"language"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.Language)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session.Info())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Info())
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetLanguage 切换后续回复使用的语言
func (h *Handler) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Language string `json:"language"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if err := session.SetLanguage(payload.Language); err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, session.Info())
}

// handleTurn 提交用户消息并返回模型回复
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	var reply string
	if payload.Language != "" {
		reply, err = session.HandleTurn(r.Context(), payload.Language, payload.Text)
	} else {
		reply, err = session.OnSubmit(r.Context(), payload.Text)
	}
	if err != nil {
		h.log.WithField("session", session.ID()).WithError(err).Warn("turn failed")
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, TurnResponse{
		Reply:      reply,
		Transcript: session.Transcript(),
	})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	utils.RespondError(w, StatusFor(err), err.Error())
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	var infErr *chatService.InferenceError
	switch {
	case errors.Is(err, chatService.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrInferenceUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &infErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-tavern/chatbot/internal/model/chat"
	chatservice "github.com/zhouzirui/z-tavern/chatbot/internal/service/chat"
)

const (
	defaultReadTimeout = 60 * time.Second
	pingInterval       = 54 * time.Second
	writeTimeout       = 10 * time.Second
)

// WebSocketHandler drives one chat session per connection: every "submit"
// frame runs one turn and is answered with the full transcript. The
// connection owns its session, which is closed when the socket goes away.
type WebSocketHandler struct {
	chatSvc     *chatservice.Service
	log         logrus.FieldLogger
	upgrader    websocket.Upgrader
	readTimeout time.Duration
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatservice.Service, log logrus.FieldLogger) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		readTimeout: defaultReadTimeout,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// SubmitMessage carries one user utterance.
type SubmitMessage struct {
	Text string `json:"text"`
}

// ConfigMessage changes the session's reply language.
type ConfigMessage struct {
	Language string `json:"language"`
}

// TranscriptPayload is sent after every state change so the page can redraw
// the conversation from scratch.
type TranscriptPayload struct {
	Language   string      `json:"language"`
	Reply      string      `json:"reply,omitempty"`
	Transcript []chat.Turn `json:"transcript"`
}

// ErrorPayload reports a failed frame. Code is "invalid_argument",
// "inference_error" or "bad_request".
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithField("session", sessionID)
	log.Info("websocket connected")
	defer h.closeSession(sessionID, log)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	go pingLoop(ctx, conn)

	h.sendTranscript(conn, session, "connected", "")

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("websocket read error")
			}
			return
		}

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, sessionID, "bad_request", "session mismatch")
		} else {
			h.handleMessage(ctx, conn, session, &msg)
		}

		// 推理可能超过读超时，处理完成后再续期
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
}

func (h *WebSocketHandler) closeSession(sessionID string, log logrus.FieldLogger) {
	err := h.chatSvc.CloseSession(context.Background(), sessionID)
	if err != nil && !errors.Is(err, chatservice.ErrSessionNotFound) {
		log.WithError(err).Warn("failed to close session")
		return
	}
	log.Info("websocket disconnected")
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, session *chatservice.Session, msg *inboundMessage) {
	switch msg.Type {
	case "submit":
		h.handleSubmit(ctx, conn, session, msg.Data)
	case "config":
		h.handleConfig(conn, session, msg.Data)
	case "history":
		h.sendTranscript(conn, session, "transcript", "")
	default:
		h.sendError(conn, session.ID(), "bad_request", "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleSubmit(ctx context.Context, conn *websocket.Conn, session *chatservice.Session, raw json.RawMessage) {
	var submit SubmitMessage
	if err := json.Unmarshal(raw, &submit); err != nil {
		h.sendError(conn, session.ID(), "bad_request", "invalid submit payload")
		return
	}

	reply, err := session.OnSubmit(ctx, submit.Text)
	if err != nil {
		h.sendError(conn, session.ID(), errorCode(err), err.Error())
		return
	}

	h.sendTranscript(conn, session, "transcript", reply)
}

func (h *WebSocketHandler) handleConfig(conn *websocket.Conn, session *chatservice.Session, raw json.RawMessage) {
	var cfg ConfigMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		h.sendError(conn, session.ID(), "bad_request", "invalid config payload")
		return
	}

	if err := session.SetLanguage(cfg.Language); err != nil {
		h.sendError(conn, session.ID(), errorCode(err), err.Error())
		return
	}

	h.log.WithFields(logrus.Fields{"session": session.ID(), "language": session.Language()}).Debug("language changed")
	h.sendTranscript(conn, session, "config", "")
}

func (h *WebSocketHandler) sendTranscript(conn *websocket.Conn, session *chatservice.Session, msgType, reply string) {
	h.write(conn, outgoingMessage{
		Type:      msgType,
		SessionID: session.ID(),
		Data: TranscriptPayload{
			Language:   session.Language(),
			Reply:      reply,
			Transcript: session.Transcript(),
		},
		Timestamp: time.Now().Unix(),
	})
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, sessionID, code, message string) {
	h.write(conn, outgoingMessage{
		Type:      "error",
		SessionID: sessionID,
		Data:      ErrorPayload{Code: code, Message: message},
		Timestamp: time.Now().Unix(),
	})
}

func (h *WebSocketHandler) write(conn *websocket.Conn, msg outgoingMessage) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.log.WithError(err).Warn("websocket write failed")
	}
}

func errorCode(err error) string {
	var infErr *chatservice.InferenceError
	switch {
	case errors.Is(err, chatservice.ErrInvalidArgument):
		return "invalid_argument"
	case errors.As(err, &infErr):
		return "inference_error"
	default:
		return "internal"
	}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

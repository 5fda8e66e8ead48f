package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-tavern/chatbot/internal/handler/chat"
	"github.com/zhouzirui/z-tavern/chatbot/internal/handler/language"
	"github.com/zhouzirui/z-tavern/chatbot/internal/handler/session"
	"github.com/zhouzirui/z-tavern/chatbot/internal/handler/web"
	middlewarePkg "github.com/zhouzirui/z-tavern/chatbot/internal/middleware"
	languageModel "github.com/zhouzirui/z-tavern/chatbot/internal/model/language"
	chatService "github.com/zhouzirui/z-tavern/chatbot/internal/service/chat"
	"github.com/zhouzirui/z-tavern/chatbot/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(languages languageModel.Store, chatSvc *chatService.Service, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"inference": chatSvc.InferenceEnabled(),
		})
	})
	web.RegisterRoutes(r, log)

	r.Route("/api", func(api chi.Router) {
		language.New(languages).RegisterRoutes(api)
		chat.New(chatSvc, log).RegisterRoutes(api)
		session.NewWebSocketHandler(chatSvc, log).RegisterRoutes(api)
	})

	return r
}

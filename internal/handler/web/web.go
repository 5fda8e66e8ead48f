// Package web serves the single-page chat client.
package web

import (
	"embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

//go:embed static/index.html
var static embed.FS

// RegisterRoutes mounts the chat page at "/".
func RegisterRoutes(r chi.Router, log logrus.FieldLogger) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		page, err := static.ReadFile("static/index.html")
		if err != nil {
			http.Error(w, "page unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(page); err != nil {
			log.WithError(err).Warn("failed to write chat page")
		}
	})
}

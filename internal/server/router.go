package server

import (
	"net/http"

	"github.com/cloo-solutions/wikidex/internal/api"
	"github.com/cloo-solutions/wikidex/internal/api/handlers"
	"github.com/cloo-solutions/wikidex/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	QAHandler *handlers.QAHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/qa", cfg.QAHandler.Ask)

	return r
}

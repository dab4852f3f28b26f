package server

import (
	"net/http"

	"github.com/cloo-solutions/docadmin/internal/api"
	"github.com/cloo-solutions/docadmin/internal/api/handlers"
	"github.com/cloo-solutions/docadmin/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxBodyBytes bounds request bodies, uploads included
const DefaultMaxBodyBytes int64 = 50 * 1024 * 1024

type RouterConfig struct {
	AuthValidator   middleware.AuthValidator
	DocumentHandler *handlers.DocumentHandler
	FragmentHandler *handlers.FragmentHandler
	AuthHandler     *handlers.AuthHandler
	MaxBodyBytes    int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Create)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/counts", cfg.DocumentHandler.Counts)
			r.Post("/view", cfg.DocumentHandler.View)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
			r.Get("/{id}/download", cfg.DocumentHandler.Download)
			r.Post("/{id}/forward", cfg.DocumentHandler.Forward)
		})

		r.Route("/fragments", func(r chi.Router) {
			r.Get("/", cfg.FragmentHandler.List)
			r.Get("/stats", cfg.FragmentHandler.Stats)
			r.Post("/search", cfg.FragmentHandler.Search)
			r.Get("/{id}/content", cfg.FragmentHandler.Content)
			r.Delete("/{id}", cfg.FragmentHandler.Delete)
			r.Post("/{id}/reprocess", cfg.FragmentHandler.Reprocess)
		})

		r.Route("/apikeys", func(r chi.Router) {
			r.Post("/", cfg.AuthHandler.CreateAPIKey)
			r.Get("/", cfg.AuthHandler.ListAPIKeys)
			r.Delete("/{id}", cfg.AuthHandler.RevokeAPIKey)
		})
	})

	return r
}

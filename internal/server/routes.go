package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a chi router with all routes and middleware configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	r.Get("/health", h.Health)

	r.Route("/previews", func(r chi.Router) {
		r.Post("/", h.CreatePreview)
		r.Get("/", h.ListPreviews)
		r.Get("/{id}", h.GetPreview)
		r.Delete("/{id}", h.DeletePreview)
		r.Get("/{id}/file", h.GetPreviewFile)
	})

	return r
}

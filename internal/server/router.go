// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/bbox-ocr/internal/config"
	"github.com/spherical/bbox-ocr/internal/domain"
	"github.com/spherical/bbox-ocr/internal/observability"
)

// Processor turns an uploaded PDF into a document.
type Processor interface {
	ProcessBytes(ctx context.Context, name string, data []byte, eventCh chan<- domain.StreamEvent) (*domain.Document, error)
}

// NewRouter creates the API router.
func NewRouter(logger *observability.Logger, proc Processor, cfg config.ServerConfig) http.Handler {
	logger = observability.OrNop(logger).WithOperation("http")

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"bbox-ocr"}`))
	})

	parse := NewParseHandler(logger, proc, cfg.MaxUploadBytes)
	r.Post("/parse", parse.Parse)

	return r
}

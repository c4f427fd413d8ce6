package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"studyrag/internal/corpus"
	"studyrag/internal/handlers"
	"studyrag/internal/ingest"
	"studyrag/internal/rag"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine   rag.Engine
	Pipeline *ingest.Pipeline
	Store    *corpus.Store
}

// NewRouter creates the HTTP router with all API routes registered.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)
	r.Use(CORS)

	askHandler := handlers.NewAskHandler(deps.Engine)
	ingestHandler := handlers.NewIngestHandler(deps.Pipeline)
	healthHandler := handlers.NewHealthHandler(deps.Store)
	statsHandler := handlers.NewStatsHandler(deps.Store)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodPost, "/ingest", ingestHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodGet, "/stats", statsHandler)
	})

	return r
}

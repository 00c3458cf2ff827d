package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/papergest/internal/config"
	"github.com/dgallion1/papergest/internal/index"
	"github.com/dgallion1/papergest/internal/pipeline"
)

// Server is the HTTP API server for papergest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Post("/api/ingest/batch", s.handleBatchIngest)
		r.Post("/api/extract", s.handleExtract)

		r.Get("/api/search", s.handleSearch)
		r.Get("/api/papers", s.handleListPapers)
		r.Get("/api/papers/{paperID}", s.handleGetPaper)
		r.Get("/api/papers/{paperID}/summary", s.handlePaperSummary)
		r.Delete("/api/papers/{paperID}", s.handleDeletePaper)

		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// indexError maps index errors onto HTTP status codes.
func (s *Server) indexError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, index.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, index.ErrBadQuery):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case index.IsRetryable(err):
		jsonError(w, "index unavailable: "+err.Error(), http.StatusServiceUnavailable)
	default:
		s.log.Error("index error", "error", err)
		jsonError(w, "index error: "+err.Error(), http.StatusInternalServerError)
	}
}

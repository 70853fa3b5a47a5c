// Package api exposes the HTTP interface for the traversal service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/malirobot/musiclinks/internal/catalog"
	"github.com/malirobot/musiclinks/internal/metrics"
	"github.com/malirobot/musiclinks/internal/traversal"
)

// Searcher finds catalog entries matching a term.
type Searcher interface {
	Search(ctx context.Context, term, kind string) ([]catalog.SearchResult, error)
}

// Server wires HTTP handlers to the run service.
type Server struct {
	router   chi.Router
	runs     *RunService
	artists  *traversal.ArtistProcessor
	searcher Searcher
	base     traversal.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The base
// traversal config supplies defaults that request bodies may override.
// The searcher is optional; without it the search endpoint returns 503.
func NewServer(runs *RunService, artists *traversal.ArtistProcessor, searcher Searcher, base traversal.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runs:     runs,
		artists:  artists,
		searcher: searcher,
		base:     base,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/traversals", func(r chi.Router) {
			r.Post("/", s.startTraversal)
			r.Get("/", s.listTraversals)
			r.Route("/{run_id}", func(r chi.Router) {
				r.Get("/", s.getTraversal)
				r.Post("/stop", s.stopTraversal)
			})
		})
		r.Get("/artists/search", s.searchArtists)
		r.Get("/artists/{artist_id}/releases", s.listArtistReleases)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type startTraversalRequest struct {
	SeedArtistID        string `json:"seed_artist_id"`
	MaxArtists          *int   `json:"max_artists"`
	Strategy            string `json:"strategy"`
	MaxQueueSize        *int   `json:"max_queue_size"`
	MaxDepth            *int   `json:"max_depth"`
	TimeLimitSeconds    *int   `json:"time_limit_seconds"`
	ErrorThreshold      *int   `json:"error_threshold"`
	IncludeExtraArtists *bool  `json:"include_extra_artists"`
	IncludeCredits      *bool  `json:"include_credits"`
}

func (s *Server) startTraversal(w http.ResponseWriter, r *http.Request) {
	var req startTraversalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SeedArtistID == "" {
		writeError(w, http.StatusBadRequest, "seed_artist_id is required")
		return
	}

	cfg := s.applyOverrides(req)
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.runs.Start(req.SeedArtistID, cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id.String()})
}

func (s *Server) listTraversals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.runs.List()})
}

func (s *Server) getTraversal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "run_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	record, ok := s.runs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) stopTraversal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "run_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	if !s.runs.Stop(id) {
		writeError(w, http.StatusNotFound, "run not found or already finished")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"run_id": id.String(), "status": "stopping"})
}

func (s *Server) searchArtists(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog access is not configured")
		return
	}
	term := r.URL.Query().Get("q")
	if term == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "artist"
	}
	results, err := s.searcher.Search(r.Context(), term, kind)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": term, "results": results})
}

func (s *Server) listArtistReleases(w http.ResponseWriter, r *http.Request) {
	if s.artists == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog access is not configured")
		return
	}
	artistID := chi.URLParam(r, "artist_id")
	maxPages := 1
	if raw := r.URL.Query().Get("pages"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid pages parameter")
			return
		}
		maxPages = parsed
	}
	releases, err := s.artists.FetchReleasesBatch(r.Context(), artistID, maxPages)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artist_id": artistID, "releases": releases})
}

func (s *Server) applyOverrides(req startTraversalRequest) traversal.Config {
	cfg := s.base
	if req.MaxArtists != nil {
		cfg.MaxArtists = *req.MaxArtists
	}
	if req.Strategy != "" {
		cfg.Strategy = traversal.Strategy(req.Strategy)
	}
	if req.MaxQueueSize != nil {
		cfg.MaxQueueSize = *req.MaxQueueSize
	}
	if req.MaxDepth != nil {
		cfg.MaxDepth = *req.MaxDepth
	}
	if req.TimeLimitSeconds != nil {
		cfg.TimeLimit = time.Duration(*req.TimeLimitSeconds) * time.Second
	}
	if req.ErrorThreshold != nil {
		cfg.ErrorThreshold = *req.ErrorThreshold
	}
	if req.IncludeExtraArtists != nil {
		cfg.IncludeExtraArtists = *req.IncludeExtraArtists
	}
	if req.IncludeCredits != nil {
		cfg.IncludeCredits = *req.IncludeCredits
	}
	return cfg
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

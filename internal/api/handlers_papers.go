package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/papergest/internal/index"
	"github.com/dgallion1/papergest/internal/render"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target, ok := index.ParseTarget(q.Get("index_type"))
	if !ok {
		jsonError(w, "index_type must be one of articles, tables, figures, passages", http.StatusBadRequest)
		return
	}
	limit, err := intParam(q.Get("limit"), index.DefaultLimit)
	if err != nil {
		jsonError(w, "invalid limit", http.StatusBadRequest)
		return
	}

	hits, err := s.orchestrator.Index().Search(r.Context(), index.Query{
		Target: target,
		Text:   q.Get("query"),
		Limit:  limit,
	})
	if err != nil {
		s.indexError(w, err)
		return
	}
	if hits == nil {
		hits = []index.Hit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":      q.Get("query"),
		"index_type": target,
		"total":      len(hits),
		"results":    hits,
	})
}

// handleListPapers lists indexed papers, newest first.
func (s *Server) handleListPapers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		jsonError(w, "invalid offset", http.StatusBadRequest)
		return
	}
	limit, err := intParam(q.Get("limit"), 20)
	if err != nil || limit <= 0 {
		jsonError(w, "invalid limit", http.StatusBadRequest)
		return
	}
	limit = min(limit, index.MaxLimit)

	papers, err := s.orchestrator.Index().List(r.Context(), offset, limit)
	if err != nil {
		s.indexError(w, err)
		return
	}
	if papers == nil {
		papers = []index.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"offset": offset,
		"limit":  limit,
		"papers": papers,
	})
}

func (s *Server) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	a, err := s.orchestrator.Index().Get(r.Context(), chi.URLParam(r, "paperID"))
	if err != nil {
		s.indexError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handlePaperSummary renders the indexed article as an HTML page.
func (s *Server) handlePaperSummary(w http.ResponseWriter, r *http.Request) {
	a, err := s.orchestrator.Index().Get(r.Context(), chi.URLParam(r, "paperID"))
	if err != nil {
		s.indexError(w, err)
		return
	}
	page, err := render.HTML(a)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// handleDeletePaper removes a paper with its tables, figures and passages.
func (s *Server) handleDeletePaper(w http.ResponseWriter, r *http.Request) {
	paperID := chi.URLParam(r, "paperID")
	if err := s.orchestrator.Index().Delete(r.Context(), paperID); err != nil {
		s.indexError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paper_id": paperID, "deleted": true})
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

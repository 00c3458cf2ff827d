package api

import (
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.orchestrator.Index().Counts(r.Context())
	if err != nil {
		s.indexError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"index":       counts,
		"queue_depth": s.orchestrator.QueueDepth(),
		"extraction":  s.orchestrator.Extractor().Stats.Snapshot(),
	})
}

package handlers

import (
	"net/http"

	"studyrag/internal/contextutil"
	"studyrag/internal/corpus"
)

// StatsHandler reports corpus statistics.
type StatsHandler struct {
	store *corpus.Store
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(store *corpus.Store) *StatsHandler {
	return &StatsHandler{store: store}
}

// StatsResponse represents corpus statistics.
type StatsResponse struct {
	// Chunks is the total number of chunks in the corpus.
	Chunks int `json:"chunks"`
	// Collections maps collection name to its chunk count.
	Collections map[string]int `json:"collections"`
}

// ServeHTTP handles corpus statistics requests.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Chunks:      h.store.Count(),
		Collections: h.store.CollectionCounts(),
	})
}

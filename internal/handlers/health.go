package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"studyrag/internal/contextutil"
	"studyrag/internal/corpus"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	store              *corpus.Store
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(store *corpus.Store) *HealthHandler {
	return &HealthHandler{
		store:              store,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP reports the health of the retrieval backends. Returns 200 when
// healthy, 503 otherwise. An empty corpus is healthy; the service simply has
// nothing to answer from yet.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string

	if h.checkVectorIndex(checkCtx, logger) {
		checks["vector_index"] = "ok"
	} else {
		checks["vector_index"] = "error"
		issues = append(issues, "vector_index_unavailable")
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	if len(issues) > 0 {
		response.Issues = issues
	}

	writeJSON(w, httpStatus, response)
}

// checkVectorIndex verifies the vector backend answers a count query and
// agrees with the corpus on the number of indexed chunks.
func (h *HealthHandler) checkVectorIndex(ctx context.Context, logger *slog.Logger) bool {
	count, err := h.store.Vector().Count(ctx)
	if err != nil {
		logger.WarnContext(ctx, "vector index health check failed", "error", err)
		return false
	}
	if corpusCount := h.store.Count(); count != corpusCount {
		logger.WarnContext(ctx, "vector index out of sync with corpus",
			"vector_count", count, "corpus_count", corpusCount)
		return false
	}
	return true
}

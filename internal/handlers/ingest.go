package handlers

import (
	"context"
	"net/http"

	"studyrag/internal/contextutil"
	"studyrag/internal/ingest"
)

// IngestHandler handles requests to (re-)ingest the study materials.
type IngestHandler struct {
	pipeline *ingest.Pipeline
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(pipeline *ingest.Pipeline) *IngestHandler {
	return &IngestHandler{pipeline: pipeline}
}

// IngestResponse represents the response from the ingest endpoint.
type IngestResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ServeHTTP triggers an ingestion run. With ?force=true the corpus and both
// indexes are wiped and rebuilt from the materials tree; otherwise unchanged
// documents are no-ops. The run happens in the background and the request
// returns immediately.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	force := r.URL.Query().Get("force") == "true"
	logger.InfoContext(ctx, "ingestion triggered via API", "force", force)

	// Background context so ingestion survives the HTTP request; the
	// request-scoped logger is carried over for correlation.
	go func() {
		ingestCtx := contextutil.WithLogger(context.Background(), logger)

		var report ingest.Report
		var err error
		if force {
			report, err = h.pipeline.RebuildAll(ingestCtx)
		} else {
			report, err = h.pipeline.IngestAll(ingestCtx)
		}
		if err != nil {
			logger.ErrorContext(ingestCtx, "ingestion run failed", "force", force, "error", err)
			return
		}
		logger.InfoContext(ingestCtx, "ingestion run finished",
			"force", force,
			"attempted", report.Attempted,
			"succeeded", report.Succeeded,
			"skipped", report.Skipped,
		)
	}()

	message := "Ingestion started. Check server logs for progress."
	if force {
		message = "Rebuild started (existing corpus and indexes cleared). Check server logs for progress."
	}
	writeJSON(w, http.StatusAccepted, IngestResponse{
		Message: message,
		Status:  "accepted",
	})
}

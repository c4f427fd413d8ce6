package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"studyrag/internal/contextutil"
	"studyrag/internal/rag"
	"studyrag/internal/retrieval"
)

// AskHandler handles question answering requests.
type AskHandler struct {
	engine rag.Engine
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(engine rag.Engine) *AskHandler {
	return &AskHandler{engine: engine}
}

// AskRequest represents the HTTP request payload for questions. It mirrors
// rag.AskRequest but is defined here for HTTP layer separation.
type AskRequest struct {
	Question   string `json:"question"`
	Collection string `json:"collection,omitempty"`
}

// AskResponse represents the HTTP response payload for questions.
type AskResponse struct {
	Answer     string              `json:"answer"`
	References []ReferenceResponse `json:"references"`
	Retrieved  int                 `json:"retrieved"`
	Used       int                 `json:"used"`
}

// ReferenceResponse represents one source reference in the response.
type ReferenceResponse struct {
	Collection string   `json:"collection"`
	Source     string   `json:"source"`
	HeaderPath []string `json:"header_path,omitempty"`
	Sequence   int      `json:"sequence"`
	Score      float64  `json:"score"`
}

// ServeHTTP handles question answering requests.
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Question == "" {
		logger.WarnContext(ctx, "empty question in request")
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}

	resp, err := h.engine.Ask(ctx, rag.AskRequest{
		Question:   req.Question,
		Collection: req.Collection,
	})
	if err != nil {
		h.handleAskError(w, r, err)
		return
	}

	references := make([]ReferenceResponse, len(resp.References))
	for i, ref := range resp.References {
		references[i] = ReferenceResponse{
			Collection: ref.Collection,
			Source:     ref.Source,
			HeaderPath: ref.HeaderPath,
			Sequence:   ref.Sequence,
			Score:      ref.Score,
		}
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:     resp.Answer,
		References: references,
		Retrieved:  resp.Retrieved,
		Used:       resp.Used,
	})
}

// handleAskError maps engine errors to HTTP status codes. An empty corpus is
// a client-visible condition, not a server fault.
func (h *AskHandler) handleAskError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "ask failed", "error", err)

	switch {
	case errors.Is(err, retrieval.ErrNoMaterials):
		writeError(w, http.StatusConflict, "No study materials ingested yet")
	case errors.Is(err, retrieval.ErrQueryUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Retrieval temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "Failed to answer question")
	}
}

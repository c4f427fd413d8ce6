package rag

import (
	"context"
	"fmt"
	"strings"

	"studyrag/internal/contextutil"
	"studyrag/internal/llm"
	"studyrag/internal/retrieval"
)

// Engine answers questions grounded in the ingested study materials.
type Engine interface {
	// Ask retrieves relevant chunks and generates an answer from them.
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
}

// Answerer generates an answer from a context string and a question.
type Answerer interface {
	Answer(ctx context.Context, contextText, question string) (string, error)
}

type ragEngine struct {
	retriever       *retrieval.Ensemble
	answerer        Answerer
	maxContextChars int
}

// NewEngine creates a RAG engine over the given retriever and answer client.
func NewEngine(retriever *retrieval.Ensemble, answerer Answerer, maxContextChars int) Engine {
	return &ragEngine{
		retriever:       retriever,
		answerer:        answerer,
		maxContextChars: maxContextChars,
	}
}

var _ Answerer = (*llm.Client)(nil)

// Ask answers a question using hybrid retrieval over the corpus.
func (e *ragEngine) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return AskResponse{}, fmt.Errorf("question is required")
	}

	logger.InfoContext(ctx, "query started", "question", question, "collection", req.Collection)

	results, err := e.retriever.Retrieve(ctx, question)
	if err != nil {
		return AskResponse{}, err
	}
	results = retrieval.FilterByCollection(results, req.Collection)

	if len(results) == 0 {
		logger.InfoContext(ctx, "no relevant chunks found", "question", question)
		return AskResponse{
			Answer:     "I couldn't find anything in your study materials relevant to this question.",
			References: []Reference{},
		}, nil
	}

	contextText, included := retrieval.BuildContext(results, e.maxContextChars)
	logger.InfoContext(ctx, "context assembled",
		"retrieved", len(results),
		"used", len(included),
		"context_length", len(contextText),
	)

	answer, err := e.answerer.Answer(ctx, contextText, question)
	if err != nil {
		logger.ErrorContext(ctx, "failed to generate answer", "error", err)
		return AskResponse{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	references := make([]Reference, 0, len(included))
	for _, result := range included {
		references = append(references, Reference{
			Collection: result.Chunk.Collection,
			Source:     result.Chunk.Source,
			HeaderPath: result.Chunk.HeaderPath,
			Sequence:   result.Chunk.Sequence,
			Score:      result.Score,
		})
	}

	logger.InfoContext(ctx, "query completed", "retrieved", len(results), "used", len(included), "answer_length", len(answer))

	return AskResponse{
		Answer:     answer,
		References: references,
		Retrieved:  len(results),
		Used:       len(included),
	}, nil
}

package vecindex

import (
	"context"
	"fmt"
	"time"

	"studyrag/internal/contextutil"
)

const defaultMaxRetries = 3

// Index pairs an embedding function with a persistent vector backend. All
// collections share the single index; collection is carried as item metadata.
type Index struct {
	embedder   Embedder
	backend    Backend
	maxRetries int
	retryDelay time.Duration
}

// New creates a vector index. maxRetries bounds embedding provider retries
// per call; values below 1 fall back to the default.
func New(embedder Embedder, backend Backend, maxRetries int) *Index {
	if maxRetries < 1 {
		maxRetries = defaultMaxRetries
	}
	return &Index{
		embedder:   embedder,
		backend:    backend,
		maxRetries: maxRetries,
		retryDelay: time.Second,
	}
}

// Load restores the persisted vectors from the backend.
func (idx *Index) Load(ctx context.Context) error {
	return idx.backend.Load(ctx)
}

// EmbedTexts computes embeddings for texts, retrying transient provider
// failures a bounded number of times before giving up with ErrIndexBuild.
func (idx *Index) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= idx.maxRetries; attempt++ {
		vectors, err := idx.embedder.EmbedTexts(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		logger.WarnContext(ctx, "embedding attempt failed",
			"attempt", attempt, "max_retries", idx.maxRetries, "error", err)

		if attempt == idx.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrIndexBuild, ctx.Err())
		case <-time.After(idx.retryDelay * time.Duration(attempt)):
		}
	}

	return nil, fmt.Errorf("%w: embedding provider exhausted %d retries: %v", ErrIndexBuild, idx.maxRetries, lastErr)
}

// Add appends items to the backend without touching already-stored vectors.
// Items must carry their vectors (see EmbedTexts).
func (idx *Index) Add(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	if err := idx.backend.Upsert(ctx, items); err != nil {
		return fmt.Errorf("%w: upsert: %v", ErrIndexBuild, err)
	}
	return nil
}

// Search embeds the query with the same embedding function used at add time
// and returns the k nearest items.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	vectors, err := idx.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned for query", ErrIndexBuild)
	}

	hits, err := idx.backend.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

// Clear removes all persisted vectors.
func (idx *Index) Clear(ctx context.Context) error {
	return idx.backend.Clear(ctx)
}

// Count returns the number of stored vectors.
func (idx *Index) Count(ctx context.Context) (int, error) {
	return idx.backend.Count(ctx)
}

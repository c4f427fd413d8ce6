package vecindex

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_backend.go -package=mocks studyrag/internal/vecindex Backend

import (
	"context"
	"errors"
)

// ErrIndexBuild is returned when the embedding provider is unavailable after
// bounded retries or the backend rejects an add. The caller abandons the
// current document's add and leaves the store unchanged.
var ErrIndexBuild = errors.New("vector index build failed")

// Item is one vector point with its chunk metadata.
type Item struct {
	ID         string
	Seq        int // corpus insertion order, used for tie-breaking
	Collection string
	Source     string
	Vector     []float32
}

// Hit is a single ranked result from a similarity search.
type Hit struct {
	ID    string
	Score float64
	Seq   int
}

// Backend is the persistent storage behind the vector index. Implementations
// must keep newly upserted items searchable without a full reload and survive
// a process restart.
type Backend interface {
	// Load restores previously persisted vectors. Called once at startup.
	Load(ctx context.Context) error
	// Upsert inserts or replaces items by ID.
	Upsert(ctx context.Context, items []Item) error
	// Search returns the k nearest items by cosine similarity,
	// same-distance ties broken by insertion order.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
	// Clear removes all persisted vectors.
	Clear(ctx context.Context) error
	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)
}

// Embedder computes embeddings for texts. All vectors share one fixed
// dimension for the lifetime of the index.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

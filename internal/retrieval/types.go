package retrieval

import (
	"errors"
	"fmt"

	"studyrag/internal/corpus"
)

// ErrQueryUnavailable is returned when no retrieval strategy could produce
// results. It is an explicit status, distinct from a query that succeeded
// with zero results.
var ErrQueryUnavailable = errors.New("no retrieval available")

// ErrNoMaterials is returned when the corpus is empty. It wraps
// ErrQueryUnavailable so generic handling still applies, while callers can
// tell "nothing ingested yet" apart from "transient failure, retry later".
var ErrNoMaterials = fmt.Errorf("%w: no materials ingested yet", ErrQueryUnavailable)

// Result is one retrieved chunk with its relevance score. Ephemeral,
// produced per query, never persisted.
type Result struct {
	Chunk  corpus.Chunk
	Score  float64
	Origin string // name of the strategy that produced it
}

// FilterByCollection keeps only results from the given collection. An empty
// collection keeps everything; the corpus has no per-collection indexes, so
// this is a post-filter over retrieval results.
func FilterByCollection(results []Result, collection string) []Result {
	if collection == "" {
		return results
	}
	filtered := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Chunk.Collection == collection {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

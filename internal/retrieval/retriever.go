package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"studyrag/internal/contextutil"
	"studyrag/internal/corpus"
	"studyrag/internal/lexical"
	"studyrag/internal/vecindex"
)

const (
	defaultK       = 10
	defaultTimeout = 5 * time.Second

	lexicalWeight = 0.5
	vectorWeight  = 0.5
)

// strategy is one way of answering a retrieval query. The ensemble iterates
// its ordered strategy list and stops at the first success.
type strategy struct {
	name string
	run  func(ctx context.Context, query string) ([]Result, error)
}

// Ensemble fuses lexical and vector index results for one query, degrading
// to vector-only results when the lexical index fails.
type Ensemble struct {
	store      *corpus.Store
	k          int
	timeout    time.Duration
	strategies []strategy
}

// NewEnsemble creates an ensemble retriever over the store's indexes.
// k is the per-index result count; timeout bounds each index call.
func NewEnsemble(store *corpus.Store, k int, timeout time.Duration) *Ensemble {
	if k <= 0 {
		k = defaultK
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	e := &Ensemble{store: store, k: k, timeout: timeout}
	e.strategies = []strategy{
		{name: "ensemble", run: e.hybrid},
		{name: "vector", run: e.vectorOnly},
	}
	return e
}

// Retrieve returns the fused ranked results for the query. An empty corpus
// yields ErrNoMaterials; if every strategy fails the query is unavailable.
func (e *Ensemble) Retrieve(ctx context.Context, query string) ([]Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if e.store.Count() == 0 {
		return nil, ErrNoMaterials
	}

	var lastErr error
	for _, st := range e.strategies {
		results, err := st.run(ctx, query)
		if err == nil {
			logger.DebugContext(ctx, "retrieval strategy succeeded", "strategy", st.name, "results", len(results))
			return results, nil
		}
		lastErr = err
		logger.WarnContext(ctx, "retrieval strategy failed", "strategy", st.name, "error", err)
	}

	return nil, fmt.Errorf("%w: %v", ErrQueryUnavailable, lastErr)
}

// hybrid queries both indexes concurrently and fuses the two ranked lists
// with equal weight. Either index failing fails the strategy.
func (e *Ensemble) hybrid(ctx context.Context, query string) ([]Result, error) {
	type lexOut struct {
		hits []lexical.Hit
		err  error
	}
	type vecOut struct {
		hits []vecindex.Hit
		err  error
	}

	lexCh := make(chan lexOut, 1)
	vecCh := make(chan vecOut, 1)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	go func() {
		idx := e.store.Lexical()
		if idx == nil {
			lexCh <- lexOut{err: fmt.Errorf("lexical index not built")}
			return
		}
		lexCh <- lexOut{hits: idx.Search(query, e.k)}
	}()

	go func() {
		hits, err := e.store.Vector().Search(callCtx, query, e.k)
		vecCh <- vecOut{hits: hits, err: err}
	}()

	var lex lexOut
	select {
	case lex = <-lexCh:
	case <-callCtx.Done():
		lex = lexOut{err: fmt.Errorf("lexical search timed out: %w", callCtx.Err())}
	}

	var vec vecOut
	select {
	case vec = <-vecCh:
	case <-callCtx.Done():
		// The vector call observes the same deadline; wait for its
		// error so the goroutine never blocks on the channel.
		vec = <-vecCh
	}

	if lex.err != nil {
		return nil, fmt.Errorf("lexical search: %w", lex.err)
	}
	if vec.err != nil {
		return nil, fmt.Errorf("vector search: %w", vec.err)
	}

	return e.fuse(lex.hits, vec.hits), nil
}

// vectorOnly is the fallback strategy when the lexical side is unavailable.
func (e *Ensemble) vectorOnly(ctx context.Context, query string) ([]Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	hits, err := e.store.Vector().Search(callCtx, query, e.k)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		chunk, _, ok := e.store.ChunkByID(hit.ID)
		if !ok {
			continue
		}
		results = append(results, Result{Chunk: chunk, Score: hit.Score, Origin: "vector"})
	}
	return results, nil
}

// fuse merges the two ranked lists deterministically: each list's raw scores
// are min-max normalized to [0,1] per query, a chunk's fused score is the
// weighted sum of its normalized per-index scores (0 if absent from a list),
// and ties are broken by lexical presence, then corpus insertion order.
func (e *Ensemble) fuse(lexHits []lexical.Hit, vecHits []vecindex.Hit) []Result {
	lexNorm := make(map[string]float64, len(lexHits))
	for i, score := range normalizeLexical(lexHits) {
		lexNorm[lexHits[i].ID] = score
	}
	vecNorm := make(map[string]float64, len(vecHits))
	for i, score := range normalizeVector(vecHits) {
		vecNorm[vecHits[i].ID] = score
	}

	type fused struct {
		id       string
		score    float64
		inLex    bool
		position int
	}

	merged := make(map[string]*fused, len(lexNorm)+len(vecNorm))
	for id, score := range lexNorm {
		_, pos, ok := e.store.ChunkByID(id)
		if !ok {
			continue
		}
		merged[id] = &fused{id: id, score: lexicalWeight * score, inLex: true, position: pos}
	}
	for id, score := range vecNorm {
		if f, ok := merged[id]; ok {
			f.score += vectorWeight * score
			continue
		}
		_, pos, ok := e.store.ChunkByID(id)
		if !ok {
			continue
		}
		merged[id] = &fused{id: id, score: vectorWeight * score, position: pos}
	}

	ranked := make([]*fused, 0, len(merged))
	for _, f := range merged {
		ranked = append(ranked, f)
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		if ranked[a].inLex != ranked[b].inLex {
			return ranked[a].inLex
		}
		return ranked[a].position < ranked[b].position
	})

	results := make([]Result, 0, len(ranked))
	for _, f := range ranked {
		chunk, _, ok := e.store.ChunkByID(f.id)
		if !ok {
			continue
		}
		results = append(results, Result{Chunk: chunk, Score: f.score, Origin: "ensemble"})
	}
	return results
}

// normalizeLexical min-max normalizes BM25 scores to [0,1]. A uniform list
// normalizes to all ones.
func normalizeLexical(hits []lexical.Hit) []float64 {
	scores := make([]float64, len(hits))
	for i, hit := range hits {
		scores[i] = hit.Score
	}
	return minMax(scores)
}

// normalizeVector min-max normalizes similarity scores to [0,1].
func normalizeVector(hits []vecindex.Hit) []float64 {
	scores := make([]float64, len(hits))
	for i, hit := range hits {
		scores[i] = hit.Score
	}
	return minMax(scores)
}

func minMax(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max == min {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}

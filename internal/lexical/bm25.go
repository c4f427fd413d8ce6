package lexical

import (
	"math"
	"sort"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Document is one indexable unit. Position is the document's corpus insertion
// order and is used for deterministic tie-breaking.
type Document struct {
	ID       string
	Text     string
	Position int
}

// Hit is a single ranked result from a lexical query.
type Hit struct {
	ID       string
	Score    float64
	Position int
}

// Index is an immutable BM25 term-frequency index over a full corpus.
//
// BM25 global statistics (document frequency, length normalization) change
// with any corpus edit, so the index is rebuilt from scratch on structural
// changes rather than updated in place. Readers keep using the old instance
// until the replacement is swapped in.
type Index struct {
	docs      []Document
	docFreq   map[string]int            // term -> number of docs containing it
	termFreq  []map[string]int          // per-doc term counts, same order as docs
	docLen    []int                     // per-doc token counts
	avgDocLen float64
}

// Build constructs a BM25 index from the given documents. Document order must
// be corpus insertion order.
func Build(docs []Document) *Index {
	idx := &Index{
		docs:     docs,
		docFreq:  make(map[string]int),
		termFreq: make([]map[string]int, len(docs)),
		docLen:   make([]int, len(docs)),
	}

	var totalLen int
	for i, doc := range docs {
		tokens := Tokenize(doc.Text)
		freq := make(map[string]int, len(tokens))
		for _, token := range tokens {
			freq[token]++
		}
		idx.termFreq[i] = freq
		idx.docLen[i] = len(tokens)
		totalLen += len(tokens)

		for term := range freq {
			idx.docFreq[term]++
		}
	}

	if len(docs) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(docs))
	}

	return idx
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.docs)
}

// Search returns the top-k documents by BM25 score for the query. Documents
// with a zero score are omitted. Equal scores are broken by corpus insertion
// order, earlier wins.
func (idx *Index) Search(query string, k int) []Hit {
	if k <= 0 || len(idx.docs) == 0 {
		return nil
	}

	queryTokens := FilterStopwords(Tokenize(query))
	if len(queryTokens) == 0 {
		return nil
	}

	n := float64(len(idx.docs))
	hits := make([]Hit, 0, len(idx.docs))

	for i, doc := range idx.docs {
		var score float64
		for _, term := range queryTokens {
			tf := idx.termFreq[i][term]
			if tf == 0 {
				continue
			}
			df := float64(idx.docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := 1 - bm25B + bm25B*float64(idx.docLen[i])/idx.avgDocLen
			score += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
		if score > 0 {
			hits = append(hits, Hit{ID: doc.ID, Score: score, Position: doc.Position})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Position < hits[b].Position
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

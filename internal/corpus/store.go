package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"studyrag/internal/contextutil"
	"studyrag/internal/lexical"
	"studyrag/internal/vecindex"
)

// ChunkFunc converts a raw document into chunks. It decouples the store from
// the chunker implementation.
type ChunkFunc func(content []byte, collection, filename string) ([]Chunk, error)

// Source identifies one raw document available for (re-)ingestion.
type Source struct {
	Collection string
	Path       string
}

// state is an immutable snapshot of the corpus visible to readers.
type state struct {
	chunks []Chunk
	byID   map[string]int
}

// Store owns the authoritative on-disk snapshot of the corpus plus the
// lifecycle of both indexes.
//
// Writers (Add, Clear, RebuildFromSources) are serialized by a mutex; readers
// get snapshot isolation through atomically swapped state and index
// instances, so a query sees either the pre-update or fully-updated corpus,
// never a partial one.
type Store struct {
	snapshotPath string
	vec          *vecindex.Index

	mu    sync.Mutex // single-writer discipline
	state atomic.Pointer[state]
	lex   atomic.Pointer[lexical.Index]
}

// NewStore creates a store persisting its snapshot at snapshotPath and
// propagating chunks into the given vector index.
func NewStore(snapshotPath string, vec *vecindex.Index) *Store {
	s := &Store{
		snapshotPath: snapshotPath,
		vec:          vec,
	}
	s.state.Store(&state{byID: make(map[string]int)})
	return s
}

// Load restores the corpus snapshot and the vector index from disk. A missing
// snapshot is not an error: the store starts empty and index creation is
// deferred until the first Add.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logger := contextutil.LoggerFromContext(ctx)

	chunks, err := readSnapshot(s.snapshotPath)
	if err != nil {
		return err
	}

	if err := s.vec.Load(ctx); err != nil {
		return fmt.Errorf("failed to load vector index: %w", err)
	}

	s.swapState(chunks)
	if len(chunks) > 0 {
		s.lex.Store(lexical.Build(lexicalDocs(chunks)))
	}

	logger.InfoContext(ctx, "corpus loaded", "path", s.snapshotPath, "chunks", len(chunks))
	return nil
}

// Add appends chunks to the corpus, persists the snapshot, adds the chunks to
// the vector index and rebuilds the lexical index. Chunks whose id is already
// present are skipped, which makes re-ingestion of an unchanged document a
// no-op. On failure the store is left at the last durable snapshot.
func (s *Store) Add(ctx context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(ctx, chunks)
}

func (s *Store) addLocked(ctx context.Context, chunks []Chunk) error {
	logger := contextutil.LoggerFromContext(ctx)
	cur := s.state.Load()

	// Drop chunks already in the corpus; uniqueness holds across all
	// collections, not per collection.
	fresh := make([]Chunk, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		if _, ok := cur.byID[chunk.ID]; ok {
			continue
		}
		if _, ok := seen[chunk.ID]; ok {
			return fmt.Errorf("duplicate chunk id in batch: %s", chunk.ID)
		}
		seen[chunk.ID] = struct{}{}
		fresh = append(fresh, chunk)
	}
	if len(fresh) == 0 {
		logger.DebugContext(ctx, "no new chunks to add", "offered", len(chunks))
		return nil
	}

	// Embed before mutating anything: an exhausted provider leaves the
	// store untouched.
	texts := make([]string, len(fresh))
	for i, chunk := range fresh {
		texts[i] = chunk.Text
	}
	vectors, err := s.vec.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(fresh) {
		return fmt.Errorf("%w: embedding count mismatch: expected %d, got %d",
			vecindex.ErrIndexBuild, len(fresh), len(vectors))
	}

	base := len(cur.chunks)
	items := make([]vecindex.Item, len(fresh))
	for i := range fresh {
		fresh[i].Embedding = vectors[i]
		items[i] = vecindex.Item{
			ID:         fresh[i].ID,
			Seq:        base + i,
			Collection: fresh[i].Collection,
			Source:     fresh[i].Source,
			Vector:     vectors[i],
		}
	}

	updated := make([]Chunk, 0, base+len(fresh))
	updated = append(updated, cur.chunks...)
	updated = append(updated, fresh...)

	if err := writeSnapshot(s.snapshotPath, updated); err != nil {
		return err
	}

	if err := s.vec.Add(ctx, items); err != nil {
		// Readers still see the pre-update state; rewrite the snapshot so
		// the durable file matches it again.
		if rbErr := writeSnapshot(s.snapshotPath, cur.chunks); rbErr != nil {
			logger.ErrorContext(ctx, "snapshot rollback failed", "error", rbErr)
			return errors.Join(err, rbErr)
		}
		return err
	}

	// Publish only after the vector index holds the new chunks, so a
	// concurrent query never observes a corpus neither index contains.
	// Lexical statistics are global, so the index is rebuilt from the full
	// corpus off to the side and swapped in last.
	s.swapState(updated)
	s.lex.Store(lexical.Build(lexicalDocs(updated)))

	logger.InfoContext(ctx, "chunks added", "new", len(fresh), "total", len(updated))
	return nil
}

// Clear deletes the corpus snapshot and all index artifacts and resets the
// in-memory state. This is the disaster-recovery / schema-migration path.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := os.Remove(s.snapshotPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove snapshot: %v", ErrPersistence, err)
	}
	if err := s.vec.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear vector index: %w", err)
	}

	s.swapState(nil)
	s.lex.Store(nil)

	logger.InfoContext(ctx, "corpus cleared", "path", s.snapshotPath)
	return nil
}

// RebuildFromSources wipes the store and feeds every source document back
// through the chunker. Per-document failures are logged and skipped; the
// returned counts report how many documents were attempted and succeeded.
func (s *Store) RebuildFromSources(ctx context.Context, sources []Source, chunk ChunkFunc) (attempted, succeeded int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logger := contextutil.LoggerFromContext(ctx)

	if err := s.clearLocked(ctx); err != nil {
		return 0, 0, err
	}

	for _, src := range sources {
		select {
		case <-ctx.Done():
			return attempted, succeeded, ctx.Err()
		default:
		}

		attempted++

		content, err := os.ReadFile(src.Path)
		if err != nil {
			logger.WarnContext(ctx, "skipping unreadable source", "path", src.Path, "error", err)
			continue
		}

		chunks, err := chunk(content, src.Collection, src.Path)
		if err != nil {
			logger.WarnContext(ctx, "skipping unparseable source", "path", src.Path, "error", err)
			continue
		}

		if err := s.addLocked(ctx, chunks); err != nil {
			logger.WarnContext(ctx, "failed to add source", "path", src.Path, "error", err)
			continue
		}

		succeeded++
	}

	logger.InfoContext(ctx, "rebuild completed", "attempted", attempted, "succeeded", succeeded)
	return attempted, succeeded, nil
}

// swapState atomically publishes a new reader snapshot.
func (s *Store) swapState(chunks []Chunk) {
	byID := make(map[string]int, len(chunks))
	for i, chunk := range chunks {
		byID[chunk.ID] = i
	}
	s.state.Store(&state{chunks: chunks, byID: byID})
}

// Count returns the number of chunks in the corpus.
func (s *Store) Count() int {
	return len(s.state.Load().chunks)
}

// Chunks returns the current corpus in insertion order. The returned slice
// is a shared immutable snapshot; callers must not modify it.
func (s *Store) Chunks() []Chunk {
	return s.state.Load().chunks
}

// ChunkByID looks up a chunk and its corpus position by id.
func (s *Store) ChunkByID(id string) (Chunk, int, bool) {
	st := s.state.Load()
	i, ok := st.byID[id]
	if !ok {
		return Chunk{}, 0, false
	}
	return st.chunks[i], i, true
}

// Lexical returns the current lexical index instance, or nil when the corpus
// is empty.
func (s *Store) Lexical() *lexical.Index {
	return s.lex.Load()
}

// Vector returns the vector index.
func (s *Store) Vector() *vecindex.Index {
	return s.vec
}

// CollectionCounts returns the number of chunks per collection.
func (s *Store) CollectionCounts() map[string]int {
	counts := make(map[string]int)
	for _, chunk := range s.state.Load().chunks {
		counts[chunk.Collection]++
	}
	return counts
}

// lexicalDocs adapts chunks to lexical index documents.
func lexicalDocs(chunks []Chunk) []lexical.Document {
	docs := make([]lexical.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = lexical.Document{ID: chunk.ID, Text: chunk.Text, Position: i}
	}
	return docs
}

package vecindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"studyrag/internal/contextutil"
)

// LocalBackend persists vectors in a SQLite file inside the index directory
// and mirrors them in memory for cosine search. Newly upserted vectors are
// searchable immediately and survive a restart via Load.
type LocalBackend struct {
	dir string
	db  *sql.DB

	mu    sync.RWMutex
	items []Item         // insertion order (by seq)
	byID  map[string]int // id -> index into items
}

// NewLocalBackend opens (or creates) the vector index directory at dir.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vector index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, "vectors.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}

	db.SetMaxOpenConns(1) // single file, serialized writes
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vectors (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		collection TEXT NOT NULL,
		source TEXT NOT NULL,
		embedding BLOB NOT NULL
	);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create vectors table: %w", err)
	}

	return &LocalBackend{
		dir:  dir,
		db:   db,
		byID: make(map[string]int),
	}, nil
}

// Close closes the underlying database.
func (b *LocalBackend) Close() error {
	return b.db.Close()
}

// Load reads all persisted vectors into memory, ordered by insertion.
func (b *LocalBackend) Load(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	rows, err := b.db.QueryContext(ctx,
		"SELECT id, seq, collection, source, embedding FROM vectors ORDER BY seq")
	if err != nil {
		return fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var items []Item
	for rows.Next() {
		var item Item
		var blob []byte
		if err := rows.Scan(&item.ID, &item.Seq, &item.Collection, &item.Source, &blob); err != nil {
			return fmt.Errorf("failed to scan vector row: %w", err)
		}
		item.Vector = decodeVector(blob)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	b.mu.Lock()
	b.items = items
	b.byID = make(map[string]int, len(items))
	for i, item := range items {
		b.byID[item.ID] = i
	}
	b.mu.Unlock()

	logger.InfoContext(ctx, "vector index loaded", "dir", b.dir, "vectors", len(items))
	return nil
}

// Upsert persists items and makes them searchable without a reload.
func (b *LocalBackend) Upsert(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, item := range items {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO vectors (id, seq, collection, source, embedding) VALUES (?, ?, ?, ?, ?)",
			item.ID, item.Seq, item.Collection, item.Source, encodeVector(item.Vector),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to upsert vector %s: %w", item.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vectors: %w", err)
	}

	b.mu.Lock()
	for _, item := range items {
		if i, ok := b.byID[item.ID]; ok {
			b.items[i] = item
		} else {
			b.byID[item.ID] = len(b.items)
			b.items = append(b.items, item)
		}
	}
	b.mu.Unlock()

	return nil
}

// Search scans the in-memory mirror and returns the k most similar items.
// Equal similarities are broken by insertion order, earlier wins.
func (b *LocalBackend) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	b.mu.RLock()
	hits := make([]Hit, 0, len(b.items))
	for _, item := range b.items {
		hits = append(hits, Hit{
			ID:    item.ID,
			Score: cosine(vector, item.Vector),
			Seq:   item.Seq,
		})
	}
	b.mu.RUnlock()

	sort.SliceStable(hits, func(a, c int) bool {
		if hits[a].Score != hits[c].Score {
			return hits[a].Score > hits[c].Score
		}
		return hits[a].Seq < hits[c].Seq
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Clear removes all persisted vectors and resets the in-memory mirror.
func (b *LocalBackend) Clear(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, "DELETE FROM vectors"); err != nil {
		return fmt.Errorf("failed to clear vectors: %w", err)
	}

	b.mu.Lock()
	b.items = nil
	b.byID = make(map[string]int)
	b.mu.Unlock()

	return nil
}

// Count returns the number of stored vectors.
func (b *LocalBackend) Count(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items), nil
}

// cosine computes the cosine similarity between two vectors.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// encodeVector packs a float32 vector into a little-endian byte blob.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks a little-endian byte blob into a float32 vector.
func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

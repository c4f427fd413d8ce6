package vecindex

import (
	"context"
	"math"
	"testing"
)

func newTestLocalBackend(t *testing.T) *LocalBackend {
	t.Helper()
	backend, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}
	t.Cleanup(func() {
		_ = backend.Close()
	})
	return backend
}

func TestLocalBackend_UpsertThenSearch(t *testing.T) {
	backend := newTestLocalBackend(t)
	ctx := context.Background()

	items := []Item{
		{ID: "c0", Seq: 0, Collection: "networks", Source: "a.md", Vector: []float32{1, 0, 0}},
		{ID: "c1", Seq: 1, Collection: "networks", Source: "a.md", Vector: []float32{0, 1, 0}},
		{ID: "c2", Seq: 2, Collection: "algebra", Source: "b.md", Vector: []float32{0.9, 0.1, 0}},
	}
	if err := backend.Upsert(ctx, items); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// No reload needed: new items are searchable immediately.
	hits, err := backend.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search() returned %d hits, want 2", len(hits))
	}
	if hits[0].ID != "c0" {
		t.Errorf("Search() top hit = %s, want c0", hits[0].ID)
	}
	if hits[1].ID != "c2" {
		t.Errorf("Search() second hit = %s, want c2", hits[1].ID)
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("Search() hits out of order: %f < %f", hits[0].Score, hits[1].Score)
	}
}

func TestLocalBackend_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := NewLocalBackend(dir)
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}
	items := []Item{
		{ID: "c0", Seq: 0, Collection: "networks", Source: "a.md", Vector: []float32{0.5, 0.5}},
		{ID: "c1", Seq: 1, Collection: "networks", Source: "a.md", Vector: []float32{-1, 0}},
	}
	if err := backend.Upsert(ctx, items); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewLocalBackend(dir)
	if err != nil {
		t.Fatalf("NewLocalBackend() reopen error = %v", err)
	}
	defer func() {
		_ = reopened.Close()
	}()
	if err := reopened.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	count, err := reopened.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() after reopen = %d, want 2", count)
	}

	hits, err := reopened.Search(ctx, []float32{0.5, 0.5}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "c0" {
		t.Errorf("Search() after reopen = %v, want c0", hits)
	}
	if math.Abs(hits[0].Score-1) > 1e-6 {
		t.Errorf("Search() identical-direction score = %f, want 1", hits[0].Score)
	}
}

func TestLocalBackend_UpsertReplacesByID(t *testing.T) {
	backend := newTestLocalBackend(t)
	ctx := context.Background()

	if err := backend.Upsert(ctx, []Item{{ID: "c0", Seq: 0, Collection: "x", Source: "s", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := backend.Upsert(ctx, []Item{{ID: "c0", Seq: 0, Collection: "x", Source: "s", Vector: []float32{0, 1}}}); err != nil {
		t.Fatalf("Upsert() replace error = %v", err)
	}

	count, _ := backend.Count(ctx)
	if count != 1 {
		t.Errorf("Count() after replace = %d, want 1", count)
	}

	hits, err := backend.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if math.Abs(hits[0].Score-1) > 1e-6 {
		t.Errorf("Search() score = %f, want 1 against replaced vector", hits[0].Score)
	}
}

func TestLocalBackend_TieBreakBySeq(t *testing.T) {
	backend := newTestLocalBackend(t)
	ctx := context.Background()

	// Same vector, same similarity: lower seq wins.
	items := []Item{
		{ID: "later", Seq: 5, Collection: "x", Source: "s", Vector: []float32{1, 1}},
		{ID: "earlier", Seq: 2, Collection: "x", Source: "s", Vector: []float32{1, 1}},
	}
	if err := backend.Upsert(ctx, items); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	hits, err := backend.Search(ctx, []float32{1, 1}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if hits[0].ID != "earlier" {
		t.Errorf("Search() tie broken in favor of %s, want earlier", hits[0].ID)
	}
}

func TestLocalBackend_Clear(t *testing.T) {
	backend := newTestLocalBackend(t)
	ctx := context.Background()

	if err := backend.Upsert(ctx, []Item{{ID: "c0", Seq: 0, Collection: "x", Source: "s", Vector: []float32{1}}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := backend.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	count, err := backend.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() after clear = %d, want 0", count)
	}

	// Clear must also wipe the persisted rows.
	if err := backend.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	count, _ = backend.Count(ctx)
	if count != 0 {
		t.Errorf("Count() after clear and reload = %d, want 0", count)
	}
}

func TestLocalBackend_SearchInvalidK(t *testing.T) {
	backend := newTestLocalBackend(t)

	if _, err := backend.Search(context.Background(), []float32{1}, 0); err == nil {
		t.Error("Search() with k=0 expected error")
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosine() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeVector(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.14159, 0}
	got := decodeVector(encodeVector(vec))
	if len(got) != len(vec) {
		t.Fatalf("decodeVector() length = %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("roundtrip[%d] = %f, want %f", i, got[i], vec[i])
		}
	}
}

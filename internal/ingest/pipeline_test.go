package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"studyrag/internal/corpus"
	"studyrag/internal/fetcher"
	"studyrag/internal/vecindex"
)

type stubEmbedder struct{}

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 1}
	}
	return vectors, nil
}

type memBackend struct {
	items []vecindex.Item
}

func (b *memBackend) Load(ctx context.Context) error { return nil }

func (b *memBackend) Upsert(ctx context.Context, items []vecindex.Item) error {
	b.items = append(b.items, items...)
	return nil
}

func (b *memBackend) Search(ctx context.Context, vector []float32, k int) ([]vecindex.Hit, error) {
	return nil, nil
}

func (b *memBackend) Clear(ctx context.Context) error { b.items = nil; return nil }

func (b *memBackend) Count(ctx context.Context) (int, error) { return len(b.items), nil }

func newTestPipeline(t *testing.T, materialsRoot string) (*Pipeline, *corpus.Store) {
	t.Helper()
	store := corpus.NewStore(
		filepath.Join(t.TempDir(), "corpus.json"),
		vecindex.New(&stubEmbedder{}, &memBackend{}, 1),
	)
	materials, err := fetcher.NewManager(materialsRoot)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return NewPipeline(materials, store), store
}

func writeMaterial(t *testing.T, root, collection, name, content string) {
	t.Helper()
	dir := filepath.Join(root, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPipeline_IngestAll(t *testing.T) {
	root := t.TempDir()
	writeMaterial(t, root, "networks", "lecture1.md", "# IP\n\nAddressing basics.\n\n# Routing\n\nPath selection.\n")
	writeMaterial(t, root, "networks", "empty.md", "   \n")
	writeMaterial(t, root, "networks", "broken.pdf", "%PDF-1.4 not actually a pdf")

	pipeline, store := newTestPipeline(t, root)
	ctx := context.Background()

	report, err := pipeline.IngestAll(ctx)
	if err != nil {
		t.Fatalf("IngestAll() error = %v", err)
	}
	if report.Attempted != 3 || report.Succeeded != 2 || report.Skipped != 1 {
		t.Errorf("IngestAll() report = %+v, want attempted 3, succeeded 2, skipped 1", report)
	}
	if store.Count() != 2 {
		t.Errorf("Count() = %d, want 2 chunks from lecture1.md", store.Count())
	}

	// A second run over unchanged materials adds nothing.
	if _, err := pipeline.IngestAll(ctx); err != nil {
		t.Fatalf("IngestAll() repeat error = %v", err)
	}
	if store.Count() != 2 {
		t.Errorf("Count() after repeat ingest = %d, want 2", store.Count())
	}
}

func TestPipeline_IngestDocument_MissingFile(t *testing.T) {
	pipeline, _ := newTestPipeline(t, t.TempDir())

	err := pipeline.IngestDocument(context.Background(), "networks", "/nonexistent/file.md")
	if err == nil {
		t.Fatal("IngestDocument() expected error for missing file")
	}
}

func TestPipeline_RebuildAll(t *testing.T) {
	root := t.TempDir()
	writeMaterial(t, root, "networks", "lecture1.md", "# IP\n\nAddressing basics.\n")
	writeMaterial(t, root, "algebra", "groups.md", "# Groups\n\nClosure and identity.\n")

	pipeline, store := newTestPipeline(t, root)
	ctx := context.Background()

	if _, err := pipeline.IngestAll(ctx); err != nil {
		t.Fatalf("IngestAll() error = %v", err)
	}
	before := store.Count()

	report, err := pipeline.RebuildAll(ctx)
	if err != nil {
		t.Fatalf("RebuildAll() error = %v", err)
	}
	if report.Attempted != 2 || report.Succeeded != 2 {
		t.Errorf("RebuildAll() report = %+v, want attempted 2, succeeded 2", report)
	}
	if store.Count() != before {
		t.Errorf("Count() after rebuild = %d, want %d", store.Count(), before)
	}

	counts := store.CollectionCounts()
	if counts["networks"] != 1 || counts["algebra"] != 1 {
		t.Errorf("CollectionCounts() after rebuild = %v", counts)
	}
}

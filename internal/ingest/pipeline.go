package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"studyrag/internal/contextutil"
	"studyrag/internal/corpus"
	"studyrag/internal/fetcher"
)

// Pipeline orchestrates ingestion: scan the materials tree, chunk each
// document and feed the chunks into the corpus store.
type Pipeline struct {
	materials *fetcher.Manager
	chunker   *Chunker
	store     *corpus.Store
}

// Report summarizes one ingestion run.
type Report struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(materials *fetcher.Manager, store *corpus.Store) *Pipeline {
	return &Pipeline{
		materials: materials,
		chunker:   NewChunker(),
		store:     store,
	}
}

// IngestDocument ingests a single document file into the given collection.
// Unchanged documents are a no-op thanks to deterministic chunk ids.
func (p *Pipeline) IngestDocument(ctx context.Context, collection, path string) error {
	logger := contextutil.LoggerFromContext(ctx)

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrIngestion, path, err)
	}

	filename := filepath.Base(path)
	chunks, err := p.chunker.ChunkDocument(content, collection, filename)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		logger.WarnContext(ctx, "document produced no chunks", "collection", collection, "name", filename)
		return nil
	}

	if err := p.store.Add(ctx, chunks); err != nil {
		return fmt.Errorf("failed to add %s: %w", filename, err)
	}

	logger.InfoContext(ctx, "ingested document", "collection", collection, "name", filename, "chunks", len(chunks))
	return nil
}

// IngestAll ingests every document in every collection. Per-document
// ingestion failures are skipped and counted; a skipped document never stops
// the run.
func (p *Pipeline) IngestAll(ctx context.Context) (Report, error) {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := p.materials.ScanAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to scan materials: %w", err)
	}

	logger.InfoContext(ctx, "starting ingestion", "total_files", len(files))

	var report Report
	for _, file := range files {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		report.Attempted++
		if err := p.IngestDocument(ctx, file.Collection, file.AbsPath); err != nil {
			report.Skipped++
			if errors.Is(err, ErrIngestion) {
				logger.WarnContext(ctx, "skipping unparseable document", "collection", file.Collection, "name", file.Name, "error", err)
				continue
			}
			logger.ErrorContext(ctx, "failed to ingest document", "collection", file.Collection, "name", file.Name, "error", err)
			continue
		}
		report.Succeeded++
	}

	logger.InfoContext(ctx, "ingestion completed", "attempted", report.Attempted, "succeeded", report.Succeeded, "skipped", report.Skipped)
	return report, nil
}

// RebuildAll wipes the corpus and both indexes and re-ingests every document
// from the materials tree. This is the recovery path for schema changes or a
// corrupt snapshot.
func (p *Pipeline) RebuildAll(ctx context.Context) (Report, error) {
	files, err := p.materials.ScanAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to scan materials: %w", err)
	}

	sources := make([]corpus.Source, len(files))
	for i, file := range files {
		sources[i] = corpus.Source{Collection: file.Collection, Path: file.AbsPath}
	}

	attempted, succeeded, err := p.store.RebuildFromSources(ctx, sources, func(content []byte, collection, path string) ([]corpus.Chunk, error) {
		return p.chunker.ChunkDocument(content, collection, filepath.Base(path))
	})
	report := Report{Attempted: attempted, Succeeded: succeeded, Skipped: attempted - succeeded}
	if err != nil {
		return report, err
	}
	return report, nil
}

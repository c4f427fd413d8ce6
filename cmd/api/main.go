package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"studyrag/internal/config"
	"studyrag/internal/corpus"
	"studyrag/internal/fetcher"
	"studyrag/internal/http"
	"studyrag/internal/ingest"
	"studyrag/internal/llm"
	"studyrag/internal/rag"
	"studyrag/internal/retrieval"
	"studyrag/internal/vecindex"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx := context.Background()

	// Embedding client, validated fail-fast against the configured vector size
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingVectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.EmbeddingVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.EmbeddingVectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.EmbeddingVectorSize)

	// Vector index backend
	var backend vecindex.Backend
	switch cfg.VectorBackend {
	case "qdrant":
		backend, err = vecindex.NewQdrantBackend(cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbeddingVectorSize)
		if err != nil {
			log.Fatalf("Failed to create Qdrant backend: %v", err)
		}
		slog.Info("Qdrant backend ready", "url", cfg.QdrantURL, "collection", cfg.QdrantCollection)
	default:
		local, err := vecindex.NewLocalBackend(cfg.VectorIndexDir)
		if err != nil {
			log.Fatalf("Failed to create local vector backend: %v", err)
		}
		defer func() {
			_ = local.Close()
		}()
		backend = local
		slog.Info("Local vector backend ready", "dir", cfg.VectorIndexDir)
	}
	vecIdx := vecindex.New(embedder, backend, cfg.EmbedMaxRetries)

	// Corpus store: restore the snapshot and both indexes
	store := corpus.NewStore(cfg.SnapshotPath, vecIdx)
	if err := store.Load(ctx); err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}
	slog.Info("Corpus loaded", "chunks", store.Count())

	// Materials tree and ingestion pipeline
	materials, err := fetcher.NewManager(cfg.MaterialsDir)
	if err != nil {
		log.Fatalf("Failed to initialize materials manager: %v", err)
	}
	pipeline := ingest.NewPipeline(materials, store)
	slog.Info("Materials manager initialized", "root", materials.Root())

	// Retrieval and answer generation
	ensemble := retrieval.NewEnsemble(store, cfg.RetrievalK, cfg.QueryTimeout)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
	engine := rag.NewEngine(ensemble, llmClient, cfg.MaxContextChars)
	slog.Info("Engine initialized", "k", cfg.RetrievalK, "max_context_chars", cfg.MaxContextChars)

	// Create router with dependencies
	deps := &http.Deps{
		Engine:   engine,
		Pipeline: pipeline,
		Store:    store,
	}
	router := http.NewRouter(deps)

	// Ingest any new materials in the background after the router is ready
	go func() {
		ingestCtx := context.Background()
		slog.Info("Starting background ingestion of materials")
		report, err := pipeline.IngestAll(ingestCtx)
		if err != nil {
			slog.Error("Ingestion completed with errors", "error", err)
			return
		}
		slog.Info("Ingestion completed",
			"attempted", report.Attempted,
			"succeeded", report.Succeeded,
			"skipped", report.Skipped,
		)
	}()

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}

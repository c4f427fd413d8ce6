package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Retrieval engine
	DataDir          string // root for the corpus snapshot and the vector index directory
	SnapshotPath     string // corpus snapshot file (derived from DataDir)
	VectorIndexDir   string // vector index directory (derived from DataDir)
	MaterialsDir     string // root of per-collection source documents
	VectorBackend    string // "local" or "qdrant"
	MaxContextChars  int    // context builder budget
	RetrievalK       int    // per-index top-k
	QueryTimeout     time.Duration
	EmbedMaxRetries  int

	// Embedding provider
	EmbeddingBaseURL    string
	EmbeddingModelName  string
	EmbeddingVectorSize int

	// Answer generation
	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string

	// Qdrant (only used when VectorBackend == "qdrant")
	QdrantURL        string
	QdrantCollection string

	// Server / logging
	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or a parent directory, it is
// loaded automatically; variables already set take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Walk up a few levels looking for a .env next to go.mod
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	dataDir := getEnv("DATA_DIR", "./data")

	cfg := &Config{
		DataDir:            dataDir,
		SnapshotPath:       filepath.Join(dataDir, "corpus.json"),
		VectorIndexDir:     filepath.Join(dataDir, "vector_index"),
		MaterialsDir:       getEnv("MATERIALS_DIR", "./notes"),
		VectorBackend:      getEnv("VECTOR_BACKEND", "local"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "mxbai-embed-large-v1"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "https://openrouter.ai/api"),
		LLMModelName:       getEnv("LLM_MODEL", "deepseek/deepseek-chat-v3.1:free"),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "study_materials"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}

	switch cfg.VectorBackend {
	case "local", "qdrant":
	default:
		return nil, fmt.Errorf("VECTOR_BACKEND must be \"local\" or \"qdrant\", got %q", cfg.VectorBackend)
	}

	// EMBEDDING_VECTOR_SIZE must match the output dimension of the embedding
	// model. If the model changes, the vector index must be rebuilt.
	vectorSizeStr := getEnv("EMBEDDING_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE must be greater than 0")
	}
	cfg.EmbeddingVectorSize = vectorSize

	cfg.MaxContextChars, err = getEnvInt("MAX_CONTEXT_CHARS", 8000)
	if err != nil {
		return nil, err
	}
	cfg.RetrievalK, err = getEnvInt("RETRIEVAL_K", 10)
	if err != nil {
		return nil, err
	}
	cfg.EmbedMaxRetries, err = getEnvInt("EMBED_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	timeoutMs, err := getEnvInt("QUERY_TIMEOUT_MS", 5000)
	if err != nil {
		return nil, err
	}
	cfg.QueryTimeout = time.Duration(timeoutMs) * time.Millisecond

	switch getEnv("LOG_LEVEL", "info") {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	// Create the data directory up front so snapshot writes don't fail later.
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return n, nil
}

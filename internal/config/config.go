package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL           string
	LLMModelName         string
	LLMAPIKey            string
	SummaryModelName     string
	VisionModelName      string
	EmbeddingBaseURL     string
	EmbeddingModelName   string
	RerankBaseURL        string
	RerankModelName      string
	RerankBackend        string
	RerankTopN           int
	DBPath               string
	WorkDir              string
	VectorBackend        string
	QdrantURL            string
	QdrantCollection     string
	QdrantVectorSize     int
	RetrievalK           int
	ContextWindowTokens  int
	SummaryConcurrency   int
	MaxConcurrentJobs    int
	LLMRequestsPerSecond float64
	LLMTimeoutSeconds    int
	AssignPersonas       bool
	APIPort              string
	LogLevel             slog.Level
	LogFormat            string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or a parent, it is loaded first;
// variables already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
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

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "gemma2"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		SummaryModelName:   getEnv("SUMMARY_MODEL", "phi3:3.8b-mini-128k-instruct-q8_0"),
		VisionModelName:    getEnv("VISION_MODEL", "llava:13b"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "mxbai-embed-large"),
		RerankBaseURL:      getEnv("RERANK_BASE_URL", "http://localhost:8082"),
		RerankModelName:    getEnv("RERANK_MODEL", "mxbai-rerank-base-v1"),
		RerankBackend:      strings.ToLower(getEnv("RERANK_BACKEND", "crossencoder")),
		DBPath:             getEnv("DB_PATH", "./data/dpia-ai.db"),
		WorkDir:            getEnv("WORK_DIR", "./data/work"),
		VectorBackend:      strings.ToLower(getEnv("VECTOR_BACKEND", "qdrant")),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "summaries"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"RERANK_TOP_N", 10, &cfg.RerankTopN},
		{"RETRIEVAL_K", 8, &cfg.RetrievalK},
		{"CONTEXT_WINDOW_TOKENS", 8000, &cfg.ContextWindowTokens},
		{"SUMMARY_CONCURRENCY", 5, &cfg.SummaryConcurrency},
		{"MAX_CONCURRENT_JOBS", 2, &cfg.MaxConcurrentJobs},
		{"LLM_TIMEOUT_SECONDS", 300, &cfg.LLMTimeoutSeconds},
	}
	for _, item := range ints {
		v, err := getPositiveInt(item.key, item.def)
		if err != nil {
			return nil, err
		}
		*item.dest = v
	}

	// QDRANT_VECTOR_SIZE must match the output size of the embedding model.
	// If it changes, the collection must be recreated.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	rps, err := strconv.ParseFloat(getEnv("LLM_REQUESTS_PER_SECOND", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("LLM_REQUESTS_PER_SECOND must be a number: %w", err)
	}
	if rps < 0 {
		return nil, fmt.Errorf("LLM_REQUESTS_PER_SECOND must not be negative")
	}
	cfg.LLMRequestsPerSecond = rps

	cfg.AssignPersonas, err = strconv.ParseBool(getEnv("ASSIGN_PERSONAS", "true"))
	if err != nil {
		return nil, fmt.Errorf("ASSIGN_PERSONAS must be a boolean: %w", err)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	if cfg.VectorBackend != "qdrant" && cfg.VectorBackend != "memory" {
		return nil, fmt.Errorf("VECTOR_BACKEND must be qdrant or memory, got %q", cfg.VectorBackend)
	}

	switch cfg.RerankBackend {
	case "crossencoder", "lexical", "none":
	default:
		return nil, fmt.Errorf("RERANK_BACKEND must be crossencoder, lexical or none, got %q", cfg.RerankBackend)
	}

	for _, dir := range []string{filepath.Dir(cfg.DBPath), cfg.WorkDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
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

func getPositiveInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return v, nil
}

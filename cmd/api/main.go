package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dpia-ai/internal/config"
	"dpia-ai/internal/handlers"
	"dpia-ai/internal/http"
	"dpia-ai/internal/indexer"
	"dpia-ai/internal/jobs"
	"dpia-ai/internal/llm"
	"dpia-ai/internal/rag"
	"dpia-ai/internal/report"
	"dpia-ai/internal/storage"
	"dpia-ai/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API ingests project documents and generates Data Protection Impact
// Assessment reports and chat answers grounded in them.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: DPIA AI API
//   description: |
//     Upload documents into an owner/project scope, then submit reportRun or
//     chatTurn jobs and poll them until they finish.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	blockRepo := storage.NewBlockRepo(db)
	jobRepo := storage.NewJobRepo(db)
	reportRepo := storage.NewReportRepo(db)

	var vectorStore vectorstore.VectorStore
	switch cfg.VectorBackend {
	case "memory":
		vectorStore = vectorstore.NewMemoryStore(cfg.QdrantVectorSize)
		slog.Warn("Using in-memory summary index; entries are lost on restart")
	default:
		qdrantStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		defer func() {
			_ = qdrantStore.Close()
		}()
		if err := qdrantStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection: %v", err)
		}
		vectorStore = qdrantStore
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)
	}

	// One throttle shared by every model client keeps the combined request
	// rate under LLM_REQUESTS_PER_SECOND.
	throttle := llm.NewThrottle(cfg.LLMRequestsPerSecond)
	clientOpts := []llm.Option{
		llm.WithTimeout(time.Duration(cfg.LLMTimeoutSeconds) * time.Second),
		llm.WithThrottle(throttle),
	}

	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize, clientOpts...)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d", cfg.QdrantVectorSize)
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	chatModel := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName, clientOpts...)
	summaryModel := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.SummaryModelName, clientOpts...)
	visionModel := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.VisionModelName, clientOpts...)

	pipeline := indexer.NewPipeline(blockRepo, vectorStore, embedder, summaryModel, visionModel, indexer.Options{
		Collection:         cfg.QdrantCollection,
		WorkDir:            cfg.WorkDir,
		SummaryConcurrency: cfg.SummaryConcurrency,
		Partition:          indexer.DefaultPartitionOptions(),
	})

	var scorer rag.Scorer
	switch cfg.RerankBackend {
	case "crossencoder":
		scorer = llm.NewRerankClient(cfg.RerankBaseURL, cfg.LLMAPIKey, cfg.RerankModelName, clientOpts...)
	case "lexical":
		scorer = rag.LexicalScorer{}
	}
	slog.Info("Re-ranker configured", "backend", cfg.RerankBackend, "top_n", cfg.RerankTopN)

	retriever := rag.NewRetriever(embedder, vectorStore, blockRepo, cfg.QdrantCollection, cfg.RetrievalK)
	reranker := rag.NewReranker(scorer, cfg.RerankTopN)
	sequencer := rag.NewSequencer(chatModel, cfg.ContextWindowTokens)
	generator := report.NewGenerator(retriever, reranker, sequencer, chatModel, report.Options{
		AssignPersonas: cfg.AssignPersonas,
		RetrievalK:     cfg.RetrievalK,
	})

	runner := jobs.NewRunner(jobRepo, reportRepo, generator, cfg.MaxConcurrentJobs)
	if _, err := runner.Recover(ctx); err != nil {
		log.Fatalf("Failed to recover jobs: %v", err)
	}
	slog.Info("Job runner ready", "max_concurrent", cfg.MaxConcurrentJobs)

	router := http.NewRouter(&http.Deps{
		Documents: pipeline,
		Jobs:      runner,
		Reports:   reportRepo,
		HealthChecks: map[string]handlers.Check{
			"database": db.PingContext,
			"vector_store": func(ctx context.Context) error {
				_, err := vectorStore.Count(ctx, cfg.QdrantCollection, nil)
				return err
			},
		},
	})

	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", server.Addr)
		slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to stop API server", "error", err)
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		slog.Error("Jobs still running at shutdown", "error", err)
	}
}

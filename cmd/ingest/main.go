// Command ingest loads every supported document below a directory into one
// scope of the summary index, using the same configuration as the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dpia-ai/internal/config"
	"dpia-ai/internal/indexer"
	"dpia-ai/internal/llm"
	"dpia-ai/internal/storage"
	"dpia-ai/internal/vectorstore"
)

var (
	ownerID     string
	containerID string
	usage       string
	clearFirst  bool
)

var rootCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Ingest a directory of documents into a scope",
	Long: `Walks dir for .md, .markdown and .txt files and ingests each one into the
scope given by --owner, --container and --usage. Documents already indexed in
the scope are skipped.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runIngest,
}

func init() {
	rootCmd.Flags().StringVar(&ownerID, "owner", "", "owner ID of the scope (required)")
	rootCmd.Flags().StringVar(&containerID, "container", "", "project ID of the scope, 0 for chat sessions (required)")
	rootCmd.Flags().StringVar(&usage, "usage", storage.UsageReport, "scope usage: report or chat")
	rootCmd.Flags().BoolVar(&clearFirst, "clear", false, "remove everything in the scope before ingesting")
	_ = rootCmd.MarkFlagRequired("owner")
	_ = rootCmd.MarkFlagRequired("container")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	scope := storage.Scope{OwnerID: ownerID, ContainerID: containerID, Usage: usage}
	if err := scope.Validate(); err != nil {
		return err
	}

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := storage.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if cfg.VectorBackend != "qdrant" {
		return errors.New("ingest needs a durable summary index; set VECTOR_BACKEND=qdrant")
	}
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		return fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	defer func() {
		_ = vectorStore.Close()
	}()
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		return fmt.Errorf("failed to ensure Qdrant collection: %w", err)
	}

	clientOpts := []llm.Option{
		llm.WithTimeout(time.Duration(cfg.LLMTimeoutSeconds) * time.Second),
		llm.WithThrottle(llm.NewThrottle(cfg.LLMRequestsPerSecond)),
	}
	pipeline := indexer.NewPipeline(
		storage.NewBlockRepo(db),
		vectorStore,
		llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize, clientOpts...),
		llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.SummaryModelName, clientOpts...),
		llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.VisionModelName, clientOpts...),
		indexer.Options{
			Collection:         cfg.QdrantCollection,
			WorkDir:            cfg.WorkDir,
			SummaryConcurrency: cfg.SummaryConcurrency,
			Partition:          indexer.DefaultPartitionOptions(),
		},
	)

	if clearFirst {
		if err := pipeline.ClearScope(ctx, scope); err != nil {
			return err
		}
	}

	docs, err := indexer.ScanDir(ctx, args[0])
	if err != nil {
		return err
	}
	slog.Info("Documents found", "dir", args[0], "count", len(docs))

	stats, err := pipeline.IngestAll(ctx, scope, docs)
	for _, s := range stats {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tskipped=%t\tblocks=%v\n", s.Document, s.Skipped, s.Blocks)
	}
	return err
}

package rag

import (
	"context"
	"fmt"
	"strings"

	"dpia-ai/internal/contextutil"
	"dpia-ai/internal/service"
	"dpia-ai/internal/storage"
	"dpia-ai/internal/vectorstore"
)

const (
	// DefaultK is the number of blocks retrieved when a request sets none.
	DefaultK = 8
	maxK     = 50
)

// Embedder turns texts into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever finds the raw blocks whose summaries are most similar to a query,
// restricted to one scope.
type Retriever struct {
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	blocks      storage.BlockStore
	collection  string
	defaultK    int
}

// NewRetriever creates a Retriever. defaultK <= 0 uses DefaultK.
func NewRetriever(embedder Embedder, vectorStore vectorstore.VectorStore, blocks storage.BlockStore, collection string, defaultK int) *Retriever {
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	return &Retriever{
		embedder:    embedder,
		vectorStore: vectorStore,
		blocks:      blocks,
		collection:  collection,
		defaultK:    defaultK,
	}
}

// Retrieve returns at most k blocks in scope, most similar first.
// A scope with no indexed content yields an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, req RetrieveRequest) ([]storage.Block, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(req.Query) == "" {
		return nil, &service.ValidationError{Field: "query", Message: "cannot be empty"}
	}
	if err := req.Scope.Validate(); err != nil {
		return nil, &service.ValidationError{Field: "scope", Message: err.Error()}
	}

	k := req.K
	if k <= 0 {
		k = r.defaultK
	}
	if k > maxK {
		k = maxK
	}

	embeddings, err := r.embedder.EmbedTexts(ctx, []string{req.Query})
	if err != nil {
		return nil, service.Classify(service.ErrExternalService, fmt.Errorf("failed to embed query: %w", err))
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	filters := req.Scope.Filters()
	if req.DocumentName != "" {
		filters["document_name"] = req.DocumentName
	}

	logger.DebugContext(ctx, "searching summary index", "filters", filters, "k", k)
	results, err := r.vectorStore.Search(ctx, r.collection, embeddings[0], k, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search summary index: %w", err)
	}
	if len(results) == 0 {
		logger.InfoContext(ctx, "no summaries in scope")
		return nil, nil
	}

	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.PointID
	}
	found, err := r.blocks.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocks: %w", err)
	}

	blocks := make([]storage.Block, 0, len(found))
	for _, b := range found {
		if b.Scope != req.Scope || (req.DocumentName != "" && b.DocumentName != req.DocumentName) {
			logger.WarnContext(ctx, "dropping block outside requested scope", "block_id", b.ID)
			continue
		}
		blocks = append(blocks, b)
	}
	if missing := len(results) - len(found); missing > 0 {
		logger.WarnContext(ctx, "summary entries without blocks", "missing", missing)
	}

	logger.InfoContext(ctx, "retrieval completed", "k_requested", k, "results", len(blocks))
	return blocks, nil
}

// Contents returns the raw content of each block, in order.
func Contents(blocks []storage.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Content
	}
	return out
}

package rag

import (
	"context"
	"errors"

	"dpia-ai/internal/contextutil"
	"dpia-ai/internal/llm"
	"dpia-ai/internal/service"
)

// DefaultRerankTopN is how many candidates a rerank keeps.
const DefaultRerankTopN = 10

var errNoScores = errors.New("scorer returned no results")

// Scorer scores documents against a query, most relevant first.
type Scorer interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]llm.RerankResult, error)
}

// Reranker reorders retrieved content by a relevance model that is
// independent of the embedding space used for retrieval.
type Reranker struct {
	scorer Scorer
	topN   int
}

// NewReranker creates a Reranker. topN <= 0 uses DefaultRerankTopN.
// A nil scorer keeps the retrieval order.
func NewReranker(scorer Scorer, topN int) *Reranker {
	if topN <= 0 {
		topN = DefaultRerankTopN
	}
	return &Reranker{scorer: scorer, topN: topN}
}

// Rerank returns candidates ordered by relevance to query, truncated to the
// top N. If the scorer fails the candidates come back in their original order.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []string) []string {
	if r == nil || len(candidates) == 0 {
		return candidates
	}
	if r.scorer == nil {
		return r.retrievalOrder(candidates)
	}
	logger := contextutil.LoggerFromContext(ctx)

	results, err := r.scorer.Rerank(ctx, query, candidates, r.topN)
	if err == nil && len(results) == 0 {
		err = errNoScores
	}
	if err != nil {
		logger.WarnContext(ctx, "keeping retrieval order",
			"error", service.Classify(service.ErrRerankUnavailable, err),
			"candidates", len(candidates),
		)
		return r.retrievalOrder(candidates)
	}

	out := make([]string, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(candidates) {
			logger.WarnContext(ctx, "keeping retrieval order",
				"error", service.ErrRerankUnavailable,
				"bad_index", res.Index,
			)
			return r.retrievalOrder(candidates)
		}
		out = append(out, candidates[res.Index])
	}
	logger.DebugContext(ctx, "reranked candidates", "candidates", len(candidates), "kept", len(out))
	return out
}

// retrievalOrder is the fallback: the first top N candidates as retrieved.
func (r *Reranker) retrievalOrder(candidates []string) []string {
	return candidates[:min(len(candidates), r.topN)]
}

package llm

import (
	"context"
	"fmt"
	"sort"
)

// RerankClient calls a cross-encoder rerank endpoint (llama.cpp, TEI and
// Jina-compatible /v1/rerank).
type RerankClient struct {
	BaseURL string
	APIKey  string
	Model   string
	opts    options
}

// NewRerankClient creates a new rerank client.
func NewRerankClient(baseURL, apiKey, model string, opts ...Option) *RerankClient {
	return &RerankClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		opts:    applyOptions(opts),
	}
}

// RerankRequest represents the request payload for the rerank API.
type RerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

// RerankResponseItem is one scored document in the rerank response.
type RerankResponseItem struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// RerankResponse represents the response from the rerank API.
type RerankResponse struct {
	Results []RerankResponseItem `json:"results"`
}

// Rerank scores each document against query and returns results ordered by
// descending score. topN <= 0 returns every document.
func (c *RerankClient) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	payload := RerankRequest{
		Model:     c.Model,
		Query:     query,
		Documents: documents,
	}
	if topN > 0 {
		payload.TopN = topN
	}

	var rerankResp RerankResponse
	url := fmt.Sprintf("%s/v1/rerank", c.BaseURL)
	if err := postJSON(ctx, c.opts, url, c.APIKey, payload, &rerankResp); err != nil {
		return nil, err
	}

	results := make([]RerankResult, 0, len(rerankResp.Results))
	seen := make(map[int]bool, len(rerankResp.Results))
	for _, item := range rerankResp.Results {
		if item.Index < 0 || item.Index >= len(documents) {
			return nil, fmt.Errorf("rerank result index %d out of range", item.Index)
		}
		if seen[item.Index] {
			continue
		}
		seen[item.Index] = true
		results = append(results, RerankResult{Index: item.Index, Score: item.RelevanceScore})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

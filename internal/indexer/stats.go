package indexer

import (
	"math"
	"sort"
	"unicode/utf8"

	"dpia-ai/internal/storage"
)

// charsPerToken approximates tokens from rune counts.
const charsPerToken = 4.0

// IngestStats describes the outcome of ingesting one document.
type IngestStats struct {
	Document string `json:"document"`
	// Skipped is true when the document was already indexed in the scope.
	Skipped bool                      `json:"skipped"`
	Blocks  map[storage.BlockType]int `json:"blocks,omitempty"`
	Tokens  BlockTokenStats           `json:"tokens"`
}

// BlockTokenStats summarises estimated token counts of stored block content.
type BlockTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

func newIngestStats(document string, blocks []storage.Block) *IngestStats {
	stats := &IngestStats{
		Document: document,
		Blocks:   make(map[storage.BlockType]int),
	}
	counts := make([]int, 0, len(blocks))
	for _, b := range blocks {
		stats.Blocks[b.Type]++
		counts = append(counts, estimateTokens(b.Content))
	}
	stats.Tokens = computeTokenStats(counts)
	return stats
}

// estimateTokens returns at least one token for any text.
func estimateTokens(s string) int {
	n := int(math.Round(float64(utf8.RuneCountInString(s)) / charsPerToken))
	if n < 1 {
		return 1
	}
	return n
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) BlockTokenStats {
	if len(tokenCounts) == 0 {
		return BlockTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range sorted {
		sum += count
	}
	mean := float64(sum) / float64(len(sorted))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return BlockTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sorted[p95Index],
	}
}

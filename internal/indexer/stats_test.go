package indexer

import (
	"strings"
	"testing"

	"dpia-ai/internal/storage"
)

func TestComputeTokenStats(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   BlockTokenStats
	}{
		{name: "empty", counts: nil, want: BlockTokenStats{}},
		{name: "single", counts: []int{7}, want: BlockTokenStats{Min: 7, Max: 7, Mean: 7, P95: 7}},
		{name: "unsorted", counts: []int{30, 10, 20}, want: BlockTokenStats{Min: 10, Max: 30, Mean: 20, P95: 30}},
		{
			name:   "twenty values",
			counts: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 100},
			want:   BlockTokenStats{Min: 1, Max: 100, Mean: 14.5, P95: 19},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeTokenStats(tt.counts); got != tt.want {
				t.Errorf("computeTokenStats() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewIngestStats(t *testing.T) {
	blocks := []storage.Block{
		{Type: storage.BlockText, Content: strings.Repeat("a", 400)},
		{Type: storage.BlockText, Content: "x"},
		{Type: storage.BlockTable, Content: strings.Repeat("b", 40)},
	}

	stats := newIngestStats("doc.md", blocks)
	if stats.Document != "doc.md" || stats.Skipped {
		t.Errorf("unexpected header %+v", stats)
	}
	if stats.Blocks[storage.BlockText] != 2 || stats.Blocks[storage.BlockTable] != 1 {
		t.Errorf("Blocks = %v", stats.Blocks)
	}
	if stats.Tokens.Min != 1 || stats.Tokens.Max != 100 {
		t.Errorf("Tokens = %+v", stats.Tokens)
	}
}

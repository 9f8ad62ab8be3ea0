package rag

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"dpia-ai/internal/llm"
)

const (
	lexicalLengthScale = 10.0
	maxLexicalScore    = 0.4
	titleMatchBonus    = 0.1
)

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
}

// LexicalScorer ranks documents by query term overlap. It needs no model
// server and stands in for the cross-encoder when none is deployed.
type LexicalScorer struct{}

// Rerank implements Scorer. Ties keep their input order.
func (LexicalScorer) Rerank(_ context.Context, query string, documents []string, topN int) ([]llm.RerankResult, error) {
	results := make([]llm.RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = llm.RerankResult{Index: i, Score: lexicalScore(query, doc)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// lexicalScore is term overlap normalized by document length, plus a bonus for
// query terms in the first line, which holds the section title of a text block.
func lexicalScore(query, doc string) float64 {
	queryTokens := filterStopwords(tokenize(query))
	if len(queryTokens) == 0 {
		return 0
	}
	docTokens := tokenize(doc)
	if len(docTokens) == 0 {
		return 0
	}

	freq := make(map[string]int, len(docTokens))
	for _, token := range docTokens {
		freq[token]++
	}
	var matches int
	for _, token := range queryTokens {
		matches += freq[token]
	}
	score := float64(matches) / float64(1+len(docTokens)) * lexicalLengthScale

	title, _, _ := strings.Cut(doc, "\n")
	titleSet := make(map[string]struct{})
	for _, token := range tokenize(title) {
		titleSet[token] = struct{}{}
	}
	for _, token := range queryTokens {
		if _, ok := titleSet[token]; ok {
			score += titleMatchBonus
		}
	}

	return min(score, maxLexicalScore)
}

func tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

func filterStopwords(tokens []string) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

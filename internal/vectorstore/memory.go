package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process VectorStore using brute-force cosine similarity.
// It is safe for concurrent readers and writers.
type MemoryStore struct {
	mu          sync.RWMutex
	dimension   int
	collections map[string]map[string]Point
}

// NewMemoryStore creates an empty store that accepts vectors of the given size.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension:   dimension,
		collections: make(map[string]map[string]Point),
	}
}

// Upsert inserts or replaces points by ID.
func (s *MemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	for _, p := range points {
		if len(p.Vec) != s.dimension {
			return fmt.Errorf("point %s has dimension %d, expected %d", p.ID, len(p.Vec), s.dimension)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Point)
		s.collections[collection] = coll
	}
	for _, p := range points {
		coll[p.ID] = Point{
			ID:   p.ID,
			Vec:  append([]float32(nil), p.Vec...),
			Meta: copyMeta(p.Meta),
		}
	}
	return nil
}

// Search returns the k most similar points that match every filter.
// Ties are broken by point ID so results are deterministic.
func (s *MemoryStore) Search(_ context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query has dimension %d, expected %d", len(query), s.dimension)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, p := range s.collections[collection] {
		if !matches(p.Meta, filters) {
			continue
		}
		results = append(results, SearchResult{
			PointID: p.ID,
			Score:   cosine(query, p.Vec),
			Meta:    copyMeta(p.Meta),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].PointID < results[j].PointID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns how many points match filters.
func (s *MemoryStore) Count(_ context.Context, collection string, filters map[string]any) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n uint64
	for _, p := range s.collections[collection] {
		if matches(p.Meta, filters) {
			n++
		}
	}
	return n, nil
}

// Delete removes points by their IDs.
func (s *MemoryStore) Delete(_ context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}

// DeleteByFilter removes every point matching filters.
func (s *MemoryStore) DeleteByFilter(_ context.Context, collection string, filters map[string]any) error {
	if len(filters) == 0 {
		return errEmptyFilter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	for id, p := range coll {
		if matches(p.Meta, filters) {
			delete(coll, id)
		}
	}
	return nil
}

func matches(meta, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := meta[key]
		if !ok || !sameValue(got, want) {
			return false
		}
	}
	return true
}

// sameValue compares payload values, treating all integer widths alike.
func sameValue(a, b any) bool {
	ai, aInt := asInt64(a)
	bi, bInt := asInt64(b)
	if aInt || bInt {
		return aInt && bInt && ai == bi
	}
	return a == b
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func copyMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func scopeMeta(owner, container, doc string) map[string]any {
	return map[string]any{
		"owner_id":      owner,
		"container_id":  container,
		"usage":         "report",
		"document_name": doc,
	}
}

func TestMemoryStore_ScopeFilterIsHard(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	// The closest point lives in another scope.
	err := store.Upsert(ctx, "c", []Point{
		{ID: "near-b", Vec: []float32{1, 0}, Meta: scopeMeta("1", "8", "doc.md")},
		{ID: "far-a", Vec: []float32{0, 1}, Meta: scopeMeta("1", "7", "doc.md")},
		{ID: "mid-a", Vec: []float32{1, 1}, Meta: scopeMeta("1", "7", "doc.md")},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	filters := map[string]any{"owner_id": "1", "container_id": "7", "usage": "report"}
	for k := 1; k <= 4; k++ {
		results, err := store.Search(ctx, "c", []float32{1, 0}, k, filters)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		for _, r := range results {
			if r.Meta["container_id"] != "7" {
				t.Errorf("k=%d: result %s crossed scope", k, r.PointID)
			}
		}
		if want := min(k, 2); len(results) != want {
			t.Errorf("k=%d: got %d results, want %d", k, len(results), want)
		}
	}

	results, _ := store.Search(ctx, "c", []float32{1, 0}, 2, filters)
	if results[0].PointID != "mid-a" {
		t.Errorf("Search() first = %s, want mid-a", results[0].PointID)
	}
}

func TestMemoryStore_CountAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	_ = store.Upsert(ctx, "c", []Point{
		{ID: "1", Vec: []float32{1, 0}, Meta: scopeMeta("1", "7", "a.md")},
		{ID: "2", Vec: []float32{1, 0}, Meta: scopeMeta("1", "7", "b.md")},
		{ID: "3", Vec: []float32{1, 0}, Meta: scopeMeta("2", "7", "a.md")},
	})

	n, err := store.Count(ctx, "c", map[string]any{"owner_id": "1", "document_name": "a.md"})
	if err != nil || n != 1 {
		t.Fatalf("Count() = %d, %v; want 1", n, err)
	}

	if err := store.DeleteByFilter(ctx, "c", nil); !errors.Is(err, errEmptyFilter) {
		t.Errorf("DeleteByFilter(nil) error = %v, want errEmptyFilter", err)
	}

	if err := store.DeleteByFilter(ctx, "c", map[string]any{"owner_id": "1"}); err != nil {
		t.Fatalf("DeleteByFilter() error = %v", err)
	}
	if n, _ := store.Count(ctx, "c", nil); n != 1 {
		t.Errorf("Count() after delete = %d, want 1", n)
	}

	if err := store.Delete(ctx, "c", []string{"3"}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n, _ := store.Count(ctx, "c", nil); n != 0 {
		t.Errorf("Count() after Delete = %d, want 0", n)
	}
}

func TestMemoryStore_Validation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)

	if err := store.Upsert(ctx, "c", []Point{{ID: "x", Vec: []float32{1}}}); err == nil {
		t.Error("Upsert() with wrong dimension should fail")
	}
	if _, err := store.Search(ctx, "c", []float32{1, 0, 0}, 0, nil); err == nil {
		t.Error("Search() with k=0 should fail")
	}
	if _, err := store.Search(ctx, "c", []float32{1}, 1, nil); err == nil {
		t.Error("Search() with wrong dimension should fail")
	}
}

func TestMemoryStore_IntFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(1)
	_ = store.Upsert(ctx, "c", []Point{{ID: "x", Vec: []float32{1}, Meta: map[string]any{"position": int64(3)}}})

	if n, _ := store.Count(ctx, "c", map[string]any{"position": 3}); n != 1 {
		t.Errorf("int filter should match int64 payload, got %d", n)
	}
	if n, _ := store.Count(ctx, "c", map[string]any{"position": "3"}); n != 0 {
		t.Errorf("string filter should not match int payload, got %d", n)
	}
}

func TestMemoryStore_ConcurrentScopes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	var wg sync.WaitGroup
	for owner := 0; owner < 8; owner++ {
		wg.Add(1)
		go func(owner int) {
			defer wg.Done()
			id := fmt.Sprintf("owner-%d", owner)
			_ = store.Upsert(ctx, "c", []Point{{ID: id, Vec: []float32{1, 0}, Meta: scopeMeta(id, "7", "a.md")}})
			_, _ = store.Search(ctx, "c", []float32{1, 0}, 3, map[string]any{"owner_id": id})
		}(owner)
	}
	wg.Wait()

	if n, _ := store.Count(ctx, "c", nil); n != 8 {
		t.Errorf("Count() = %d, want 8", n)
	}
}

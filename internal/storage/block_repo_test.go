package storage

import (
	"context"
	"testing"
)

func testBlocks(scope Scope, doc string, n int, prefix string) []Block {
	blocks := make([]Block, n)
	for i := range blocks {
		blocks[i] = Block{
			ID:           prefix + string(rune('a'+i)),
			Type:         BlockText,
			Content:      "content " + prefix,
			Scope:        scope,
			DocumentName: doc,
			Position:     i,
		}
	}
	return blocks
}

func TestBlockRepo_InsertAndGetByIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewBlockRepo(newTestDB(t))
	scope := Scope{OwnerID: "1", ContainerID: "7", Usage: UsageReport}

	blocks := testBlocks(scope, "doc.md", 3, "x")
	blocks[2].Type = BlockTable
	if err := repo.InsertBatch(ctx, blocks); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	got, err := repo.GetByIDs(ctx, []string{"xc", "missing", "xa"})
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetByIDs() returned %d blocks, want 2", len(got))
	}
	if got[0].ID != "xc" || got[1].ID != "xa" {
		t.Errorf("GetByIDs() order = [%s %s], want [xc xa]", got[0].ID, got[1].ID)
	}
	if got[0].Type != BlockTable {
		t.Errorf("GetByIDs() type = %v, want table", got[0].Type)
	}
	if got[1].Scope != scope || got[1].DocumentName != "doc.md" {
		t.Errorf("GetByIDs() block = %+v", got[1])
	}
	if got[1].CreatedAt.IsZero() {
		t.Error("GetByIDs() CreatedAt should be set")
	}
}

func TestBlockRepo_InsertBatch_Atomic(t *testing.T) {
	ctx := context.Background()
	repo := NewBlockRepo(newTestDB(t))
	scope := Scope{OwnerID: "1", ContainerID: "7", Usage: UsageReport}

	blocks := testBlocks(scope, "doc.md", 3, "y")
	blocks[2].ID = ""

	if err := repo.InsertBatch(ctx, blocks); err == nil {
		t.Fatal("InsertBatch() expected missing id error")
	}
	got, err := repo.GetByIDs(ctx, []string{"ya", "yb"})
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("failed batch left %d blocks behind", len(got))
	}
}

func TestBlockRepo_InsertBatch_Overwrites(t *testing.T) {
	ctx := context.Background()
	repo := NewBlockRepo(newTestDB(t))
	scope := Scope{OwnerID: "1", ContainerID: "7", Usage: UsageReport}

	if err := repo.InsertBatch(ctx, testBlocks(scope, "doc.md", 2, "z")); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	again := testBlocks(scope, "doc.md", 2, "z")
	again[0].Content = "rewritten"
	again[0].Type = BlockTable
	if err := repo.InsertBatch(ctx, again); err != nil {
		t.Fatalf("second InsertBatch() error = %v", err)
	}

	got, err := repo.GetByIDs(ctx, []string{"za", "zb"})
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetByIDs() returned %d blocks, want 2", len(got))
	}
	if got[0].Content != "rewritten" || got[0].Type != BlockTable {
		t.Errorf("GetByIDs() block = %+v, want overwritten", got[0])
	}
}

func TestBlockRepo_Deletes(t *testing.T) {
	ctx := context.Background()
	repo := NewBlockRepo(newTestDB(t))
	a := Scope{OwnerID: "1", ContainerID: "7", Usage: UsageReport}
	b := Scope{OwnerID: "1", ContainerID: "8", Usage: UsageReport}

	for _, batch := range [][]Block{
		testBlocks(a, "one.md", 2, "a1"),
		testBlocks(a, "two.md", 2, "a2"),
		testBlocks(b, "one.md", 2, "b1"),
	} {
		if err := repo.InsertBatch(ctx, batch); err != nil {
			t.Fatalf("InsertBatch() error = %v", err)
		}
	}

	docs, err := repo.ListDocuments(ctx, a)
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 2 || docs[0] != "one.md" || docs[1] != "two.md" {
		t.Errorf("ListDocuments() = %v", docs)
	}

	n, err := repo.DeleteByDocument(ctx, a, "one.md")
	if err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteByDocument() removed %d, want 2", n)
	}

	// Same document name in another scope is untouched.
	got, _ := repo.GetByIDs(ctx, []string{"b1a", "b1b"})
	if len(got) != 2 {
		t.Errorf("scope b lost blocks: %d left", len(got))
	}

	n, err = repo.DeleteByScope(ctx, a)
	if err != nil {
		t.Fatalf("DeleteByScope() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteByScope() removed %d, want 2", n)
	}

	if err := repo.DeleteByIDs(ctx, []string{"b1a"}); err != nil {
		t.Fatalf("DeleteByIDs() error = %v", err)
	}
	got, _ = repo.GetByIDs(ctx, []string{"b1a", "b1b"})
	if len(got) != 1 || got[0].ID != "b1b" {
		t.Errorf("DeleteByIDs() left %+v", got)
	}
}

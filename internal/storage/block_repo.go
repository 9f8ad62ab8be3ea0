package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_block_store.go -package=mocks dpia-ai/internal/storage BlockStore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// BlockStore defines the interface for Content Store operations.
type BlockStore interface {
	// InsertBatch writes blocks in one transaction, replacing any block with
	// the same ID. Block IDs must be set.
	InsertBatch(ctx context.Context, blocks []Block) error
	// GetByIDs returns the blocks for ids in the order given.
	// Unknown IDs are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]Block, error)
	// DeleteByIDs removes the given blocks.
	DeleteByIDs(ctx context.Context, ids []string) error
	// DeleteByScope removes every block in scope.
	DeleteByScope(ctx context.Context, scope Scope) (int64, error)
	// DeleteByDocument removes every block of one document in scope.
	DeleteByDocument(ctx context.Context, scope Scope, documentName string) (int64, error)
	// ListDocuments returns the distinct document names held in scope.
	ListDocuments(ctx context.Context, scope Scope) ([]string, error)
}

// BlockRepo provides methods for block operations.
// It implements the BlockStore interface.
type BlockRepo struct {
	db *sql.DB
}

// NewBlockRepo creates a new BlockRepo.
func NewBlockRepo(db *sql.DB) *BlockRepo {
	return &BlockRepo{db: db}
}

// InsertBatch writes blocks in one transaction. A block whose ID already
// exists is overwritten, so re-ingesting a document never trips the primary key.
func (r *BlockRepo) InsertBatch(ctx context.Context, blocks []Block) error {
	if len(blocks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO blocks (id, owner_id, container_id, usage, document_name, block_type, content, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			block_type = excluded.block_type,
			content = excluded.content,
			position = excluded.position`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, b := range blocks {
		if b.ID == "" {
			return fmt.Errorf("block at position %d has no id", b.Position)
		}
		if _, err := stmt.ExecContext(ctx,
			b.ID, b.Scope.OwnerID, b.Scope.ContainerID, b.Scope.Usage,
			b.DocumentName, string(b.Type), b.Content, b.Position,
		); err != nil {
			return fmt.Errorf("failed to insert block %s: %w", b.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit blocks: %w", err)
	}
	return nil
}

// GetByIDs returns the blocks for ids in the order given.
func (r *BlockRepo) GetByIDs(ctx context.Context, ids []string) ([]Block, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		`SELECT id, owner_id, container_id, usage, document_name, block_type, content, position, created_at
		FROM blocks WHERE id IN (%s)`, placeholders(len(ids)))

	rows, err := r.db.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	byID := make(map[string]Block, len(ids))
	for rows.Next() {
		var b Block
		var blockType string
		if err := rows.Scan(&b.ID, &b.Scope.OwnerID, &b.Scope.ContainerID, &b.Scope.Usage,
			&b.DocumentName, &blockType, &b.Content, &b.Position, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		b.Type = BlockType(blockType)
		byID[b.ID] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	blocks := make([]Block, 0, len(byID))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}

// DeleteByIDs removes the given blocks.
func (r *BlockRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM blocks WHERE id IN (%s)", placeholders(len(ids)))
	if _, err := r.db.ExecContext(ctx, query, stringArgs(ids)...); err != nil {
		return fmt.Errorf("failed to delete blocks: %w", err)
	}
	return nil
}

// DeleteByScope removes every block in scope and returns how many were removed.
func (r *BlockRepo) DeleteByScope(ctx context.Context, scope Scope) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM blocks WHERE owner_id = ? AND container_id = ? AND usage = ?",
		scope.OwnerID, scope.ContainerID, scope.Usage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete blocks by scope: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByDocument removes every block of one document in scope.
func (r *BlockRepo) DeleteByDocument(ctx context.Context, scope Scope, documentName string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM blocks WHERE owner_id = ? AND container_id = ? AND usage = ? AND document_name = ?",
		scope.OwnerID, scope.ContainerID, scope.Usage, documentName,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete blocks by document: %w", err)
	}
	return res.RowsAffected()
}

// ListDocuments returns the distinct document names held in scope, sorted.
func (r *BlockRepo) ListDocuments(ctx context.Context, scope Scope) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT document_name FROM blocks
		WHERE owner_id = ? AND container_id = ? AND usage = ?
		ORDER BY document_name`,
		scope.OwnerID, scope.ContainerID, scope.Usage,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan document name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return names, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

package handlers

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_service.go -package=mocks dpia-ai/internal/handlers DocumentService

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dpia-ai/internal/contextutil"
	"dpia-ai/internal/indexer"
	"dpia-ai/internal/service"
	"dpia-ai/internal/storage"
)

// maxUploadMemory bounds the multipart form held in memory; larger files
// spill to temporary files.
const maxUploadMemory = 32 << 20

// DocumentService ingests and removes scoped documents.
type DocumentService interface {
	IngestAll(ctx context.Context, scope storage.Scope, docs []indexer.Document) ([]*indexer.IngestStats, error)
	Documents(ctx context.Context, scope storage.Scope) ([]string, error)
	DeleteDocument(ctx context.Context, scope storage.Scope, documentName string) error
	ClearScope(ctx context.Context, scope storage.Scope) error
}

// DocumentsHandler handles HTTP requests for document ingestion and removal.
type DocumentsHandler struct {
	documents DocumentService
}

// NewDocumentsHandler creates a new DocumentsHandler.
func NewDocumentsHandler(documents DocumentService) *DocumentsHandler {
	return &DocumentsHandler{documents: documents}
}

// UploadResponse reports the outcome of an upload.
//
// swagger:model UploadResponse
type UploadResponse struct {
	Documents []*indexer.IngestStats `json:"documents"`
	// Error lists the documents that failed, if any.
	Error string `json:"error,omitempty"`
}

// DocumentListResponse lists the documents of a scope.
//
// swagger:model DocumentListResponse
type DocumentListResponse struct {
	Documents []string `json:"documents"`
}

// scopeFromRequest reads the scope from query or form values.
func scopeFromRequest(r *http.Request) (storage.Scope, error) {
	scope := storage.Scope{
		OwnerID:     strings.TrimSpace(r.FormValue("owner_id")),
		ContainerID: strings.TrimSpace(r.FormValue("container_id")),
		Usage:       strings.TrimSpace(r.FormValue("usage")),
	}
	if err := scope.Validate(); err != nil {
		return storage.Scope{}, &service.ValidationError{Field: "scope", Message: err.Error()}
	}
	return scope, nil
}

// Upload ingests every file of a multipart upload into one scope.
//
// swagger:route POST /api/documents uploadDocuments
//
// Files are read from the "files" form field. Each document is ingested
// independently; a partial failure still returns 200 with the error text.
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		logger.WarnContext(ctx, "invalid multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	scope, err := scopeFromRequest(r)
	if err != nil {
		handleServiceError(ctx, w, err, "Invalid scope")
		return
	}

	docs, err := readDocuments(r)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to read uploaded files")
		return
	}

	logger.InfoContext(ctx, "ingesting upload", "documents", len(docs), "owner_id", scope.OwnerID, "container_id", scope.ContainerID)
	stats, err := h.documents.IngestAll(ctx, scope, docs)
	if err != nil && len(stats) == 0 {
		handleServiceError(ctx, w, err, "Failed to ingest documents")
		return
	}

	resp := UploadResponse{Documents: stats}
	if resp.Documents == nil {
		resp.Documents = []*indexer.IngestStats{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

func readDocuments(r *http.Request) ([]indexer.Document, error) {
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, &service.ValidationError{Field: "files", Message: "at least one file is required"}
	}

	docs := make([]indexer.Document, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		docs = append(docs, indexer.Document{Name: fh.Filename, Content: content})
	}
	return docs, nil
}

// List returns the names of the documents ingested in a scope.
//
// swagger:route GET /api/documents listDocuments
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	scope, err := scopeFromRequest(r)
	if err != nil {
		handleServiceError(ctx, w, err, "Invalid scope")
		return
	}

	names, err := h.documents.Documents(ctx, scope)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to list documents")
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(ctx, w, http.StatusOK, DocumentListResponse{Documents: names})
}

// Delete removes one document, named by the "name" parameter, from a scope.
//
// swagger:route DELETE /api/documents deleteDocument
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	scope, err := scopeFromRequest(r)
	if err != nil {
		handleServiceError(ctx, w, err, "Invalid scope")
		return
	}

	if err := h.documents.DeleteDocument(ctx, scope, r.FormValue("name")); err != nil {
		handleServiceError(ctx, w, err, "Failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearScope removes every document of a scope.
//
// swagger:route DELETE /api/scopes clearScope
func (h *DocumentsHandler) ClearScope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	scope, err := scopeFromRequest(r)
	if err != nil {
		handleServiceError(ctx, w, err, "Invalid scope")
		return
	}

	if err := h.documents.ClearScope(ctx, scope); err != nil {
		handleServiceError(ctx, w, err, "Failed to clear scope")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

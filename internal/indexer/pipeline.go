package indexer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dpia-ai/internal/contextutil"
	"dpia-ai/internal/service"
	"dpia-ai/internal/storage"
	"dpia-ai/internal/vectorstore"
)

const (
	summaryPrompt = "You are an assistant tasked with summarizing tables and text. " +
		"Give a concise summary of the table or text. Table or text chunk: %s"
	imagePrompt = "Describe the image in detail. Be specific about graphs, such as bar plots."

	defaultSummaryConcurrency = 5
	embedBatchSize            = 64
)

// Embedder turns texts into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Summarizer produces a short summary from a prompt.
type Summarizer interface {
	Chat(ctx context.Context, message string) (string, error)
}

// ImageDescriber describes an image given as a URL or data URI.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, prompt, imageURL string) (string, error)
}

// Options configures a Pipeline.
type Options struct {
	Collection         string
	WorkDir            string
	SummaryConcurrency int
	Partition          PartitionOptions
}

// Pipeline ingests documents into the Content Store and the Summary Index.
type Pipeline struct {
	blocks      storage.BlockStore
	vectorStore vectorstore.VectorStore
	embedder    Embedder
	summarizer  Summarizer
	describer   ImageDescriber
	partitioner *Partitioner
	collection  string
	workDir     string
	concurrency int
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	blocks storage.BlockStore,
	vectorStore vectorstore.VectorStore,
	embedder Embedder,
	summarizer Summarizer,
	describer ImageDescriber,
	opts Options,
) *Pipeline {
	concurrency := opts.SummaryConcurrency
	if concurrency <= 0 {
		concurrency = defaultSummaryConcurrency
	}
	workDir := opts.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Pipeline{
		blocks:      blocks,
		vectorStore: vectorStore,
		embedder:    embedder,
		summarizer:  summarizer,
		describer:   describer,
		partitioner: NewPartitioner(opts.Partition),
		collection:  opts.Collection,
		workDir:     workDir,
		concurrency: concurrency,
	}
}

// documentFilters selects the Summary Entries of one document in scope.
func documentFilters(scope storage.Scope, documentName string) map[string]any {
	filters := scope.Filters()
	filters["document_name"] = documentName
	return filters
}

// stableBlockID derives a block ID from its scope, document and position.
func stableBlockID(scope storage.Scope, documentName string, position int) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%d", scope.OwnerID, scope.ContainerID, scope.Usage, documentName, position)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// Ingest partitions, summarizes and indexes one document. A document that
// already has Summary Entries in scope is skipped without any model calls.
func (p *Pipeline) Ingest(ctx context.Context, scope storage.Scope, documentName string, content []byte) (*IngestStats, error) {
	if err := scope.Validate(); err != nil {
		return nil, &service.ValidationError{Field: "scope", Message: err.Error()}
	}
	if strings.TrimSpace(documentName) == "" {
		return nil, &service.ValidationError{Field: "document_name", Message: "cannot be empty"}
	}

	ctx = contextutil.WithAttrs(ctx, "document", documentName, "owner_id", scope.OwnerID, "container_id", scope.ContainerID)
	logger := contextutil.LoggerFromContext(ctx)

	if !Supported(documentName) {
		return nil, service.Classify(service.ErrIngestion,
			fmt.Errorf("%w: %s", service.ErrUnsupportedFormat, filepath.Ext(documentName)))
	}

	existing, err := p.vectorStore.Count(ctx, p.collection, documentFilters(scope, documentName))
	if err != nil {
		return nil, fmt.Errorf("failed to check existing entries: %w", err)
	}
	if existing > 0 {
		logger.InfoContext(ctx, "document already indexed, skipping", "entries", existing)
		return &IngestStats{Document: documentName, Skipped: true}, nil
	}

	elements, err := p.partitioner.Partition(documentName, content)
	if err != nil {
		return nil, service.Classify(service.ErrIngestion, err)
	}
	if len(elements) == 0 {
		logger.WarnContext(ctx, "no elements extracted")
		return newIngestStats(documentName, nil), nil
	}

	workDir, err := os.MkdirTemp(p.workDir, "ingest-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.WarnContext(ctx, "failed to remove work directory", "dir", workDir, "error", err)
		}
	}()

	contents, summaries, err := p.summarize(ctx, elements, workDir)
	if err != nil {
		return nil, service.Classify(service.ErrIngestion, err)
	}

	vectors, err := p.embed(ctx, summaries)
	if err != nil {
		return nil, service.Classify(service.ErrIngestion, fmt.Errorf("failed to embed summaries: %w", err))
	}

	blocks := make([]storage.Block, len(elements))
	points := make([]vectorstore.Point, len(elements))
	for i, el := range elements {
		id := stableBlockID(scope, documentName, i)
		blocks[i] = storage.Block{
			ID:           id,
			Type:         el.Type,
			Content:      contents[i],
			Scope:        scope,
			DocumentName: documentName,
			Position:     i,
		}
		meta := documentFilters(scope, documentName)
		meta["block_id"] = id
		meta["block_type"] = string(el.Type)
		meta["position"] = i
		meta["summary"] = summaries[i]
		points[i] = vectorstore.Point{ID: id, Vec: vectors[i], Meta: meta}
	}

	// No entries exist for this document, so any blocks left from an earlier
	// run are orphans.
	if stale, err := p.blocks.DeleteByDocument(ctx, scope, documentName); err != nil {
		return nil, fmt.Errorf("failed to remove stale blocks: %w", err)
	} else if stale > 0 {
		logger.WarnContext(ctx, "removed blocks without summary entries", "blocks", stale)
	}

	// Blocks first: a Summary Entry must never point at a missing block.
	if err := p.blocks.InsertBatch(ctx, blocks); err != nil {
		return nil, fmt.Errorf("failed to store blocks: %w", err)
	}
	if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
		ids := make([]string, len(blocks))
		for i, b := range blocks {
			ids[i] = b.ID
		}
		if delErr := p.blocks.DeleteByIDs(context.WithoutCancel(ctx), ids); delErr != nil {
			logger.ErrorContext(ctx, "failed to roll back blocks", "error", delErr)
		}
		return nil, fmt.Errorf("failed to index summaries: %w", err)
	}

	stats := newIngestStats(documentName, blocks)
	logger.InfoContext(ctx, "document ingested",
		"blocks", len(blocks),
		"text", stats.Blocks[storage.BlockText],
		"tables", stats.Blocks[storage.BlockTable],
		"images", stats.Blocks[storage.BlockImage],
	)
	return stats, nil
}

// IngestAll ingests several documents. Errors for individual documents are
// logged and do not stop the others; the joined error reports every failure.
func (p *Pipeline) IngestAll(ctx context.Context, scope storage.Scope, docs []Document) ([]*IngestStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var results []*IngestStats
	var errs []error
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		stats, err := p.Ingest(ctx, scope, doc.Name, doc.Content)
		if err != nil {
			logger.ErrorContext(ctx, "failed to ingest document", "document", doc.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", doc.Name, err))
			continue
		}
		results = append(results, stats)
	}
	return results, errors.Join(errs...)
}

// summarize returns the stored content and the indexed summary of each element.
// Text and table elements are summarized; images are described and the
// description is both content and summary.
func (p *Pipeline) summarize(ctx context.Context, elements []Element, workDir string) ([]string, []string, error) {
	contents := make([]string, len(elements))
	summaries := make([]string, len(elements))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, el := range elements {
		g.Go(func() error {
			if el.Type == storage.BlockImage {
				desc, err := p.describeImage(gctx, el, workDir, i)
				if err != nil {
					return fmt.Errorf("failed to describe image %d: %w", i, err)
				}
				contents[i] = desc
				summaries[i] = desc
				return nil
			}

			summary, err := p.summarizer.Chat(gctx, fmt.Sprintf(summaryPrompt, el.Text))
			if err != nil {
				return fmt.Errorf("failed to summarize element %d: %w", i, err)
			}
			summary = strings.TrimSpace(summary)
			if summary == "" {
				summary = truncateRunes(el.Text, 1000)
			}
			contents[i] = el.Text
			summaries[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "elements summarized", "count", len(elements))
	return contents, summaries, nil
}

// describeImage extracts a data URI image into workDir, asks the vision model
// for a description and writes the description next to the image.
func (p *Pipeline) describeImage(ctx context.Context, el Element, workDir string, index int) (string, error) {
	base := filepath.Join(workDir, fmt.Sprintf("image-%d", index))

	imageURL := el.Source
	switch {
	case strings.HasPrefix(el.Source, "data:"):
		data, ext, err := decodeDataURI(el.Source)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(base+ext, data, 0o600); err != nil {
			return "", fmt.Errorf("failed to write image: %w", err)
		}
	case strings.HasPrefix(el.Source, "http://"), strings.HasPrefix(el.Source, "https://"):
	default:
		// Relative paths cannot be resolved from uploaded bytes; keep the alt text.
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "image source not reachable, using alt text", "source", el.Source)
		if el.Text == "" {
			return "Image: " + el.Source, nil
		}
		return "Image: " + el.Text, nil
	}

	desc, err := p.describer.DescribeImage(ctx, imagePrompt, imageURL)
	if err != nil {
		return "", err
	}
	desc = strings.TrimSpace(desc)
	if desc == "" && el.Text != "" {
		desc = "Image: " + el.Text
	}
	if err := os.WriteFile(base+".txt", []byte(desc), 0o600); err != nil {
		return "", fmt.Errorf("failed to write image description: %w", err)
	}
	return desc, nil
}

// decodeDataURI decodes a base64 data URI and returns a file extension for it.
func decodeDataURI(uri string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, "", fmt.Errorf("unsupported data URI")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image data: %w", err)
	}

	ext := ".bin"
	switch strings.TrimSuffix(header, ";base64") {
	case "image/png":
		ext = ".png"
	case "image/jpeg", "image/jpg":
		ext = ".jpg"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	}
	return data, ext, nil
}

func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		batch, err := p.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", end-start, len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// ClearScope removes every Summary Entry and block in scope.
func (p *Pipeline) ClearScope(ctx context.Context, scope storage.Scope) error {
	if err := scope.Validate(); err != nil {
		return &service.ValidationError{Field: "scope", Message: err.Error()}
	}

	if err := p.vectorStore.DeleteByFilter(ctx, p.collection, scope.Filters()); err != nil {
		return fmt.Errorf("failed to delete scope entries: %w", err)
	}
	n, err := p.blocks.DeleteByScope(ctx, scope)
	if err != nil {
		return fmt.Errorf("failed to delete scope blocks: %w", err)
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "scope cleared",
		"owner_id", scope.OwnerID, "container_id", scope.ContainerID, "usage", scope.Usage, "blocks", n)
	return nil
}

// DeleteDocument removes the Summary Entries and blocks of one document in scope.
func (p *Pipeline) DeleteDocument(ctx context.Context, scope storage.Scope, documentName string) error {
	if err := scope.Validate(); err != nil {
		return &service.ValidationError{Field: "scope", Message: err.Error()}
	}
	if strings.TrimSpace(documentName) == "" {
		return &service.ValidationError{Field: "document_name", Message: "cannot be empty"}
	}

	if err := p.vectorStore.DeleteByFilter(ctx, p.collection, documentFilters(scope, documentName)); err != nil {
		return fmt.Errorf("failed to delete document entries: %w", err)
	}
	n, err := p.blocks.DeleteByDocument(ctx, scope, documentName)
	if err != nil {
		return fmt.Errorf("failed to delete document blocks: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %q: %w", documentName, service.ErrNotFound)
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "document deleted", "document", documentName, "blocks", n)
	return nil
}

// Documents lists the document names indexed in scope.
func (p *Pipeline) Documents(ctx context.Context, scope storage.Scope) ([]string, error) {
	if err := scope.Validate(); err != nil {
		return nil, &service.ValidationError{Field: "scope", Message: err.Error()}
	}
	return p.blocks.ListDocuments(ctx, scope)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

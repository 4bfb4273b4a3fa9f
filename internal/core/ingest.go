package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"clinote/internal/llm"
	"clinote/internal/observability"
	"clinote/pkg"
)

// ErrEmptyDocument is returned when a document has no source name or no text.
var ErrEmptyDocument = errors.New("document needs a source and content")

const embedBatch = 64

// Indexer splits documents into overlapping chunks, embeds them and stores
// them, replacing any earlier version of the same source.
type Indexer struct {
	Store     ChunkStore
	Embedder  llm.Embedder
	Splitter  textsplitter.TextSplitter
	Publisher ChangePublisher
	Metrics   *observability.Metrics
	// OnChange runs after a source is replaced or deleted.
	OnChange func(source string)
}

// NewIndexer constructs an Indexer using a recursive character splitter.
func NewIndexer(store ChunkStore, embedder llm.Embedder, chunkSize, overlap int) *Indexer {
	return &Indexer{
		Store:    store,
		Embedder: embedder,
		Splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
		),
	}
}

// Ingest indexes content under source and returns the number of chunks.
func (ix *Indexer) Ingest(ctx context.Context, source, content string) (int, error) {
	source = strings.TrimSpace(source)
	if source == "" || strings.TrimSpace(content) == "" {
		return 0, ErrEmptyDocument
	}
	parts, err := ix.Splitter.SplitText(content)
	if err != nil {
		return 0, fmt.Errorf("split %q: %w", source, err)
	}

	chunks := make([]pkg.KnowledgeChunk, 0, len(parts))
	for start := 0; start < len(parts); start += embedBatch {
		end := min(start+embedBatch, len(parts))
		vectors, err := ix.Embedder.Embed(ctx, parts[start:end])
		if err != nil {
			return 0, fmt.Errorf("embed %q: %w", source, err)
		}
		if len(vectors) != end-start {
			return 0, fmt.Errorf("embed %q: got %d vectors for %d chunks", source, len(vectors), end-start)
		}
		for i, v := range vectors {
			chunks = append(chunks, pkg.KnowledgeChunk{
				Source:     source,
				ChunkIndex: start + i,
				Content:    parts[start+i],
				Embedding:  v,
			})
		}
	}

	if err := ix.Store.ReplaceSource(ctx, source, chunks); err != nil {
		return 0, fmt.Errorf("store %q: %w", source, err)
	}
	ix.Metrics.ChunksIngested(len(chunks))
	slog.Info("Indexed document", "source", source, "chunks", len(chunks))
	ix.changed(ctx, source)
	return len(chunks), nil
}

// Delete removes source from the index.
func (ix *Indexer) Delete(ctx context.Context, source string) (int, error) {
	n, err := ix.Store.DeleteSource(ctx, source)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		ix.changed(ctx, source)
	}
	return n, nil
}

// Sources lists the indexed documents.
func (ix *Indexer) Sources(ctx context.Context) ([]pkg.SourceSummary, error) {
	return ix.Store.ListSources(ctx)
}

func (ix *Indexer) changed(ctx context.Context, source string) {
	if ix.OnChange != nil {
		ix.OnChange(source)
	}
	if ix.Publisher == nil {
		return
	}
	if err := ix.Publisher.Notify(ctx, source); err != nil {
		slog.Warn("Failed to publish document change", "source", source, "error", err)
	}
}

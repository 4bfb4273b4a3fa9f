package core

import (
	"context"

	"clinote/pkg"
)

// ChunkStore persists knowledge chunks.  db.Repository and db.MemoryStore
// implement it.
type ChunkStore interface {
	ReplaceSource(ctx context.Context, source string, chunks []pkg.KnowledgeChunk) error
	ListChunks(ctx context.Context) ([]pkg.KnowledgeChunk, error)
	DeleteSource(ctx context.Context, source string) (int, error)
	ListSources(ctx context.Context) ([]pkg.SourceSummary, error)
}

// ChangePublisher announces that a source changed.  A nil publisher is
// allowed.
type ChangePublisher interface {
	Notify(ctx context.Context, source string) error
}

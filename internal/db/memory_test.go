package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinote/pkg"
)

func chunk(idx int, content string) pkg.KnowledgeChunk {
	return pkg.KnowledgeChunk{ChunkIndex: idx, Content: content, Embedding: []float32{float32(idx), 1}}
}

func TestMemoryStore_ReplaceAndList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.ReplaceSource(ctx, "visiting.txt", []pkg.KnowledgeChunk{chunk(1, "b"), chunk(0, "a")}))
	require.NoError(t, s.ReplaceSource(ctx, "aftercare.txt", []pkg.KnowledgeChunk{chunk(0, "z")}))

	chunks, err := s.ListChunks(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "aftercare.txt", chunks[0].Source)
	assert.Equal(t, "a", chunks[1].Content)
	assert.Equal(t, "b", chunks[2].Content)
	for _, c := range chunks {
		assert.NotEmpty(t, c.ID)
		assert.False(t, c.CreatedAt.IsZero())
	}

	require.NoError(t, s.ReplaceSource(ctx, "visiting.txt", []pkg.KnowledgeChunk{chunk(0, "new")}))
	sources, err := s.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "visiting.txt", sources[1].Source)
	assert.Equal(t, 1, sources[1].Chunks)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.ReplaceSource(ctx, "doc", []pkg.KnowledgeChunk{chunk(0, "a"), chunk(1, "b")}))

	n, err := s.DeleteSource(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.DeleteSource(ctx, "doc")
	require.NoError(t, err)
	assert.Zero(t, n)

	chunks, err := s.ListChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMemoryStore_EmptyReplaceRemovesSource(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.ReplaceSource(ctx, "doc", []pkg.KnowledgeChunk{chunk(0, "a")}))
	require.NoError(t, s.ReplaceSource(ctx, "doc", nil))

	sources, err := s.ListSources(ctx)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	in := []pkg.KnowledgeChunk{chunk(0, "a")}
	require.NoError(t, s.ReplaceSource(ctx, "doc", in))
	in[0].Embedding[0] = 42

	out, err := s.ListChunks(ctx)
	require.NoError(t, err)
	out[0].Embedding[1] = 99

	again, err := s.ListChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, again[0].Embedding)
}

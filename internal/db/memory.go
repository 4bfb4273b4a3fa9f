package db

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinote/pkg"
)

// MemoryStore keeps knowledge chunks in process.  It backs the server when
// no database is configured and is used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	sources map[string][]pkg.KnowledgeChunk
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sources: make(map[string][]pkg.KnowledgeChunk), now: time.Now}
}

func (m *MemoryStore) ReplaceSource(_ context.Context, source string, chunks []pkg.KnowledgeChunk) error {
	stamp := m.now()
	stored := make([]pkg.KnowledgeChunk, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.Source = source
		c.Embedding = slices.Clone(c.Embedding)
		c.CreatedAt = stamp
		stored[i] = c
	}
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].ChunkIndex < stored[j].ChunkIndex })

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(stored) == 0 {
		delete(m.sources, source)
		return nil
	}
	m.sources[source] = stored
	return nil
}

func (m *MemoryStore) ListChunks(context.Context) ([]pkg.KnowledgeChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []pkg.KnowledgeChunk
	for _, name := range m.sortedSources() {
		for _, c := range m.sources[name] {
			c.Embedding = slices.Clone(c.Embedding)
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteSource(_ context.Context, source string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.sources[source])
	delete(m.sources, source)
	return n, nil
}

func (m *MemoryStore) ListSources(context.Context) ([]pkg.SourceSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []pkg.SourceSummary
	for _, name := range m.sortedSources() {
		chunks := m.sources[name]
		out = append(out, pkg.SourceSummary{Source: name, Chunks: len(chunks), UpdatedAt: chunks[0].CreatedAt})
	}
	return out, nil
}

// sortedSources must be called with mu held.
func (m *MemoryStore) sortedSources() []string {
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

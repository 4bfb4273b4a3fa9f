package core

import (
	"context"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"clinote/internal/llm"
	"clinote/pkg"
)

// Retriever ranks stored chunks by cosine similarity to a question.  Chunks
// are loaded once and cached until Invalidate is called.
type Retriever struct {
	Store    ChunkStore
	Embedder llm.Embedder
	TopK     int

	mu     sync.RWMutex
	cache  []pkg.KnowledgeChunk
	loaded bool
	gen    uint64
	flight singleflight.Group
}

func NewRetriever(store ChunkStore, embedder llm.Embedder, topK int) *Retriever {
	return &Retriever{Store: store, Embedder: embedder, TopK: topK}
}

// Invalidate drops the cached chunks; the next Retrieve reloads them.
func (r *Retriever) Invalidate() {
	r.mu.Lock()
	r.cache, r.loaded = nil, false
	r.gen++
	r.mu.Unlock()
}

func (r *Retriever) chunks(ctx context.Context) ([]pkg.KnowledgeChunk, error) {
	r.mu.RLock()
	if r.loaded {
		c := r.cache
		r.mu.RUnlock()
		return c, nil
	}
	gen := r.gen
	r.mu.RUnlock()

	v, err, _ := r.flight.Do("chunks", func() (any, error) {
		list, err := r.Store.ListChunks(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		// an Invalidate during the load means list may already be stale
		if r.gen == gen {
			r.cache, r.loaded = list, true
		}
		r.mu.Unlock()
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]pkg.KnowledgeChunk), nil
}

// Retrieve returns up to k chunks most similar to question, best first.  A
// k of zero or less uses TopK.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]pkg.ScoredChunk, error) {
	if k <= 0 {
		k = r.TopK
	}
	all, err := r.chunks(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 || k <= 0 {
		return nil, nil
	}
	vectors, err := r.Embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	query := vectors[0]

	scored := make([]pkg.ScoredChunk, 0, len(all))
	for _, c := range all {
		score, ok := cosine(query, c.Embedding)
		if !ok {
			continue
		}
		scored = append(scored, pkg.ScoredChunk{KnowledgeChunk: c, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// cosine reports false for vectors of different length or zero norm.
func cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinote/internal/db"
	"clinote/internal/llm"
	"clinote/internal/observability"
	"clinote/pkg"
)

var vocabulary = []string{"parking", "insurance", "visiting", "cancel"}

// keywordEmbedder counts vocabulary words, giving texts about the same topic
// similar vectors.
type keywordEmbedder struct {
	err   error
	calls atomic.Int32
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, len(vocabulary))
		lower := strings.ToLower(text)
		for j, word := range vocabulary {
			v[j] = float32(strings.Count(lower, word))
		}
		out[i] = v
	}
	return out, nil
}

// lineSplitter splits on newlines so chunk boundaries are predictable.
type lineSplitter struct{}

func (lineSplitter) SplitText(text string) ([]string, error) {
	return strings.Split(strings.TrimSpace(text), "\n"), nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	sources []string
}

func (p *recordingPublisher) Notify(_ context.Context, source string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = append(p.sources, source)
	return nil
}

type countingStore struct {
	*db.MemoryStore
	lists atomic.Int32
}

func (s *countingStore) ListChunks(ctx context.Context) ([]pkg.KnowledgeChunk, error) {
	s.lists.Add(1)
	return s.MemoryStore.ListChunks(ctx)
}

type fakeChatter struct {
	reply string
	err   error
	got   []llm.Message
}

func (f *fakeChatter) Chat(_ context.Context, msgs []llm.Message) (string, error) {
	f.got = msgs
	return f.reply, f.err
}

const clinicGuide = "Parking is free in lot B.\n" +
	"Insurance cards must be shown at check-in.\n" +
	"Visiting hours end at 8pm.\n" +
	"To cancel an appointment call 24 hours ahead."

func newTestIndexer(store ChunkStore, emb llm.Embedder) *Indexer {
	ix := NewIndexer(store, emb, 1000, 200)
	ix.Splitter = lineSplitter{}
	return ix
}

func TestIndexer_Ingest(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	pub := &recordingPublisher{}
	ix := newTestIndexer(store, &keywordEmbedder{})
	ix.Publisher = pub
	ix.Metrics = observability.NewMetrics(prometheus.NewRegistry())

	n, err := ix.Ingest(ctx, "guide.txt", clinicGuide)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	chunks, err := store.ListChunks(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, "guide.txt", c.Source)
		assert.Len(t, c.Embedding, len(vocabulary))
	}
	assert.Equal(t, []string{"guide.txt"}, pub.sources)
	assert.Equal(t, 4.0, testutil.ToFloat64(ix.Metrics.KnowledgeChunksIngested))
}

func TestIndexer_ReingestReplacesSource(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	ix := newTestIndexer(store, &keywordEmbedder{})

	_, err := ix.Ingest(ctx, "guide.txt", clinicGuide)
	require.NoError(t, err)
	_, err = ix.Ingest(ctx, "guide.txt", "Parking moved to lot C.")
	require.NoError(t, err)

	sources, err := ix.Sources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, 1, sources[0].Chunks)
}

func TestIndexer_RejectsEmptyDocument(t *testing.T) {
	ix := newTestIndexer(db.NewMemoryStore(), &keywordEmbedder{})
	_, err := ix.Ingest(context.Background(), "", "text")
	assert.ErrorIs(t, err, ErrEmptyDocument)
	_, err = ix.Ingest(context.Background(), "doc", "  \n ")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestIndexer_EmbedFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	ix := newTestIndexer(store, &keywordEmbedder{err: errors.New("quota")})

	_, err := ix.Ingest(ctx, "guide.txt", clinicGuide)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")

	chunks, err := store.ListChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestIndexer_RecursiveSplitter(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	ix := NewIndexer(store, &keywordEmbedder{}, 40, 0)

	text := strings.Repeat("visiting hours are posted at the desk. ", 10)
	n, err := ix.Ingest(ctx, "long.txt", text)
	require.NoError(t, err)
	assert.Greater(t, n, 1)
}

func TestIndexer_DeleteInvalidates(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	var changed []string
	ix := newTestIndexer(store, &keywordEmbedder{})
	ix.OnChange = func(source string) { changed = append(changed, source) }

	_, err := ix.Ingest(ctx, "guide.txt", clinicGuide)
	require.NoError(t, err)
	n, err := ix.Delete(ctx, "guide.txt")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = ix.Delete(ctx, "guide.txt")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"guide.txt", "guide.txt"}, changed)
}

func TestRetriever_RanksByCosine(t *testing.T) {
	ctx := context.Background()
	emb := &keywordEmbedder{}
	store := db.NewMemoryStore()
	_, err := newTestIndexer(store, emb).Ingest(ctx, "guide.txt", clinicGuide)
	require.NoError(t, err)

	r := NewRetriever(store, emb, 2)
	found, err := r.Retrieve(ctx, "Where is parking?", 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, 0, found[0].ChunkIndex)
	assert.InDelta(t, 1.0, found[0].Score, 1e-9)
	assert.InDelta(t, 0.0, found[1].Score, 1e-9)
}

func TestRetriever_HonoursTopK(t *testing.T) {
	ctx := context.Background()
	emb := &keywordEmbedder{}
	store := db.NewMemoryStore()
	_, err := newTestIndexer(store, emb).Ingest(ctx, "guide.txt", clinicGuide)
	require.NoError(t, err)

	r := NewRetriever(store, emb, 4)
	found, err := r.Retrieve(ctx, "insurance and parking and cancel", 2)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.GreaterOrEqual(t, found[0].Score, found[1].Score)
}

func TestRetriever_CachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	emb := &keywordEmbedder{}
	store := &countingStore{MemoryStore: db.NewMemoryStore()}
	ix := newTestIndexer(store, emb)
	_, err := ix.Ingest(ctx, "guide.txt", "Parking is free.")
	require.NoError(t, err)

	r := NewRetriever(store, emb, 4)
	ix.OnChange = func(string) { r.Invalidate() }

	for i := 0; i < 3; i++ {
		_, err := r.Retrieve(ctx, "parking", 0)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), store.lists.Load())

	_, err = ix.Ingest(ctx, "visits.txt", "Visiting hours end at 8pm.")
	require.NoError(t, err)
	found, err := r.Retrieve(ctx, "visiting", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.lists.Load())
	require.Len(t, found, 2)
	assert.Equal(t, "visits.txt", found[0].Source)
}

func TestRetriever_EmptyStore(t *testing.T) {
	emb := &keywordEmbedder{}
	r := NewRetriever(db.NewMemoryStore(), emb, 4)
	found, err := r.Retrieve(context.Background(), "parking", 0)
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Zero(t, emb.calls.Load(), "nothing to rank, so no embedding call")
}

func TestCosine(t *testing.T) {
	s, ok := cosine([]float32{1, 0}, []float32{1, 0})
	assert.True(t, ok)
	assert.InDelta(t, 1.0, s, 1e-9)

	s, ok = cosine([]float32{1, 0}, []float32{0, 1})
	assert.True(t, ok)
	assert.InDelta(t, 0.0, s, 1e-9)

	_, ok = cosine([]float32{1, 0}, []float32{1, 0, 0})
	assert.False(t, ok)
	_, ok = cosine([]float32{0, 0}, []float32{1, 0})
	assert.False(t, ok)
}

type stubRetriever struct {
	found []pkg.ScoredChunk
	err   error
}

func (s stubRetriever) Retrieve(context.Context, string, int) ([]pkg.ScoredChunk, error) {
	return s.found, s.err
}

func TestQuestionAnswerer_Answer(t *testing.T) {
	chat := &fakeChatter{reply: "Parking is free in lot B."}
	qa := NewQuestionAnswerer(chat, stubRetriever{found: []pkg.ScoredChunk{{
		KnowledgeChunk: pkg.KnowledgeChunk{Source: "guide.txt", ChunkIndex: 0, Content: "Parking is free in lot B."},
		Score:          0.9,
	}}})

	ans, err := qa.Answer(context.Background(), pkg.AskRequest{Question: " Where do I park? ", Context: "first visit"})
	require.NoError(t, err)
	assert.Equal(t, "Parking is free in lot B.", ans.Answer)
	assert.Equal(t, []pkg.SourceRef{{Source: "guide.txt", Chunk: 0, Score: 0.9}}, ans.Sources)

	require.Len(t, chat.got, 2)
	assert.Equal(t, "system", chat.got[0].Role)
	assert.Equal(t, DefaultPersona, chat.got[0].Content)
	user := chat.got[1].Content
	assert.Contains(t, user, "[guide.txt #0]\nParking is free in lot B.")
	assert.Contains(t, user, "Additional context: first visit")
	assert.True(t, strings.HasSuffix(user, "Patient's Question: Where do I park?"))
}

func TestQuestionAnswerer_CustomPersonaAndNoDocuments(t *testing.T) {
	chat := &fakeChatter{reply: "ok"}
	qa := NewQuestionAnswerer(chat, stubRetriever{})
	qa.Persona = "Be brief."

	ans, err := qa.Answer(context.Background(), pkg.AskRequest{Question: "Hours?"})
	require.NoError(t, err)
	assert.Empty(t, ans.Sources)
	assert.Equal(t, "Be brief.", chat.got[0].Content)
	assert.Contains(t, chat.got[1].Content, noDocuments)
	assert.NotContains(t, chat.got[1].Content, "Additional context")
}

func TestQuestionAnswerer_Failures(t *testing.T) {
	ctx := context.Background()

	_, err := NewQuestionAnswerer(&fakeChatter{}, stubRetriever{}).Answer(ctx, pkg.AskRequest{Question: "  "})
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	boom := errors.New("boom")
	ans, err := NewQuestionAnswerer(&fakeChatter{err: boom}, stubRetriever{}).Answer(ctx, pkg.AskRequest{Question: "Hours?"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, FallbackAnswer, ans.Answer)

	ans, err = NewQuestionAnswerer(&fakeChatter{}, stubRetriever{err: boom}).Answer(ctx, pkg.AskRequest{Question: "Hours?"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, FallbackAnswer, ans.Answer)
}

// Package app builds the service graph from configuration.  Both the HTTP
// server and the command line tool start here.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"clinote/internal/config"
	"clinote/internal/core"
	"clinote/internal/db"
	httpserver "clinote/internal/http"
	"clinote/internal/llm"
	"clinote/internal/observability"

	_ "github.com/lib/pq"
)

// App holds the wired services.
type App struct {
	Config    *config.Config
	LLM       *llm.OpenAIClient
	Metrics   *observability.Metrics
	Assembler *core.NoteAssembler
	Indexer   *core.Indexer
	Retriever *core.Retriever
	QA        *core.QuestionAnswerer

	db       *sql.DB
	notifier *db.Notifier
}

// New wires every service.  With no database URL the knowledge index is
// kept in memory; otherwise Postgres is opened, pinged and migrated.
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	a := &App{
		Config:  cfg,
		LLM:     llm.NewOpenAIClient(cfg.LLM),
		Metrics: observability.NewMetrics(reg),
	}

	var extractor llm.NoteExtractor = a.LLM
	if cfg.LLM.RequestsPerSecond > 0 {
		burst := max(cfg.LLM.Burst, 1)
		extractor = llm.Limit(extractor, rate.NewLimiter(rate.Limit(cfg.LLM.RequestsPerSecond), burst))
	}
	a.Assembler = core.NewNoteAssembler(extractor)
	a.Assembler.Metrics = a.Metrics

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Retriever = core.NewRetriever(store, a.LLM, cfg.Knowledge.TopK)
	a.Indexer = core.NewIndexer(store, a.LLM, cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	a.Indexer.Metrics = a.Metrics
	a.Indexer.OnChange = func(string) { a.Retriever.Invalidate() }
	if a.notifier != nil {
		a.Indexer.Publisher = a.notifier
	}
	a.QA = core.NewQuestionAnswerer(a.LLM, a.Retriever)
	a.QA.Persona = cfg.Knowledge.Persona
	a.QA.TopK = cfg.Knowledge.TopK
	return a, nil
}

func (a *App) openStore(ctx context.Context) (core.ChunkStore, error) {
	if a.Config.Database.URL == "" {
		slog.Info("No database configured; knowledge index is in memory")
		return db.NewMemoryStore(), nil
	}
	conn, err := sql.Open("postgres", a.Config.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := db.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	a.db = conn
	a.notifier = db.NewNotifier(conn, a.Config.Database.URL, a.Config.Database.NotifyChannel)
	return db.NewRepository(conn), nil
}

// Server returns the HTTP handler over the wired services.
func (a *App) Server(metricsHandler http.Handler) *httpserver.Server {
	return httpserver.NewServer(a.Config, httpserver.Deps{
		Notes:          a.Assembler,
		Transcriber:    a.LLM,
		QA:             a.QA,
		Documents:      a.Indexer,
		Metrics:        a.Metrics,
		MetricsHandler: metricsHandler,
	})
}

// WatchChanges drops the retrieval cache whenever another instance changes
// the index.  It returns immediately when there is no database and otherwise
// blocks until ctx is cancelled.
func (a *App) WatchChanges(ctx context.Context) error {
	if a.notifier == nil {
		return nil
	}
	changes, err := a.notifier.Listen(ctx)
	if err != nil {
		return fmt.Errorf("listen for index changes: %w", err)
	}
	for source := range changes {
		slog.Debug("Knowledge index changed", "source", source)
		a.Retriever.Invalidate()
	}
	return nil
}

// Close releases the database connection, if any.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

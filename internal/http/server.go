package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinote/internal/config"
	"clinote/internal/llm"
	"clinote/internal/observability"
	"clinote/pkg"
)

// Version is reported by the health endpoint.
var Version = "1.0.0"

// NoteGenerator assembles progress notes.  core.NoteAssembler implements it.
type NoteGenerator interface {
	ProcessInput(ctx context.Context, in pkg.ClinicalInput) pkg.ProgressNote
}

// QuestionAnswerer answers patient questions.
type QuestionAnswerer interface {
	Answer(ctx context.Context, req pkg.AskRequest) (pkg.Answer, error)
}

// DocumentIndex manages the reference documents used for answers.
type DocumentIndex interface {
	Ingest(ctx context.Context, source, content string) (int, error)
	Delete(ctx context.Context, source string) (int, error)
	Sources(ctx context.Context) ([]pkg.SourceSummary, error)
}

// Deps are the services the handlers call.  Any of QA, Documents and
// Transcriber may be nil, in which case their routes answer 503.
type Deps struct {
	Notes       NoteGenerator
	Transcriber llm.Transcriber
	QA          QuestionAnswerer
	Documents   DocumentIndex
	Metrics     *observability.Metrics
	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to http.ListenAndServe.
type Server struct {
	Deps
	Config      config.ServerConfig
	LLMProvider string
	LLMModel    string
}

// NewServer constructs a Server from the loaded configuration.
func NewServer(cfg *config.Config, deps Deps) *Server {
	return &Server{
		Deps:        deps,
		Config:      cfg.Server,
		LLMProvider: cfg.LLM.Provider,
		LLMModel:    cfg.LLM.Model,
	}
}

// ServeHTTP dispatches incoming requests based on the URL path.  Minimal
// routing logic is implemented here to keep dependencies light.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	rec.Header().Set("X-Request-ID", reqID)
	s.cors(rec)

	route := s.route(rec, r)

	s.Metrics.ObserveRequest(route, strconv.Itoa(rec.status))
	slog.Info("HTTP request",
		"request_id", reqID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// route runs the matching handler and returns a low-cardinality route label.
func (s *Server) route(w http.ResponseWriter, r *http.Request) string {
	path := r.URL.Path
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return "preflight"
	}
	switch {
	case path == "/generate-note" && r.Method == http.MethodPost:
		s.handleGenerateNote(w, r)
	case path == "/upload-audio" && r.Method == http.MethodPost:
		s.handleUploadAudio(w, r)
	case path == "/upload-image" && r.Method == http.MethodPost:
		s.handleUploadImage(w, r)
	case path == "/health" && r.Method == http.MethodGet:
		s.handleHealth(w, r)
	case path == "/ask" && r.Method == http.MethodPost:
		s.handleAsk(w, r)
	case path == "/documents" && r.Method == http.MethodPost:
		s.handleIngest(w, r)
	case path == "/documents" && r.Method == http.MethodGet:
		s.handleListDocuments(w, r)
	case strings.HasPrefix(path, "/documents/") && r.Method == http.MethodDelete:
		s.handleDeleteDocument(w, r, strings.TrimPrefix(r.URL.EscapedPath(), "/documents/"))
		return "/documents/{source}"
	case path == "/metrics" && r.Method == http.MethodGet && s.MetricsHandler != nil:
		s.MetricsHandler.ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
		return "unmatched"
	}
	return path
}

func (s *Server) cors(w http.ResponseWriter) {
	origin := s.Config.AllowedOrigins
	if origin == "" {
		origin = "*"
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// writeError replies with {"detail": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

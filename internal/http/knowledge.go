package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"clinote/internal/core"
	"clinote/pkg"
)

// handleAsk answers a patient question.  When the model fails the fallback
// answer is still returned so the patient gets a reply.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.QA == nil {
		writeError(w, http.StatusServiceUnavailable, "question answering is not configured")
		return
	}
	var req pkg.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	ans, err := s.QA.Answer(r.Context(), req)
	if errors.Is(err, core.ErrEmptyQuestion) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("Failed to answer question", "error", err)
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.Documents == nil {
		writeError(w, http.StatusServiceUnavailable, "document index is not configured")
		return
	}
	var req pkg.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	n, err := s.Documents.Ingest(r.Context(), req.Source, req.Content)
	if errors.Is(err, core.ErrEmptyDocument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("Failed to ingest document", "source", req.Source, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": req.Source, "chunks": n})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.Documents == nil {
		writeError(w, http.StatusServiceUnavailable, "document index is not configured")
		return
	}
	sources, err := s.Documents.Sources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sources == nil {
		sources = []pkg.SourceSummary{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request, escaped string) {
	if s.Documents == nil {
		writeError(w, http.StatusServiceUnavailable, "document index is not configured")
		return
	}
	source, err := url.PathUnescape(escaped)
	if err != nil || source == "" {
		writeError(w, http.StatusBadRequest, "invalid source")
		return
	}
	n, err := s.Documents.Delete(r.Context(), source)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": source, "deleted": n})
}

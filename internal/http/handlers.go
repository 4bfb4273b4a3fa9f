package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinote/internal/core"
	"clinote/pkg"
)

const (
	audioDir = "audio"
	imageDir = "images"
)

type uploadResponse struct {
	Message      string            `json:"message"`
	Filename     string            `json:"filename"`
	PatientInfo  pkg.PatientInfo   `json:"patient_info"`
	Transcript   string            `json:"transcript,omitempty"`
	Note         string            `json:"note,omitempty"`
	ProgressNote *pkg.ProgressNote `json:"progress_note,omitempty"`
}

// handleGenerateNote assembles a note from a JSON ClinicalInput body.
func (s *Server) handleGenerateNote(w http.ResponseWriter, r *http.Request) {
	var in pkg.ClinicalInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	note := s.Notes.ProcessInput(r.Context(), in)
	writeJSON(w, http.StatusOK, pkg.NoteResponse{Note: core.Render(note), ProgressNote: &note})
}

// handleUploadAudio stores a recording, transcribes it and builds a note
// from the transcript.
func (s *Server) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	if s.Transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, "transcription is not configured")
		return
	}
	info, path, name, ok := s.receiveUpload(w, r, audioDir)
	if !ok {
		return
	}
	transcript, err := s.Transcriber.Transcribe(r.Context(), path)
	if err != nil {
		slog.Error("Transcription failed", "file", name, "error", err)
		writeError(w, http.StatusBadGateway, "transcription failed: "+err.Error())
		return
	}
	note := s.Notes.ProcessInput(r.Context(), pkg.ClinicalInput{
		TranscribedAudio: transcript,
		PatientInfo:      info,
	})
	writeJSON(w, http.StatusOK, uploadResponse{
		Message:      "Audio file uploaded, transcribed, and note generated successfully.",
		Filename:     name,
		PatientInfo:  info,
		Transcript:   transcript,
		Note:         core.Render(note),
		ProgressNote: &note,
	})
}

// handleUploadImage stores an image.  Text read from the image by the caller
// may be sent as extracted_text, in which case a note is built from it.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	info, _, name, ok := s.receiveUpload(w, r, imageDir)
	if !ok {
		return
	}
	resp := uploadResponse{
		Message:     "Image file uploaded successfully",
		Filename:    name,
		PatientInfo: info,
	}
	if text := strings.TrimSpace(r.FormValue("extracted_text")); text != "" {
		note := s.Notes.ProcessInput(r.Context(), pkg.ClinicalInput{
			ExtractedTextFromImages: text,
			PatientInfo:             info,
		})
		resp.Message = "Image file uploaded and note generated successfully."
		resp.Note = core.Render(note)
		resp.ProgressNote = &note
	}
	writeJSON(w, http.StatusOK, resp)
}

// receiveUpload parses the multipart form, validates patient_info and saves
// the file under dir.  On failure it has already written the response.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request, dir string) (pkg.PatientInfo, string, string, bool) {
	limit := s.Config.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return nil, "", "", false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return nil, "", "", false
	}

	var info pkg.PatientInfo
	raw, present := r.MultipartForm.Value["patient_info"]
	if !present || len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "patient_info is required")
		return nil, "", "", false
	}
	if err := json.Unmarshal([]byte(raw[0]), &info); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON in patient_info")
		return nil, "", "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return nil, "", "", false
	}
	defer file.Close()

	name := uploadName(time.Now(), header.Filename)
	path, err := saveFile(filepath.Join(s.Config.UploadDir, dir), name, file)
	if err != nil {
		slog.Error("Failed to store upload", "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return nil, "", "", false
	}
	slog.Info("Stored upload", "file", path, "bytes", header.Size)
	return info, path, name, true
}

// uploadName is <YYYYmmdd_HHMMSS>_<uuid hex><original extension>.
func uploadName(at time.Time, original string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return at.Format("20060102_150405") + "_" + id + filepath.Ext(filepath.Base(original))
}

func saveFile(dir, name string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, dst.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "healthy",
		"version":      Version,
		"llm_provider": s.LLMProvider,
		"llm_model":    s.LLMModel,
	})
}

package pkg

import (
	"fmt"
	"strconv"
	"time"
)

// ClinicalInput is the raw material for one progress note.  Every channel is
// optional; an empty string means the channel was not supplied.
type ClinicalInput struct {
	TranscribedAudio        string      `json:"transcribed_audio,omitempty"`
	ExtractedTextFromImages string      `json:"extracted_text_from_images,omitempty"`
	PreviousNote            string      `json:"previous_note,omitempty"`
	PatientInfo             PatientInfo `json:"patient_info,omitempty"`
}

// PatientInfo carries patient identity.  The "name" and "mrn" keys are
// recognised; any other keys are passed through untouched.
type PatientInfo map[string]any

// Name returns the patient name, or nil when absent.
func (p PatientInfo) Name() *string { return p.text("name") }

// MRN returns the medical record number, or nil when absent.
func (p PatientInfo) MRN() *string { return p.text("mrn") }

func (p PatientInfo) text(key string) *string {
	if p == nil {
		return nil
	}
	v, ok := p[key]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		// JSON numbers decode as float64.
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		s = fmt.Sprint(t)
	}
	return &s
}

// Objective holds the objective section of a note.  Each list keeps the
// order in which the lines were extracted.
type Objective struct {
	Vitals       []string `json:"vitals"`
	PhysicalExam []string `json:"physical_exam"`
	Labs         []string `json:"labs"`
	OtherData    []string `json:"other_data"`
}

// ProgressNote is the finished result of one assembly.  It is handed to the
// caller and not modified afterwards.
type ProgressNote struct {
	PatientName          *string   `json:"patient_name"`
	MRN                  *string   `json:"mrn"`
	Date                 time.Time `json:"date"`
	Subjective           string    `json:"subjective"`
	Objective            Objective `json:"objective"`
	Assessment           string    `json:"assessment"`
	Plan                 string    `json:"plan"`
	ChangesSinceLastNote string    `json:"changes_since_last_note"`
	ActionItems          []string  `json:"action_items"`
	Discrepancies        []string  `json:"discrepancies"`
}

// NoteResponse is returned by the note generation endpoint.
type NoteResponse struct {
	Note         string        `json:"note"`
	ProgressNote *ProgressNote `json:"progress_note,omitempty"`
}

// KnowledgeChunk is one indexed piece of a reference document.
type KnowledgeChunk struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	ChunkIndex int       `json:"chunk"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScoredChunk is a chunk returned by retrieval together with its cosine
// similarity to the question.
type ScoredChunk struct {
	KnowledgeChunk
	Score float64 `json:"score"`
}

// SourceSummary describes an ingested document.
type SourceSummary struct {
	Source    string    `json:"source"`
	Chunks    int       `json:"chunks"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AskRequest is a patient question for the retrieval assistant.
type AskRequest struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

// SourceRef identifies a chunk used to answer a question.
type SourceRef struct {
	Source string  `json:"source"`
	Chunk  int     `json:"chunk"`
	Score  float64 `json:"score"`
}

// Answer is the assistant's reply and the chunks it was grounded on.
type Answer struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}

// IngestRequest adds or replaces a reference document.
type IngestRequest struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

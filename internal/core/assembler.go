package core

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clinote/internal/llm"
	"clinote/internal/observability"
	"clinote/pkg"
)

var assemblerTracer = otel.Tracer("clinote/internal/core/assembler")

// Channel names one input source of a note.
type Channel string

const (
	ChannelAudio      Channel = "audio"
	ChannelImage      Channel = "image"
	ChannelComparison Channel = "comparison"
)

// discrepancy describes a failed channel the way it appears in the note.
func (c Channel) discrepancy(err error) string {
	switch c {
	case ChannelAudio:
		return "Error processing audio transcript: " + err.Error()
	case ChannelImage:
		return "Error processing image text: " + err.Error()
	case ChannelComparison:
		return "Error comparing notes: " + err.Error()
	}
	panic("core: unknown channel " + string(c))
}

// workingNote is the mutable draft for a single ProcessInput call.
type workingNote struct {
	subjective    string
	objective     pkg.Objective
	assessment    string
	plan          string
	changes       string
	actionItems   []string
	discrepancies []string
}

func newWorkingNote() *workingNote {
	return &workingNote{
		objective: pkg.Objective{
			Vitals:       []string{},
			PhysicalExam: []string{},
			Labs:         []string{},
			OtherData:    []string{},
		},
		actionItems:   []string{},
		discrepancies: []string{},
	}
}

func (w *workingNote) reviewMedications(meds []string) {
	for _, med := range meds {
		w.actionItems = append(w.actionItems, "Review medication: "+med)
	}
}

// finalize copies the draft into an independent ProgressNote.
func (w *workingNote) finalize(name, mrn *string, at time.Time) pkg.ProgressNote {
	return pkg.ProgressNote{
		PatientName: name,
		MRN:         mrn,
		Date:        at,
		Subjective:  w.subjective,
		Objective: pkg.Objective{
			Vitals:       clone(w.objective.Vitals),
			PhysicalExam: clone(w.objective.PhysicalExam),
			Labs:         clone(w.objective.Labs),
			OtherData:    clone(w.objective.OtherData),
		},
		Assessment:           w.assessment,
		Plan:                 w.plan,
		ChangesSinceLastNote: w.changes,
		ActionItems:          clone(w.actionItems),
		Discrepancies:        clone(w.discrepancies),
	}
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// NoteAssembler turns clinical input into a progress note by asking the
// language model about each supplied channel in turn.  Channel failures are
// recorded in the note's discrepancies; ProcessInput itself never fails.
//
// A NoteAssembler holds no per-call state and may be used by any number of
// goroutines at once, provided LLM is itself safe for concurrent use.
type NoteAssembler struct {
	LLM     llm.NoteExtractor
	Metrics *observability.Metrics
	// Now stamps finished notes; defaults to time.Now.
	Now func() time.Time
}

// NewNoteAssembler constructs an assembler around the given model client.
func NewNoteAssembler(client llm.NoteExtractor) *NoteAssembler {
	return &NoteAssembler{LLM: client, Now: time.Now}
}

func (a *NoteAssembler) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// ProcessInput assembles one note.  Channels run in the fixed order audio,
// image, comparison; a later channel overwrites fields an earlier one set.
func (a *NoteAssembler) ProcessInput(ctx context.Context, in pkg.ClinicalInput) pkg.ProgressNote {
	ctx, span := assemblerTracer.Start(ctx, "NoteAssembler.ProcessInput")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("input.audio", in.TranscribedAudio != ""),
		attribute.Bool("input.image", in.ExtractedTextFromImages != ""),
		attribute.Bool("input.previous_note", in.PreviousNote != ""),
	)

	note := newWorkingNote()
	if in.TranscribedAudio != "" {
		a.run(ctx, ChannelAudio, note, func(ctx context.Context) error {
			return a.applyConversation(ctx, in.TranscribedAudio, note)
		})
	}
	if in.ExtractedTextFromImages != "" {
		a.run(ctx, ChannelImage, note, func(ctx context.Context) error {
			return a.applyImageText(ctx, in.ExtractedTextFromImages, note)
		})
	}
	if in.PreviousNote != "" {
		a.run(ctx, ChannelComparison, note, func(ctx context.Context) error {
			return a.applyComparison(ctx, in.PreviousNote, note)
		})
	}

	out := note.finalize(in.PatientInfo.Name(), in.PatientInfo.MRN(), a.now())
	span.SetAttributes(attribute.Int("note.discrepancies", len(out.Discrepancies)))
	a.Metrics.NoteAssembled()
	return out
}

// run executes one channel step and folds its error into the note.
func (a *NoteAssembler) run(ctx context.Context, ch Channel, note *workingNote, step func(context.Context) error) {
	ctx, span := assemblerTracer.Start(ctx, "NoteAssembler."+string(ch),
		trace.WithAttributes(attribute.String("channel", string(ch))))
	defer span.End()

	start := time.Now()
	err := step(ctx)
	a.Metrics.ObserveChannel(string(ch), time.Since(start), err)
	if err != nil {
		slog.Warn("Channel failed; recording discrepancy", "channel", ch, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "channel failed")
		note.discrepancies = append(note.discrepancies, ch.discrepancy(err))
	}
}

// applyConversation writes only the keys the model returned; on error the
// note is left untouched.
func (a *NoteAssembler) applyConversation(ctx context.Context, transcript string, note *workingNote) error {
	res, err := a.LLM.ExtractFromConversation(ctx, transcript)
	if err != nil {
		return err
	}
	if res.Subjective != nil {
		note.subjective = *res.Subjective
	}
	if res.Assessment != nil {
		note.assessment = *res.Assessment
	}
	if res.Plan != nil {
		note.plan = *res.Plan
	}
	if res.Vitals != nil {
		note.objective.Vitals = clone(res.Vitals)
	}
	if res.Labs != nil {
		note.objective.Labs = clone(res.Labs)
	}
	note.reviewMedications(res.Medications)
	return nil
}

func (a *NoteAssembler) applyImageText(ctx context.Context, text string, note *workingNote) error {
	res, err := a.LLM.ExtractFromImageText(ctx, text)
	if err != nil {
		return err
	}
	if res.Vitals != nil {
		note.objective.Vitals = clone(res.Vitals)
	}
	if res.Labs != nil {
		note.objective.Labs = clone(res.Labs)
	}
	if res.OtherData != nil {
		note.objective.OtherData = clone(res.OtherData)
	}
	note.reviewMedications(res.Medications)
	return nil
}

// applyComparison compares the previous note with a rendering of the draft
// so far.  The snapshot carries no patient identity and no changes section.
func (a *NoteAssembler) applyComparison(ctx context.Context, previous string, note *workingNote) error {
	snapshot := Render(note.finalize(nil, nil, a.now()))
	res, err := a.LLM.CompareNotes(ctx, previous, snapshot)
	if err != nil {
		return err
	}
	note.changes = changesSummary(res)
	return nil
}

// changesSummary joins the non-empty comparison groups, one per line, in a
// fixed order.
func changesSummary(res llm.NoteComparison) string {
	groups := []struct {
		label string
		items []string
	}{
		{"New findings: ", res.NewFindings},
		{"Resolved issues: ", res.ResolvedIssues},
		{"Trends: ", res.Trends},
		{"Significant changes: ", res.SignificantChanges},
	}
	var lines []string
	for _, g := range groups {
		if len(g.items) == 0 {
			continue
		}
		lines = append(lines, g.label+strings.Join(g.items, ", "))
	}
	return strings.Join(lines, "\n")
}

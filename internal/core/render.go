package core

import (
	"strings"

	"clinote/pkg"
)

const (
	noteDelimiter = "---"
	unknownName   = "Unknown"
	unknownMRN    = "N/A"
	headerDate    = "2006-01-02"
)

// Render formats a progress note as the markdown text consumed by the ward
// systems.  It never fails: missing identity renders as placeholders, empty
// lists render as empty lines and optional sections are left out.
func Render(note pkg.ProgressNote) string {
	var b strings.Builder

	b.WriteString(noteDelimiter + "\n")
	name, mrn := deref(note.PatientName), deref(note.MRN)
	if name != "" || mrn != "" {
		b.WriteString("**" + orDefault(name, unknownName) + " / " + orDefault(mrn, unknownMRN) +
			" / " + note.Date.Format(headerDate) + "**\n\n")
	}

	section(&b, "Subjective", note.Subjective)

	b.WriteString("**Objective:**\n")
	b.WriteString("- **Vitals:** " + strings.Join(note.Objective.Vitals, ", ") + "\n")
	b.WriteString("- **Physical Exam Findings:** " + strings.Join(note.Objective.PhysicalExam, ", ") + "\n")
	b.WriteString("- **Labs:** " + strings.Join(note.Objective.Labs, ", ") + "\n")
	b.WriteString("- **Other Data (images):** " + strings.Join(note.Objective.OtherData, ", ") + "\n\n")

	section(&b, "Assessment", note.Assessment)
	section(&b, "Plan", note.Plan)
	section(&b, "Changes Since Last Note", note.ChangesSinceLastNote)

	bullets(&b, "Action Items / To-Do", note.ActionItems)
	bullets(&b, "Discrepancies/Conflicts", note.Discrepancies)

	b.WriteString(noteDelimiter)
	return b.String()
}

func section(b *strings.Builder, label, body string) {
	b.WriteString("**" + label + ":**\n" + body + "\n\n")
}

// bullets writes a bulleted section, or nothing when items is empty.
func bullets(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("**" + label + ":**\n")
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
	b.WriteString("\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

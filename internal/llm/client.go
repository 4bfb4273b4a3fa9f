package llm

import "context"

// Message is a minimal chat message used by the question answering service.
// Role must be one of: "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// ConversationExtract is what the model pulled out of a clinical
// conversation.  A nil field means the model did not return that key.
type ConversationExtract struct {
	Subjective  *string
	Assessment  *string
	Plan        *string
	Vitals      []string
	Labs        []string
	Medications []string
}

// ImageExtract is what the model pulled out of OCR'd image text.  A nil
// slice means the key was absent; an empty slice means it was present and
// empty.
type ImageExtract struct {
	Vitals      []string
	Labs        []string
	OtherData   []string
	Medications []string
}

// NoteComparison lists the differences the model found between a previous
// note and the current draft.
type NoteComparison struct {
	NewFindings        []string
	ResolvedIssues     []string
	Trends             []string
	SignificantChanges []string
}

// NoteExtractor is the language model capability the note assembler depends
// on.  Implementations must be safe for concurrent use; any deadline is the
// implementation's business and surfaces as an ordinary error.
type NoteExtractor interface {
	ExtractFromConversation(ctx context.Context, transcript string) (ConversationExtract, error)
	ExtractFromImageText(ctx context.Context, text string) (ImageExtract, error)
	CompareNotes(ctx context.Context, previous, current string) (NoteComparison, error)
}

// Chatter answers a message history with the assistant's reply.
type Chatter interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Embedder turns texts into vectors, one per input and in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Transcriber converts a recorded audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Client is everything the service needs from a provider.
type Client interface {
	NoteExtractor
	Chatter
	Embedder
	Transcriber
}

package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"clinote/internal/llm"
	"clinote/pkg"
)

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// ChunkRetriever finds document chunks relevant to a question.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]pkg.ScoredChunk, error)
}

// QuestionAnswerer answers patient questions from the indexed documents.
type QuestionAnswerer struct {
	LLM       llm.Chatter
	Retriever ChunkRetriever
	// Persona is the system prompt; empty means DefaultPersona.
	Persona string
	TopK    int
}

func NewQuestionAnswerer(client llm.Chatter, retriever ChunkRetriever) *QuestionAnswerer {
	return &QuestionAnswerer{LLM: client, Retriever: retriever}
}

// Answer retrieves context for the question and asks the model.  When the
// model call fails the FallbackAnswer is returned along with the error, so
// callers can still reply to the patient.
func (s *QuestionAnswerer) Answer(ctx context.Context, req pkg.AskRequest) (pkg.Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return pkg.Answer{}, ErrEmptyQuestion
	}
	found, err := s.Retriever.Retrieve(ctx, question, s.TopK)
	if err != nil {
		return pkg.Answer{Answer: FallbackAnswer, Sources: []pkg.SourceRef{}}, fmt.Errorf("retrieve context: %w", err)
	}

	refs := make([]pkg.SourceRef, 0, len(found))
	for _, c := range found {
		refs = append(refs, pkg.SourceRef{Source: c.Source, Chunk: c.ChunkIndex, Score: c.Score})
	}

	persona := s.Persona
	if persona == "" {
		persona = DefaultPersona
	}
	resp, err := s.LLM.Chat(ctx, []llm.Message{
		{Role: "system", Content: persona},
		{Role: "user", Content: answerPrompt(question, req.Context, found)},
	})
	if err != nil {
		return pkg.Answer{Answer: FallbackAnswer, Sources: refs}, err
	}
	return pkg.Answer{Answer: resp, Sources: refs}, nil
}

func answerPrompt(question, extra string, found []pkg.ScoredChunk) string {
	docs := noDocuments
	if len(found) > 0 {
		blocks := make([]string, len(found))
		for i, c := range found {
			blocks[i] = "[" + c.Source + " #" + strconv.Itoa(c.ChunkIndex) + "]\n" + c.Content
		}
		docs = strings.Join(blocks, "\n\n")
	}
	if extra = strings.TrimSpace(extra); extra != "" {
		extra = "Additional context: " + extra + "\n\n"
	}
	return fmt.Sprintf(answerTemplate, docs, extra, question)
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"clinote/internal/config"
)

var _ Client = (*OpenAIClient)(nil)

// OpenAIClient calls the OpenAI API for extraction, chat, embeddings and
// transcription.  One client is built at startup and shared by every
// request; the underlying HTTP client is safe for concurrent use.
type OpenAIClient struct {
	client             *openai.Client
	model              string
	transcriptionModel string
	embeddingModel     string
	temperature        float32
	maxTokens          int
	topP               float32
	frequencyPenalty   float32
	presencePenalty    float32
	jsonMode           bool
	timeout            time.Duration
}

// NewOpenAIClient constructs an OpenAI-backed client from the LLM section of
// the configuration.  A custom base URL points it at any OpenAI-compatible
// server.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	if cfg.APIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set; language model calls will fail")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	slog.Info("Initializing OpenAI client", "model", cfg.Model, "base_url", oc.BaseURL)
	return &OpenAIClient{
		client:             openai.NewClientWithConfig(oc),
		model:              cfg.Model,
		transcriptionModel: cfg.TranscriptionModel,
		embeddingModel:     cfg.EmbeddingModel,
		temperature:        cfg.Temperature,
		maxTokens:          cfg.MaxTokens,
		topP:               cfg.TopP,
		frequencyPenalty:   cfg.FrequencyPenalty,
		presencePenalty:    cfg.PresencePenalty,
		jsonMode:           cfg.JSONMode,
		timeout:            cfg.Timeout,
	}
}

func (c *OpenAIClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// complete runs one chat completion and returns the first choice.
func (c *OpenAIClient) complete(ctx context.Context, msgs []openai.ChatCompletionMessage, jsonReply bool) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:            c.model,
		Messages:         msgs,
		Temperature:      c.temperature,
		MaxTokens:        c.maxTokens,
		TopP:             c.topP,
		FrequencyPenalty: c.frequencyPenalty,
		PresencePenalty:  c.presencePenalty,
	}
	if jsonReply && c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	slog.Debug("Calling OpenAI chat completion", "model", c.model, "json", jsonReply)
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) extract(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	}, true)
}

// ExtractFromConversation pulls SOAP content out of a transcript.
func (c *OpenAIClient) ExtractFromConversation(ctx context.Context, transcript string) (ConversationExtract, error) {
	content, err := c.extract(ctx, ConversationPrompt, transcript)
	if err != nil {
		return ConversationExtract{}, err
	}
	return decodeConversation(content)
}

// ExtractFromImageText pulls objective data out of OCR text.
func (c *OpenAIClient) ExtractFromImageText(ctx context.Context, text string) (ImageExtract, error) {
	content, err := c.extract(ctx, ImagePrompt, text)
	if err != nil {
		return ImageExtract{}, err
	}
	return decodeImage(content)
}

// CompareNotes lists what changed between the previous note and the
// current draft.
func (c *OpenAIClient) CompareNotes(ctx context.Context, previous, current string) (NoteComparison, error) {
	content, err := c.extract(ctx, ComparePrompt, fmt.Sprintf(compareUserPrompt, previous, current))
	if err != nil {
		return NoteComparison{}, err
	}
	return decodeComparison(content)
}

// Chat sends the message history to the OpenAI chat completion API and returns
// the assistant's response.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			// coerce anything unknown to user
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	reply, err := c.complete(ctx, oaMsgs, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// Embed returns one embedding per text using the configured embedding model.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("OpenAI returned embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Transcribe runs the audio file at path through the transcription model.
func (c *OpenAIClient) Transcribe(ctx context.Context, path string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	slog.Info("Transcribing audio file", "path", path, "model", c.transcriptionModel)
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: path,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

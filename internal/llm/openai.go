package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Message is a minimal chat message.
// Role must be one of: "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// Purpose selects which configured model serves a call.
type Purpose int

const (
	PurposeClinical Purpose = iota
	PurposeSummary
	PurposeTranslate
)

// Client defines the completions used by the extractor, summariser and the
// translation fallback.
type Client interface {
	// Chat returns the assistant's free-text reply.
	Chat(ctx context.Context, purpose Purpose, messages []Message) (string, error)
	// JSON requests a JSON object response and decodes it into out.
	JSON(ctx context.Context, purpose Purpose, system, user string, out interface{}) error
}

// Options configures an OpenAIClient. BaseURL may point at any
// OpenAI-compatible endpoint (Groq, a local gateway).
type Options struct {
	APIKey         string
	BaseURL        string
	ClinicalModel  string
	SummaryModel   string
	TranslateModel string
}

// OpenAIClient calls an OpenAI-compatible chat completion API.
type OpenAIClient struct {
	client *openai.Client
	models map[Purpose]string
}

// NewOpenAIClient constructs the client. Unset models fall back to
// gpt-4o-mini.
func NewOpenAIClient(opts Options) *OpenAIClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	pick := func(m string) string {
		if m == "" {
			return "gpt-4o-mini"
		}
		return m
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		models: map[Purpose]string{
			PurposeClinical:  pick(opts.ClinicalModel),
			PurposeSummary:   pick(opts.SummaryModel),
			PurposeTranslate: pick(opts.TranslateModel),
		},
	}
}

func temperature(p Purpose) float32 {
	switch p {
	case PurposeTranslate:
		return 0
	case PurposeSummary:
		return 0.3
	default:
		return 0.2
	}
}

func toOpenAI(messages []Message) []openai.ChatCompletionMessage {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			// coerce anything unknown to user
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return oaMsgs
}

// Chat sends the message history and returns the assistant's response.
func (c *OpenAIClient) Chat(ctx context.Context, purpose Purpose, messages []Message) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.models[purpose],
		Messages:    toOpenAI(messages),
		Temperature: temperature(purpose),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// JSON asks for a JSON object and decodes it into out. When out is a
// *json.RawMessage the raw body is stored untouched so callers can repair it.
func (c *OpenAIClient) JSON(ctx context.Context, purpose Purpose, system, user string, out interface{}) error {
	if c.client == nil {
		return errors.New("openai client not initialized")
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.models[purpose],
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature:    temperature(purpose),
		MaxTokens:      2048,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return fmt.Errorf("json completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("json completion returned no choices")
	}
	content := StripFences(resp.Choices[0].Message.Content)
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = json.RawMessage(content)
		return nil
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("decode json completion: %w", err)
	}
	return nil
}

// StripFences removes a surrounding markdown code fence, which some models
// emit even in JSON mode.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

package clinical

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"janani-health/internal/llm"
)

// Extractor turns a transcript, optionally grounded by the advisory answer,
// into a clinical record. Implementations always return a repaired record
// when err is nil.
type Extractor interface {
	Extract(ctx context.Context, transcript, advisoryContext string) (Record, error)
}

// LLMExtractor realises Extractor with a JSON-mode completion.
type LLMExtractor struct {
	LLM llm.Client
}

// NewLLMExtractor constructs an extractor over the given client.
func NewLLMExtractor(client llm.Client) *LLMExtractor {
	return &LLMExtractor{LLM: client}
}

var _ Extractor = (*LLMExtractor)(nil)

// Extract asks the model for the fixed schema and repairs the answer.
func (e *LLMExtractor) Extract(ctx context.Context, transcript, advisoryContext string) (Record, error) {
	if strings.TrimSpace(transcript) == "" {
		return Record{}, fmt.Errorf("empty transcript")
	}
	var raw json.RawMessage
	if err := e.LLM.JSON(ctx, llm.PurposeClinical, extractionSystemPrompt, extractionUserPrompt(transcript, advisoryContext), &raw); err != nil {
		return Record{}, fmt.Errorf("clinical extraction: %w", err)
	}
	return Parse(raw), nil
}

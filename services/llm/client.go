package llm

import (
	"context"
	"os"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Completion is one model response plus provider metadata. Metadata carries
// the raw token-usage payload ("token_usage" or "usage" key depending on the
// provider) for downstream accounting.
type Completion struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (*Completion, error)
}

// analystPersona is the system prompt shared by every backend, overridable
// via FRAUD_ANALYST_PERSONA.
func analystPersona() string {
	if p := os.Getenv("FRAUD_ANALYST_PERSONA"); p != "" {
		return p
	}
	return "You are a fraud investigation analyst. Base every conclusion on the evidence provided."
}

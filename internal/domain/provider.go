package domain

import (
	"context"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Provider is the interface the model backend must implement.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
	Healthy(ctx context.Context) error
}

type ChatRequest struct {
	Messages       []Message
	Tools          []ToolDefinition
	Model          string
	MaxTokens      int
	Temperature    *float64        // nil = provider default
	ResponseFormat *ResponseFormat // nil = free-form text
}

// ResponseFormat constrains the final answer to a JSON schema.
type ResponseFormat struct {
	Name   string
	Schema jsonschema.Definition
	Strict bool
}

type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string // stop | tool_calls | length
	Usage        Usage
	LatencyMs    int64
}

func (r *ChatResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ToolDefinition struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Parameters  jsonschema.Definition `json:"parameters"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

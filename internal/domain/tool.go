package domain

import (
	"context"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Tool is a bounded capability the model may invoke mid-generation.
// Execute returns a JSON-serialisable payload; status may be nil.
type Tool interface {
	Name() string
	Description() string
	Parameters() jsonschema.Definition
	Execute(ctx context.Context, args map[string]any, status StatusFunc) (any, error)
}

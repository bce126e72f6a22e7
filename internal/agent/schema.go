package agent

import (
	"fmt"
	"strings"
	"sync"

	"regenie/internal/domain"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// FullResponse is the structured answer for assistant threads.
type FullResponse struct {
	ThreadTitle string   `json:"threadTitle" description:"A short title for the entire thread include emojis."`
	Response    string   `json:"response" description:"Your response to the user's message. This is the most important part of the response. Format the response with markdown and a lot of emojis."`
	FollowUps   []string `json:"followUps" description:"Optional list of follow up prompts from the user's perspective to continue the conversation. Include a relevant emoji at the start of each prompt."`
}

// SimpleResponse is the structured answer for channel mentions.
type SimpleResponse struct {
	Response string `json:"response" description:"Your response to the user's message. This is the most important part of the response. Format the response with markdown and a lot of emojis."`
}

// ParseError reports model output that does not match the requested schema.
type ParseError struct {
	Schema domain.SchemaKind
	Output string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Schema, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	fullSchema   = sync.OnceValues(func() (jsonschema.Definition, error) { return generateSchema(FullResponse{}) })
	simpleSchema = sync.OnceValues(func() (jsonschema.Definition, error) { return generateSchema(SimpleResponse{}) })
)

func generateSchema(v any) (jsonschema.Definition, error) {
	def, err := jsonschema.GenerateSchemaForType(v)
	if err != nil {
		return jsonschema.Definition{}, fmt.Errorf("response schema for %T: %w", v, err)
	}
	return *def, nil
}

// schemaFor returns the JSON schema the model is asked to follow.
func schemaFor(kind domain.SchemaKind) (jsonschema.Definition, error) {
	if kind == domain.SchemaSimple {
		return simpleSchema()
	}
	return fullSchema()
}

func responseFormat(kind domain.SchemaKind) (*domain.ResponseFormat, error) {
	schema, err := schemaFor(kind)
	if err != nil {
		return nil, err
	}
	return &domain.ResponseFormat{Name: "response", Schema: schema, Strict: true}, nil
}

// parseResponse validates model output against the schema for kind and
// returns the unconverted markdown fields.
func parseResponse(kind domain.SchemaKind, output string) (FullResponse, error) {
	content := stripCodeFence(output)
	if content == "" {
		return FullResponse{}, &ParseError{Schema: kind, Output: output, Err: fmt.Errorf("empty output")}
	}

	schema, err := schemaFor(kind)
	if err != nil {
		return FullResponse{}, err
	}

	var out FullResponse
	switch kind {
	case domain.SchemaSimple:
		var simple SimpleResponse
		if err := jsonschema.VerifySchemaAndUnmarshal(schema, []byte(content), &simple); err != nil {
			return FullResponse{}, &ParseError{Schema: kind, Output: output, Err: err}
		}
		out.Response = simple.Response
	default:
		if err := jsonschema.VerifySchemaAndUnmarshal(schema, []byte(content), &out); err != nil {
			return FullResponse{}, &ParseError{Schema: kind, Output: output, Err: err}
		}
	}

	if strings.TrimSpace(out.Response) == "" {
		return FullResponse{}, &ParseError{Schema: kind, Output: output, Err: fmt.Errorf("response is empty")}
	}
	if out.FollowUps == nil {
		out.FollowUps = []string{}
	}
	return out, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

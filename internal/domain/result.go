package domain

// SchemaKind selects the structured output shape the model must emit.
type SchemaKind string

const (
	// SchemaFull asks for a thread title, a response and follow-up prompts.
	SchemaFull SchemaKind = "full"
	// SchemaSimple asks for the response only.
	SchemaSimple SchemaKind = "simple"
)

// Valid reports whether k names a known schema.
func (k SchemaKind) Valid() bool {
	return k == SchemaFull || k == SchemaSimple
}

// GenerationResult is the terminal value of one generation call.
// Response is always set; FollowUps is never nil.
type GenerationResult struct {
	ThreadTitle string
	Response    string
	FollowUps   []string
}

package domain

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartKind classifies a single piece of multi-part message content.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
	PartFile  PartKind = "file"
)

// Part is one element of an ordered multi-part message body.
type Part struct {
	Kind     PartKind
	Text     string // PartText only
	MimeType string // PartImage and PartFile
	Data     []byte // raw attachment bytes
	Filename string // PartFile only
}

// TextPart returns a text content part.
func TextPart(text string) Part { return Part{Kind: PartText, Text: text} }

// ImagePart returns an inline image part tagged with its MIME type.
func ImagePart(mime string, data []byte) Part {
	return Part{Kind: PartImage, MimeType: mime, Data: data}
}

// FilePart returns a document part (PDFs) carrying its filename.
func FilePart(mime, filename string, data []byte) Part {
	return Part{Kind: PartFile, MimeType: mime, Data: data, Filename: filename}
}

// Message is a role-tagged conversation entry handed to the model.
// Content is either Text or, when Parts is non-empty, the ordered Parts.
type Message struct {
	Role  Role
	Text  string
	Parts []Part

	// Tool loop bookkeeping; only set on messages produced while the
	// generator is resolving tool calls.
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// TextMessage builds a plain text message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Text: text}
}

// PartsMessage builds a multi-part message.
func PartsMessage(role Role, parts ...Part) Message {
	return Message{Role: role, Parts: parts}
}

// IsEmpty reports whether the message carries no text and no parts.
func (m Message) IsEmpty() bool {
	return m.Text == "" && len(m.Parts) == 0 && len(m.ToolCalls) == 0
}

// StatusFunc surfaces a human-readable progress line to the user while a
// request is in flight. Implementations must not block for long and log
// their own delivery failures.
type StatusFunc func(ctx context.Context, status string)

// Emit calls f when it is non-nil.
func (f StatusFunc) Emit(ctx context.Context, status string) {
	if f != nil {
		f(ctx, status)
	}
}

package domain

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry in the message sequence sent to a provider.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// OutputSchema asks the provider to constrain its output to a declared
// field structure. Schema is a JSON-schema document, marshalable as-is.
type OutputSchema struct {
	Name   string
	Schema any
}

// CompletionRequest describes one logical call to a provider. Only the
// model is chosen per call; generation parameters (max tokens,
// temperature) are fixed client configuration.
type CompletionRequest struct {
	Model    string
	Messages []ChatMessage
	Schema   *OutputSchema // nil for plain text output
}

// StreamChunk is one incremental unit of generated text. A chunk with a
// non-nil Err is always the last one delivered; content relayed before
// it stays valid and is never retracted.
type StreamChunk struct {
	Content string
	Err     error
}

// Llm abstracts a chat-completion provider.
type Llm interface {
	// Complete performs one blocking round trip and returns the whole
	// textual content of the response.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Stream returns a lazy, forward-only sequence of chunks. The channel
	// is closed when the provider finishes generating; chunks with an
	// empty delta are suppressed, never delivered as "". Cancelling ctx
	// stops chunk production and releases the provider connection.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}

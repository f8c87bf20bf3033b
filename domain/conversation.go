package domain

// Turn is one completed user/assistant exchange.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// History is the ordered turns of a conversation, oldest first. An empty
// history marks the first turn.
type History []Turn

// ConversationRequest is one inbound turn of a conversation.
//
// On the first turn (empty history) LatestPrompt is the raw prompt that
// gets formatted and enhanced; on continued turns Message is used
// verbatim as this turn's prompt and no enhancement happens.
type ConversationRequest struct {
	Strategy     Strategy
	Message      string
	History      History
	Stream       bool
	LatestPrompt string
}

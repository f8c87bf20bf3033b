package domain

import (
	"context"
	"time"
)

// TopicUsage carries one UsageEvent per completed pipeline turn.
const TopicUsage = "gateway.usage"

// EventBus is an in-process pub/sub for gateway events.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan Event, error)
	Close() error
}

// Event is a message received from the bus.
type Event struct {
	Topic     string
	Payload   []byte
	Timestamp time.Time
}

// UsageEvent describes one completed (or failed) pipeline turn.
type UsageEvent struct {
	RequestID  string   `json:"request_id"`
	Strategy   Strategy `json:"strategy"`
	Model      string   `json:"model"`
	Streamed   bool     `json:"streamed"`
	Enhanced   bool     `json:"enhanced"`
	DurationMS int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

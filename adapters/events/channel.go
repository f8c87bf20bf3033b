package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/promptalchemy/alchemy/domain"
	"github.com/promptalchemy/alchemy/utils/log"
)

const topicBuffer = 100

// ChannelEventBus implements domain.EventBus over in-process Go
// channels. Publishing never blocks request handling: a full topic
// drops the event with an error instead of stalling the pipeline.
type ChannelEventBus struct {
	mu     sync.Mutex
	topics map[string]chan domain.Event
	closed bool
}

func New() *ChannelEventBus {
	return &ChannelEventBus{topics: make(map[string]chan domain.Event)}
}

func (b *ChannelEventBus) topic(name string) (chan domain.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}
	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan domain.Event, topicBuffer)
		b.topics[name] = ch
	}
	return ch, nil
}

// Publish sends payload to topic without blocking.
func (b *ChannelEventBus) Publish(ctx context.Context, topic string, payload []byte) error {
	ch, err := b.topic(topic)
	if err != nil {
		return err
	}

	ev := domain.Event{Topic: topic, Payload: payload, Timestamp: time.Now()}
	select {
	case ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("topic channel is full: %s", topic)
	}
}

// Subscribe returns the receive side of a topic. One consumer per topic;
// this bus exists for process-local drains, not fan-out.
func (b *ChannelEventBus) Subscribe(ctx context.Context, topic string) (<-chan domain.Event, error) {
	ch, err := b.topic(topic)
	if err != nil {
		return nil, err
	}
	log.WithCtx(ctx).Info("Subscribed to topic", zap.String("topic", topic))
	return ch, nil
}

// Close shuts the bus down and closes every topic channel.
func (b *ChannelEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, ch := range b.topics {
		close(ch)
	}
	b.topics = make(map[string]chan domain.Event)
	return nil
}

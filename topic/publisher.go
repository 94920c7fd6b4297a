package topic

import (
	"context"
	"fmt"
)

// Event is an application message with a fixed subject, published through a
// Publisher.
type Event interface {
	Subject() string
}

// Publisher routes events to topics by their subject.
type Publisher struct {
	topics map[string]*Topic
}

// NewPublisher builds a Publisher from a subject to topic mapping.
func NewPublisher(topics map[string]*Topic) *Publisher {
	return &Publisher{topics: topics}
}

// Publish sends the event to the topic mapped to its subject.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	t, ok := p.topics[event.Subject()]
	if !ok {
		return fmt.Errorf("no topic mapped for subject %q", event.Subject())
	}

	return t.Publish(ctx, event.Subject(), event)
}

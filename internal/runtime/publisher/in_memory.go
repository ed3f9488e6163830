package publisher

import (
	"context"
	"sync"
)

// Message is one publish recorded by InMemoryAdapter.
type Message struct {
	RoutingKey string
	Payload    map[string]any
	Properties Properties
	Options    Options
}

// InMemoryAdapter records publishes instead of sending them.
type InMemoryAdapter struct {
	mu       sync.Mutex
	messages []Message
}

func NewInMemoryAdapter() *InMemoryAdapter {
	return &InMemoryAdapter{}
}

func (a *InMemoryAdapter) Publish(_ context.Context, routingKey string, payload map[string]any, props Properties, opts Options) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	props.Headers = props.Headers.Clone()
	a.messages = append(a.messages, Message{
		RoutingKey: routingKey,
		Payload:    payload,
		Properties: props,
		Options:    opts,
	})
	return nil
}

// Store returns a copy of the recorded messages in publish order.
func (a *InMemoryAdapter) Store() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Message(nil), a.messages...)
}

// Reset clears the recorded messages.
func (a *InMemoryAdapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = nil
}

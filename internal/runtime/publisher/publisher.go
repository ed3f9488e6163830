// Package publisher holds the outbound adapter events are published through.
// The adapter is chosen by name from configuration, built lazily and can be
// swapped at runtime, for instance to capture messages in tests.
package publisher

import (
	"context"
	"fmt"
	"sync"

	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
)

// Adapter names accepted by NewFactory.
const (
	AdapterBroker   = "broker"
	AdapterInMemory = "in_memory"
)

// Properties are the message properties sent along with a payload.
type Properties struct {
	Headers       metadatapkg.Headers
	CorrelationID string
	ReplyTo       string
	ContentType   string
}

// Options tune how a message is published.
type Options struct {
	// Transient asks the broker not to persist the message.
	Transient bool
}

// Adapter delivers a serialized payload to a routing key.
type Adapter interface {
	Publish(ctx context.Context, routingKey string, payload map[string]any, props Properties, opts Options) error
}

// Factory builds an adapter on first use.
type Factory func() (Adapter, error)

// NewFactory returns the factory for the named adapter. The broker adapter is
// produced by broker so the transport is only touched when selected.
func NewFactory(name string, broker func() (Adapter, error)) (Factory, error) {
	switch name {
	case AdapterBroker:
		if broker == nil {
			return nil, fmt.Errorf("%w: %s adapter has no transport", errspkg.ErrInvalidAdapter, name)
		}
		return broker, nil
	case AdapterInMemory:
		return func() (Adapter, error) { return NewInMemoryAdapter(), nil }, nil
	default:
		return nil, fmt.Errorf("%w: %q", errspkg.ErrInvalidAdapter, name)
	}
}

// Publisher delegates to the current adapter. It is safe for concurrent use.
type Publisher struct {
	mu      sync.Mutex
	current Adapter
	factory Factory
}

// New returns a Publisher that builds its adapter with factory.
func New(factory Factory) *Publisher {
	return &Publisher{factory: factory}
}

// Publish hands the payload to the current adapter.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload map[string]any, props Properties, opts Options) error {
	adapter, err := p.CurrentAdapter()
	if err != nil {
		return err
	}
	return adapter.Publish(ctx, routingKey, payload, props, opts)
}

// CurrentAdapter returns the adapter, building it once if needed.
func (p *Publisher) CurrentAdapter() (Adapter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return p.current, nil
	}
	if p.factory == nil {
		return nil, errspkg.ErrInvalidAdapter
	}
	adapter, err := p.factory()
	if err != nil {
		return nil, err
	}
	p.current = adapter
	return adapter, nil
}

// SetCurrentAdapter replaces the adapter.
func (p *Publisher) SetCurrentAdapter(adapter Adapter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = adapter
}

// Reset discards the adapter so the next publish builds a fresh one.
func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
}

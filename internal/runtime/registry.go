package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"

	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	"github.com/drblury/hermes/internal/runtime/events"
)

// Handler processes one decoded event. The returned value is the RPC response
// and is discarded for plain subscriptions.
type Handler func(ctx context.Context, ev events.Event) (any, error)

// ConsumerConfig holds the broker-side settings of a registration.
type ConsumerConfig struct {
	// HandlerName is the Watermill router handler name.
	HandlerName string
	// Queue is the durable queue consumed for the event.
	Queue string
}

// RegistrationOptions controls how deliveries of an event are processed.
type RegistrationOptions struct {
	// Async hands deliveries to the background job worker instead of
	// processing them on the consumer goroutine.
	Async bool
	// RPC replies to the delivery's reply address with the handler response.
	RPC bool
	// Consumer rewrites the default consumer settings.
	Consumer func(ConsumerConfig) ConsumerConfig

	asyncSet bool
}

// RegistrationOption adjusts RegistrationOptions.
type RegistrationOption func(*RegistrationOptions)

// Async toggles background processing. Registrations are async by default.
func Async(enabled bool) RegistrationOption {
	return func(o *RegistrationOptions) {
		o.Async = enabled
		o.asyncSet = true
	}
}

// RPC marks the registration as an RPC responder. RPC handlers run
// synchronously unless Async(true) is also given, which is rejected.
func RPC() RegistrationOption {
	return func(o *RegistrationOptions) {
		o.RPC = true
	}
}

// WithConsumerConfig rewrites the queue and handler name of a registration.
func WithConsumerConfig(fn func(ConsumerConfig) ConsumerConfig) RegistrationOption {
	return func(o *RegistrationOptions) {
		o.Consumer = fn
	}
}

func buildOptions(opts []RegistrationOption) (RegistrationOptions, error) {
	o := RegistrationOptions{Async: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.RPC {
		if o.asyncSet && o.Async {
			return o, errspkg.ErrAsyncRPC
		}
		o.Async = false
	}
	return o, nil
}

// Registration binds an event type to its handler and consumer settings.
// It is not modified after registration.
type Registration struct {
	EventType  string
	RoutingKey string
	Factory    events.Factory
	Handler    Handler
	Options    RegistrationOptions
	Consumer   ConsumerConfig
}

// Registry stores registrations by event type name and by routing key.
type Registry struct {
	mu           sync.RWMutex
	prefix       string
	catalog      *events.Catalog
	byType       map[string]Registration
	byRoutingKey map[string]string
	byHandler    map[string]string
}

// NewRegistry returns an empty registry. Registered event types are added to
// catalog so they can be rebuilt by the job worker. A nil catalog gets a
// private one.
func NewRegistry(applicationPrefix string, catalog *events.Catalog) *Registry {
	if catalog == nil {
		catalog = events.NewCatalog()
	}
	return &Registry{
		prefix:       applicationPrefix,
		catalog:      catalog,
		byType:       make(map[string]Registration),
		byRoutingKey: make(map[string]string),
		byHandler:    make(map[string]string),
	}
}

// Catalog returns the event catalog fed by the registry.
func (r *Registry) Catalog() *events.Catalog { return r.catalog }

// Register stores the handler for eventType. An empty eventType is derived
// from the event built by factory.
func (r *Registry) Register(eventType string, factory events.Factory, handler Handler, opts ...RegistrationOption) (Registration, error) {
	if factory == nil {
		return Registration{}, errspkg.ErrEventRequired
	}
	if handler == nil {
		return Registration{}, errspkg.ErrHandlerRequired
	}
	options, err := buildOptions(opts)
	if err != nil {
		return Registration{}, err
	}

	sample := factory()
	if sample == nil {
		return Registration{}, errspkg.ErrEventRequired
	}
	if eventType == "" {
		eventType = events.TypeName(sample)
	}
	routingKey := events.RoutingKey(sample)

	consumer := ConsumerConfig{Queue: events.QueueName(r.prefix, routingKey)}
	consumer.HandlerName = consumer.Queue
	if options.Consumer != nil {
		consumer = options.Consumer(consumer)
	}

	reg := Registration{
		EventType:  eventType,
		RoutingKey: routingKey,
		Factory:    factory,
		Handler:    handler,
		Options:    options,
		Consumer:   consumer,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byType[eventType]; ok {
		return Registration{}, fmt.Errorf("%w: %s", errspkg.ErrAlreadyRegistered, eventType)
	}
	if other, ok := r.byRoutingKey[routingKey]; ok {
		return Registration{}, fmt.Errorf("%w: routing key %s is taken by %s", errspkg.ErrAlreadyRegistered, routingKey, other)
	}
	if owner, ok := r.byHandler[consumer.HandlerName]; ok {
		return Registration{}, fmt.Errorf("%w: handler name %s is taken by %s", errspkg.ErrAlreadyRegistered, consumer.HandlerName, owner)
	}
	if err := r.catalog.Register(eventType, factory); err != nil {
		return Registration{}, err
	}
	r.byType[eventType] = reg
	r.byRoutingKey[routingKey] = eventType
	r.byHandler[consumer.HandlerName] = eventType
	return reg, nil
}

// ClaimHandlerName reserves a router handler name for owner. The router
// panics on duplicate names, so every handler added to it is claimed first.
func (r *Registry) ClaimHandlerName(name, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if other, ok := r.byHandler[name]; ok {
		return fmt.Errorf("%w: handler name %s is taken by %s", errspkg.ErrAlreadyRegistered, name, other)
	}
	r.byHandler[name] = owner
	return nil
}

// Lookup returns the registration of eventType.
func (r *Registry) Lookup(eventType string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byType[eventType]
	if !ok {
		return Registration{}, fmt.Errorf("%w: %s", errspkg.ErrUnknownEventType, eventType)
	}
	return reg, nil
}

// ForRoutingKey returns the registration consuming routingKey.
func (r *Registry) ForRoutingKey(routingKey string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	eventType, ok := r.byRoutingKey[routingKey]
	if !ok {
		return Registration{}, false
	}
	return r.byType[eventType], true
}

// All returns every registration ordered by event type.
func (r *Registry) All() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(r.byType))
	for _, reg := range r.byType {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventType < out[j].EventType })
	return out
}

// Package events defines the event contract shared by producers and
// consumers: the embeddable Base, type names, routing keys and the catalog of
// known event types.
package events

import (
	"sync"

	jsoncodec "github.com/drblury/hermes/internal/runtime/jsoncodec"
	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
	"github.com/drblury/hermes/internal/runtime/tracectx"
)

// DefaultVersion is the schema version of events that do not declare one.
const DefaultVersion = 1

// Event is implemented by every struct that embeds Base.
type Event interface {
	EventBase() *Base
}

// Named lets an event declare its type name instead of the reflected one.
type Named interface {
	EventType() string
}

// Routed lets an event override the derived routing key.
type Routed interface {
	RoutingKey() string
}

// Versioned lets an event declare its schema version.
type Versioned interface {
	Version() int
}

// Base carries the propagation state of an event. Embed it in event structs:
//
//	type OrderPlaced struct {
//		events.Base
//		OrderID string `json:"order_id"`
//	}
type Base struct {
	mu               sync.Mutex
	originBody       map[string]any
	originHeaders    metadatapkg.Headers
	hasOriginHeaders bool
	trace            *tracectx.Context
}

// EventBase returns b so Base satisfies Event for embedding structs.
func (b *Base) EventBase() *Base { return b }

// OriginBody returns the decoded body the event was built from, if any.
func (b *Base) OriginBody() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.originBody
}

// SetOriginBody records the body the event was built from.
func (b *Base) SetOriginBody(body map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.originBody = body
}

// OriginHeaders returns the headers of the event that caused this one.
func (b *Base) OriginHeaders() metadatapkg.Headers {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.originHeaders.Clone()
}

// HasOriginHeaders reports whether origin headers were set explicitly.
func (b *Base) HasOriginHeaders() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hasOriginHeaders
}

// SetOriginHeaders records the causing event's headers. A previously derived
// trace context is discarded.
func (b *Base) SetOriginHeaders(headers metadatapkg.Headers) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.originHeaders = headers.Clone()
	b.hasOriginHeaders = true
	b.trace = nil
}

// TraceContext returns the event's trace context, deriving it once from the
// origin headers.
func (b *Base) TraceContext(service string) (*tracectx.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.trace != nil {
		return b.trace, nil
	}
	trace, err := tracectx.New(b.originHeaders, service)
	if err != nil {
		return nil, err
	}
	b.trace = trace
	return trace, nil
}

// Version returns the schema version of ev.
func Version(ev Event) int {
	if v, ok := ev.(Versioned); ok {
		return v.Version()
	}
	return DefaultVersion
}

// AsJSON renders the event attributes as a JSON object.
func AsJSON(ev Event) (map[string]any, error) {
	return jsoncodec.ToMap(ev)
}

// Headers returns the propagation headers of ev as emitted by service.
func Headers(ev Event, service string) (metadatapkg.Headers, error) {
	trace, err := ev.EventBase().TraceContext(service)
	if err != nil {
		return nil, err
	}
	return trace.Headers(), nil
}

// Decode fills ev from a JSON body and records body and headers as its origin.
func Decode(ev Event, body []byte, headers metadatapkg.Headers) error {
	originBody, err := jsoncodec.UnmarshalMap(body)
	if err != nil {
		return err
	}
	if len(body) > 0 {
		if err := jsoncodec.Unmarshal(body, ev); err != nil {
			return err
		}
	}
	base := ev.EventBase()
	base.SetOriginBody(originBody)
	if headers == nil {
		headers = metadatapkg.Headers{}
	}
	base.SetOriginHeaders(headers)
	return nil
}

// Package serializer wraps outbound event payloads with their metadata block.
package serializer

import "time"

// MetaKey is the payload key holding the metadata block.
const MetaKey = "meta"

// Serializer stamps payloads with a timestamp and event version.
type Serializer struct {
	now func() time.Time
}

// Option customises a Serializer.
type Option func(*Serializer)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Serializer) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Serializer using the wall clock unless overridden.
func New(opts ...Option) *Serializer {
	s := &Serializer{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serialize returns a copy of payload carrying
// meta: {timestamp: RFC 3339, event_version: version}.
func (s *Serializer) Serialize(payload map[string]any, version int) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out[MetaKey] = map[string]any{
		"timestamp":     s.now().Format(time.RFC3339),
		"event_version": version,
	}
	return out
}

package logging

import (
	"time"

	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
	"github.com/drblury/hermes/internal/runtime/sanitize"
)

// EventLogger writes the lifecycle lines for enqueued and published events.
// Bodies pass through the sanitize filter first.
type EventLogger struct {
	log    ServiceLogger
	filter *sanitize.Filter
}

// NewEventLogger builds an EventLogger. A nil filter uses the default keywords.
func NewEventLogger(log ServiceLogger, filter *sanitize.Filter) *EventLogger {
	if log == nil {
		panic("hermes: ServiceLogger cannot be nil")
	}
	if filter == nil {
		filter = sanitize.NewFilter()
	}
	return &EventLogger{log: log, filter: filter}
}

// LogEnqueued records that an event was handed to the background processor.
func (l *EventLogger) LogEnqueued(eventType string, body map[string]any, headers metadatapkg.Headers, at time.Time) {
	l.log.Info("Event enqueued", LogFields{
		"event_type": eventType,
		"body":       l.filter.Sanitize(body),
		"headers":    map[string]any(headers),
		"at":         at.UTC().Format(time.RFC3339),
	})
}

// LogPublished records that an event was delivered to the broker.
func (l *EventLogger) LogPublished(routingKey string, body map[string]any, headers metadatapkg.Headers, at time.Time) {
	l.log.Info("Event published", LogFields{
		"routing_key": routingKey,
		"body":        l.filter.Sanitize(body),
		"headers":     map[string]any(headers),
		"at":          at.UTC().Format(time.RFC3339),
	})
}

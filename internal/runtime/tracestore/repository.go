// Package tracestore persists one distributed trace record per produced or
// consumed event.
package tracestore

import (
	"context"
	"fmt"
	"time"

	"github.com/drblury/hermes/internal/runtime/events"
	"github.com/drblury/hermes/internal/runtime/notify"
	"github.com/drblury/hermes/internal/runtime/sanitize"
)

// Store inserts a record into a table.
type Store interface {
	Insert(ctx context.Context, table string, attrs map[string]any) error
}

// Mapper transforms a record before it is stored.
type Mapper interface {
	Map(attrs map[string]any) map[string]any
}

// SanitizingMapper deep-copies records and redacts sensitive values.
type SanitizingMapper struct {
	Filter *sanitize.Filter
}

func (m SanitizingMapper) Map(attrs map[string]any) map[string]any {
	filter := m.Filter
	if filter == nil {
		filter = sanitize.NewFilter()
	}
	return filter.Sanitize(attrs)
}

// ErrorHandler receives failures to store a record.
type ErrorHandler interface {
	Handle(ctx context.Context, err error)
}

// DatabaseErrorHandler forwards storage failures to a notifier.
type DatabaseErrorHandler struct {
	Notifier notify.Notifier
}

func (h DatabaseErrorHandler) Handle(ctx context.Context, err error) {
	if h.Notifier == nil || err == nil {
		return
	}
	h.Notifier.CaptureException(ctx, err)
}

// Options configures a Repository.
type Options struct {
	Enabled      bool
	Table        string
	Service      string
	Store        Store
	Mapper       Mapper
	ErrorHandler ErrorHandler
	Clock        func() time.Time
}

// Repository records trace rows for events. It never fails its caller.
type Repository struct {
	enabled    bool
	table      string
	service    string
	store      Store
	mapper     Mapper
	errHandler ErrorHandler
	now        func() time.Time
}

// NewRepository builds a Repository. A repository without a store stays
// disabled.
func NewRepository(opts Options) *Repository {
	r := &Repository{
		enabled:    opts.Enabled && opts.Store != nil,
		table:      opts.Table,
		service:    opts.Service,
		store:      opts.Store,
		mapper:     opts.Mapper,
		errHandler: opts.ErrorHandler,
		now:        opts.Clock,
	}
	if r.table == "" {
		r.table = "hermes_distributed_traces"
	}
	if r.mapper == nil {
		r.mapper = SanitizingMapper{}
	}
	if r.errHandler == nil {
		r.errHandler = DatabaseErrorHandler{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Enabled reports whether records are written.
func (r *Repository) Enabled() bool {
	return r != nil && r.enabled
}

// Create stores the trace record of ev. Errors go to the error handler.
func (r *Repository) Create(ctx context.Context, ev events.Event) {
	if !r.Enabled() {
		return
	}
	attrs, err := r.Attributes(ev)
	if err != nil {
		r.errHandler.Handle(ctx, err)
		return
	}
	if err := r.store.Insert(ctx, r.table, r.mapper.Map(attrs)); err != nil {
		r.errHandler.Handle(ctx, fmt.Errorf("store distributed trace: %w", err))
	}
}

// Attributes builds the trace record of ev.
func (r *Repository) Attributes(ev events.Event) (map[string]any, error) {
	trace, err := ev.EventBase().TraceContext(r.service)
	if err != nil {
		return nil, err
	}
	body, err := events.AsJSON(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", events.TypeName(ev), err)
	}
	now := r.now().UTC()
	return map[string]any{
		"trace":         trace.Trace(),
		"span":          trace.Span(),
		"parent_span":   trace.ParentSpanValue(),
		"service":       trace.Service(),
		"event_class":   events.TypeName(ev),
		"routing_key":   events.RoutingKey(ev),
		"event_body":    body,
		"event_headers": map[string]any(trace.Headers()),
		"created_at":    now,
		"updated_at":    now,
	}, nil
}

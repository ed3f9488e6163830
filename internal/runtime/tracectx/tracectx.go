// Package tracectx derives the B3-style trace context attached to every
// published and consumed event.
package tracectx

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	idspkg "github.com/drblury/hermes/internal/runtime/ids"
	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
)

// Header keys propagated with every event.
const (
	HeaderTraceID      = "X-B3-TraceId"
	HeaderParentSpanID = "X-B3-ParentSpanId"
	HeaderSpanID       = "X-B3-SpanId"
	HeaderSampled      = "X-B3-Sampled"
	HeaderService      = "service"
)

const (
	// SpanLength is the byte length of every generated span identifier.
	SpanLength = 64

	serviceSeedLength = 15
	traceBytes        = 32
	spanDelimiter     = ";"
	tracePadding      = "0"
)

var (
	newUUID  = idspkg.NewUUID
	newTrace = func() string {
		buf := make([]byte, traceBytes)
		_, _ = rand.Read(buf)
		return hex.EncodeToString(buf)
	}
)

// Context is the trace identity of one event.
type Context struct {
	trace      string
	span       string
	parentSpan string
	hasParent  bool
	service    string
}

// New derives the trace context for an event emitted by service. The trace
// and parent span are inherited from origin headers when present; otherwise a
// fresh trace is started.
func New(origin metadatapkg.Headers, service string) (*Context, error) {
	if service == "" {
		return nil, errspkg.ErrMissingApplicationPrefix
	}

	trace, ok := origin.String(HeaderTraceID)
	if !ok {
		trace = newTrace()
	}
	parent, hasParent := origin.String(HeaderSpanID)

	return &Context{
		trace:      trace,
		span:       buildSpan(trace, service, newUUID()),
		parentSpan: parent,
		hasParent:  hasParent,
		service:    service,
	}, nil
}

// buildSpan joins a trace prefix, the service seed and a uuid so that the
// result is exactly SpanLength bytes long.
func buildSpan(trace, service, uuid string) string {
	seed := truncate(service, serviceSeedLength)
	prefixLen := SpanLength - len(seed) - len(uuid) - 2*len(spanDelimiter)
	if prefixLen < 0 {
		prefixLen = 0
	}

	prefix := truncate(trace, prefixLen)
	prefix += strings.Repeat(tracePadding, prefixLen-len(prefix))

	return truncate(prefix+spanDelimiter+seed+spanDelimiter+uuid, SpanLength)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (c *Context) Trace() string   { return c.trace }
func (c *Context) Span() string    { return c.span }
func (c *Context) Service() string { return c.service }

// ParentSpan returns the span of the event this one was caused by. The second
// result is false for a root event.
func (c *Context) ParentSpan() (string, bool) {
	return c.parentSpan, c.hasParent
}

// ParentSpanValue returns the parent span or nil for a root event, the form
// used in header maps and trace records.
func (c *Context) ParentSpanValue() any {
	if !c.hasParent {
		return nil
	}
	return c.parentSpan
}

// B3Headers returns the four B3 propagation headers.
func (c *Context) B3Headers() metadatapkg.Headers {
	return metadatapkg.Headers{
		HeaderTraceID:      c.trace,
		HeaderParentSpanID: c.ParentSpanValue(),
		HeaderSpanID:       c.span,
		HeaderSampled:      "",
	}
}

// Headers returns the B3 headers plus the emitting service.
func (c *Context) Headers() metadatapkg.Headers {
	headers := c.B3Headers()
	headers[HeaderService] = c.service
	return headers
}

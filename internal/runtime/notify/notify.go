// Package notify reports captured failures to an error tracker.
package notify

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	loggingpkg "github.com/drblury/hermes/internal/runtime/logging"
)

// Notifier captures an exception that was handled but must not go unnoticed.
type Notifier interface {
	CaptureException(ctx context.Context, err error)
}

// Func adapts a function into a Notifier.
type Func func(ctx context.Context, err error)

func (f Func) CaptureException(ctx context.Context, err error) { f(ctx, err) }

// Null discards every exception.
type Null struct{}

func (Null) CaptureException(context.Context, error) {}

// Logger writes exceptions to a ServiceLogger at error level.
type Logger struct {
	log loggingpkg.ServiceLogger
}

// NewLogger returns a Notifier backed by log.
func NewLogger(log loggingpkg.ServiceLogger) *Logger {
	return &Logger{log: log}
}

func (l *Logger) CaptureException(_ context.Context, err error) {
	if err == nil {
		return
	}
	l.log.Error("Captured exception", err, nil)
}

// Counter counts exceptions in a Prometheus counter before delegating.
type Counter struct {
	next    Notifier
	counter prometheus.Counter
}

// NewCounter registers hermes_captured_exceptions_total on reg and wraps next.
// A nil registerer skips registration.
func NewCounter(reg prometheus.Registerer, next Notifier) (*Counter, error) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hermes",
		Name:      "captured_exceptions_total",
		Help:      "Exceptions captured by hermes error handlers.",
	})
	if reg != nil {
		if err := reg.Register(counter); err != nil {
			return nil, err
		}
	}
	if next == nil {
		next = Null{}
	}
	return &Counter{next: next, counter: counter}, nil
}

func (c *Counter) CaptureException(ctx context.Context, err error) {
	if err == nil {
		return
	}
	c.counter.Inc()
	c.next.CaptureException(ctx, err)
}

// Multi fans an exception out to several notifiers.
type Multi []Notifier

func (m Multi) CaptureException(ctx context.Context, err error) {
	for _, n := range m {
		if n != nil {
			n.CaptureException(ctx, err)
		}
	}
}

// Package instrument wraps named hermes operations with tracing and metrics.
package instrument

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation names used by hermes components.
const (
	OperationPublish      = "Hermes.EventProducer.publish"
	OperationRPCCall      = "Hermes.RpcClient.call"
	OperationProcessEvent = "Hermes.EventProcessor."
)

// Instrumenter observes a named operation.
type Instrumenter interface {
	Instrument(ctx context.Context, name string, fn func(context.Context) error) error
}

// Null runs operations without observing them.
type Null struct{}

func (Null) Instrument(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

// Tracer opens an OpenTelemetry span per operation.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer uses provider, or the global provider when nil.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer("github.com/drblury/hermes")}
}

func (t *Tracer) Instrument(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := t.tracer.Start(ctx, name)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Metrics records operation durations in a Prometheus histogram labelled by
// operation and outcome.
type Metrics struct {
	durations *prometheus.HistogramVec
}

// NewMetrics registers hermes_operation_duration_seconds on reg. A nil
// registerer skips registration.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hermes",
		Name:      "operation_duration_seconds",
		Help:      "Duration of hermes operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	if reg != nil {
		if err := reg.Register(durations); err != nil {
			return nil, err
		}
	}
	return &Metrics{durations: durations}, nil
}

func (m *Metrics) Instrument(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.durations.WithLabelValues(name, outcome).Observe(time.Since(start).Seconds())
	return err
}

// Chain nests instrumenters; the first one is outermost.
type Chain []Instrumenter

func (c Chain) Instrument(ctx context.Context, name string, fn func(context.Context) error) error {
	wrapped := fn
	for i := len(c) - 1; i >= 0; i-- {
		inst, next := c[i], wrapped
		if inst == nil {
			continue
		}
		wrapped = func(ctx context.Context) error {
			return inst.Instrument(ctx, name, next)
		}
	}
	return wrapped(ctx)
}

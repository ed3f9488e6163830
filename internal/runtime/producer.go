package runtime

import (
	"context"
	"fmt"

	"github.com/drblury/hermes/internal/runtime/errorhandler"
	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	"github.com/drblury/hermes/internal/runtime/events"
	"github.com/drblury/hermes/internal/runtime/instrument"
	"github.com/drblury/hermes/internal/runtime/jobs"
	jsoncodec "github.com/drblury/hermes/internal/runtime/jsoncodec"
	"github.com/drblury/hermes/internal/runtime/publisher"
	"github.com/drblury/hermes/internal/runtime/serializer"
	"github.com/drblury/hermes/internal/runtime/tracectx"
	"github.com/drblury/hermes/internal/runtime/tracestore"
)

// ProducerOptions configures a Producer. Only Service and Publisher are
// required.
type ProducerOptions struct {
	Service      string
	Publisher    *publisher.Publisher
	Serializer   *serializer.Serializer
	ErrorHandler errorhandler.Handler
	Repository   *tracestore.Repository
	Instrumenter instrument.Instrumenter
	Catalog      *events.Catalog
}

// Producer publishes events with their trace headers and serialization meta.
type Producer struct {
	opts ProducerOptions
}

// NewProducer validates opts and fills the optional collaborators.
func NewProducer(opts ProducerOptions) (*Producer, error) {
	if opts.Service == "" {
		return nil, errspkg.ErrMissingApplicationPrefix
	}
	if opts.Publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if opts.Serializer == nil {
		opts.Serializer = serializer.New()
	}
	if opts.ErrorHandler == nil {
		opts.ErrorHandler = errorhandler.NullHandler{}
	}
	if opts.Instrumenter == nil {
		opts.Instrumenter = instrument.Null{}
	}
	if opts.Catalog == nil {
		opts.Catalog = events.NewCatalog()
	}
	return &Producer{opts: opts}, nil
}

// WithErrorHandler returns a copy of p using handler.
func (p *Producer) WithErrorHandler(handler errorhandler.Handler) *Producer {
	opts := p.opts
	opts.ErrorHandler = handler
	return &Producer{opts: opts}
}

// Publish sends ev to its routing key. Failures go through the configured
// error handler, so with a safe handler Publish only fails on invalid input.
func (p *Producer) Publish(ctx context.Context, ev events.Event, props publisher.Properties, opts publisher.Options) error {
	if ev == nil {
		return errspkg.ErrEventRequired
	}
	p.opts.Catalog.Remember(ev)

	return p.opts.Instrumenter.Instrument(ctx, instrument.OperationPublish, func(ctx context.Context) error {
		return p.opts.ErrorHandler.Call(ctx, ev, func(ctx context.Context) error {
			return p.publish(ctx, ev, props, opts)
		})
	})
}

func (p *Producer) publish(ctx context.Context, ev events.Event, props publisher.Properties, opts publisher.Options) error {
	events.InheritOriginHeaders(ctx, ev)

	headers, err := events.Headers(ev, p.opts.Service)
	if err != nil {
		return err
	}
	attrs, err := events.AsJSON(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", events.TypeName(ev), err)
	}
	payload := p.opts.Serializer.Serialize(attrs, events.Version(ev))

	props.Headers = props.Headers.Merge(headers)
	if err := p.opts.Publisher.Publish(ctx, events.RoutingKey(ev), payload, props, opts); err != nil {
		return err
	}
	p.opts.Repository.Create(ctx, ev)
	return nil
}

// Republisher performs recovery jobs by publishing the stored event again.
type Republisher struct {
	catalog  *events.Catalog
	producer *Producer
}

// NewRepublisher returns a republisher publishing through producer without
// its error handler, so a failed recovery is redelivered by the job worker
// instead of being enqueued again.
func NewRepublisher(catalog *events.Catalog, producer *Producer) *Republisher {
	return &Republisher{catalog: catalog, producer: producer.WithErrorHandler(errorhandler.NullHandler{})}
}

// Perform rebuilds the event of job and publishes it. The stored span id is
// dropped so the republished event gets a fresh span in the same trace.
func (r *Republisher) Perform(ctx context.Context, job jobs.Job) error {
	ev, err := r.catalog.New(job.EventType)
	if err != nil {
		return err
	}
	if len(job.Body) > 0 {
		if err := jsoncodec.Unmarshal(job.Body, ev); err != nil {
			return fmt.Errorf("decode %s: %w", job.EventType, err)
		}
	}
	if len(job.Headers) > 0 {
		ev.EventBase().SetOriginHeaders(job.Headers.Without(tracectx.HeaderSpanID))
	}
	return r.producer.Publish(ctx, ev, publisher.Properties{}, publisher.Options{})
}

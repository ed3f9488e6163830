package runtime

import (
	"context"
	"fmt"

	"github.com/drblury/hermes/internal/runtime/events"
	"github.com/drblury/hermes/internal/runtime/instrument"
	"github.com/drblury/hermes/internal/runtime/jobs"
	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
	"github.com/drblury/hermes/internal/runtime/tracestore"
)

// Result is the outcome of processing one event.
type Result struct {
	Event    events.Event
	Response any
}

// Dispatcher rebuilds events from their wire form and runs their handlers.
type Dispatcher struct {
	registry     *Registry
	repository   *tracestore.Repository
	instrumenter instrument.Instrumenter
}

// NewDispatcher returns a dispatcher over registry. repository and
// instrumenter may be nil.
func NewDispatcher(registry *Registry, repository *tracestore.Repository, instrumenter instrument.Instrumenter) *Dispatcher {
	if instrumenter == nil {
		instrumenter = instrument.Null{}
	}
	return &Dispatcher{registry: registry, repository: repository, instrumenter: instrumenter}
}

// Process decodes body into the registered event type, runs the handler with
// headers as the ambient origin headers and records the trace row.
func (d *Dispatcher) Process(ctx context.Context, eventType string, body []byte, headers metadatapkg.Headers) (Result, error) {
	reg, err := d.registry.Lookup(eventType)
	if err != nil {
		return Result{}, err
	}

	var result Result
	err = d.instrumenter.Instrument(ctx, instrument.OperationProcessEvent+eventType, func(ctx context.Context) error {
		ev := reg.Factory()
		if err := events.Decode(ev, body, headers); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}

		scoped := events.WithOriginHeaders(ctx, headers)
		response, err := reg.Handler(scoped, ev)
		if err != nil {
			return err
		}
		d.repository.Create(scoped, ev)
		result = Result{Event: ev, Response: response}
		return nil
	})
	return result, err
}

// Perform runs a background process job.
func (d *Dispatcher) Perform(ctx context.Context, job jobs.Job) error {
	_, err := d.Process(ctx, job.EventType, job.Body, job.Headers)
	return err
}

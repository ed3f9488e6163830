package jobs

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	loggingpkg "github.com/drblury/hermes/internal/runtime/logging"
)

// Performer carries out jobs of one kind.
type Performer interface {
	Perform(ctx context.Context, job Job) error
}

// PerformerFunc adapts a function to Performer.
type PerformerFunc func(ctx context.Context, job Job) error

func (f PerformerFunc) Perform(ctx context.Context, job Job) error { return f(ctx, job) }

// Worker routes consumed jobs to performers by kind.
type Worker struct {
	performers map[Kind]Performer
	log        loggingpkg.ServiceLogger
}

// NewWorker returns a worker with no performers. A nil log discards output.
func NewWorker(log loggingpkg.ServiceLogger) *Worker {
	if log == nil {
		log = loggingpkg.NewNopServiceLogger()
	}
	return &Worker{performers: make(map[Kind]Performer), log: log}
}

// Handle registers the performer for kind.
func (w *Worker) Handle(kind Kind, performer Performer) *Worker {
	w.performers[kind] = performer
	return w
}

// Perform runs job with its performer.
func (w *Worker) Perform(ctx context.Context, job Job) error {
	performer, ok := w.performers[job.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", errspkg.ErrUnknownJobKind, job.Kind)
	}
	if err := performer.Perform(ctx, job); err != nil {
		w.log.Error("Job failed", err, loggingpkg.LogFields{
			"job_id":     job.ID,
			"job_kind":   string(job.Kind),
			"event_type": job.EventType,
		})
		return err
	}
	w.log.Debug("Job performed", loggingpkg.LogFields{
		"job_id":     job.ID,
		"job_kind":   string(job.Kind),
		"event_type": job.EventType,
	})
	return nil
}

// Handler is the Watermill handler consuming the jobs topic. A returned
// error nacks the message so the broker redelivers it.
func (w *Worker) Handler(msg *message.Message) error {
	job, err := Decode(msg)
	if err != nil {
		return err
	}
	return w.Perform(msg.Context(), job)
}

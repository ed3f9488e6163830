// Package jobs runs event work in the background. A Queue publishes job
// envelopes to a Watermill topic and a Worker consumes that topic, routing
// each job to the Performer registered for its kind.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	idspkg "github.com/drblury/hermes/internal/runtime/ids"
	jsoncodec "github.com/drblury/hermes/internal/runtime/jsoncodec"
	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
)

// Kind selects how a job is performed.
type Kind string

const (
	// KindProcess dispatches a consumed event to its handler.
	KindProcess Kind = "process"
	// KindRepublish publishes an event whose first publish failed.
	KindRepublish Kind = "republish"
)

// Metadata key naming the job kind on the Watermill message.
const MetadataKind = "hermes_job_kind"

// Job is the envelope stored on the jobs topic.
type Job struct {
	ID         string              `json:"id"`
	Kind       Kind                `json:"kind"`
	EventType  string              `json:"event_type"`
	Body       json.RawMessage     `json:"body"`
	Headers    metadatapkg.Headers `json:"headers"`
	EnqueuedAt time.Time           `json:"enqueued_at"`
}

// Queue enqueues jobs on a Watermill topic.
type Queue struct {
	publisher message.Publisher
	topic     string
	now       func() time.Time
}

// NewQueue returns a queue publishing to topic.
func NewQueue(publisher message.Publisher, topic string) (*Queue, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return nil, fmt.Errorf("jobs: topic is required")
	}
	return &Queue{publisher: publisher, topic: topic, now: time.Now}, nil
}

// Topic returns the topic jobs are published to.
func (q *Queue) Topic() string { return q.topic }

// Enqueue publishes job, filling its ID and enqueue time when unset.
func (q *Queue) Enqueue(ctx context.Context, job Job) (Job, error) {
	if job.ID == "" {
		job.ID = idspkg.CreateULID()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = q.now().UTC()
	}
	if len(job.Body) == 0 {
		job.Body = json.RawMessage("{}")
	}

	payload, err := jsoncodec.Marshal(job)
	if err != nil {
		return job, fmt.Errorf("jobs: encode %s job: %w", job.Kind, err)
	}

	msg := message.NewMessage(job.ID, payload)
	msg.Metadata.Set(MetadataKind, string(job.Kind))
	if ctx != nil {
		msg.SetContext(ctx)
	}
	if err := q.publisher.Publish(q.topic, msg); err != nil {
		return job, fmt.Errorf("jobs: enqueue %s job for %s: %w", job.Kind, job.EventType, err)
	}
	return job, nil
}

// EnqueueProcess schedules the raw event body for background dispatch.
func (q *Queue) EnqueueProcess(ctx context.Context, eventType string, body []byte, headers metadatapkg.Headers) (Job, error) {
	return q.Enqueue(ctx, Job{
		Kind:      KindProcess,
		EventType: eventType,
		Body:      json.RawMessage(body),
		Headers:   headers.Clone(),
	})
}

// EnqueueRecovery schedules a failed publish to be retried.
func (q *Queue) EnqueueRecovery(ctx context.Context, eventType string, body map[string]any, headers metadatapkg.Headers) error {
	data, err := jsoncodec.Marshal(body)
	if err != nil {
		return fmt.Errorf("jobs: encode recovery body for %s: %w", eventType, err)
	}
	_, err = q.Enqueue(ctx, Job{
		Kind:      KindRepublish,
		EventType: eventType,
		Body:      data,
		Headers:   headers.Clone(),
	})
	return err
}

// Decode reads a job envelope from a Watermill message.
func Decode(msg *message.Message) (Job, error) {
	var job Job
	if err := jsoncodec.Unmarshal(msg.Payload, &job); err != nil {
		return job, fmt.Errorf("jobs: decode job %s: %w", msg.UUID, err)
	}
	return job, nil
}

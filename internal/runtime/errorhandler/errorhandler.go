// Package errorhandler decides what happens when publishing an event fails.
package errorhandler

import (
	"context"
	"fmt"

	"github.com/drblury/hermes/internal/runtime/events"
	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
	"github.com/drblury/hermes/internal/runtime/notify"
	"github.com/drblury/hermes/internal/runtime/retry"
)

// Handler runs a publish action on behalf of the producer.
type Handler interface {
	Call(ctx context.Context, ev events.Event, fn func(context.Context) error) error
}

// RecoveryQueue persists an event so it can be republished later.
type RecoveryQueue interface {
	EnqueueRecovery(ctx context.Context, eventType string, body map[string]any, headers metadatapkg.Headers) error
}

// NullHandler runs the action once and surfaces its error.
type NullHandler struct{}

func (NullHandler) Call(ctx context.Context, _ events.Event, fn func(context.Context) error) error {
	return fn(ctx)
}

// SafeHandler retries the action and, when it still fails, reports the error
// and enqueues a recovery job instead of failing the caller.
type SafeHandler struct {
	queue    RecoveryQueue
	notifier notify.Notifier
	policy   *retry.Policy
}

// NewSafeHandler wires a SafeHandler. A nil notifier discards errors and a
// nil policy uses retry.Default.
func NewSafeHandler(queue RecoveryQueue, notifier notify.Notifier, policy *retry.Policy) *SafeHandler {
	if notifier == nil {
		notifier = notify.Null{}
	}
	if policy == nil {
		policy = retry.Default()
	}
	return &SafeHandler{queue: queue, notifier: notifier, policy: policy}
}

// Call never returns an error; failures end up with the notifier and, when a
// recovery queue is configured, as a recovery job.
func (h *SafeHandler) Call(ctx context.Context, ev events.Event, fn func(context.Context) error) error {
	err := h.policy.Perform(ctx, fn)
	if err == nil {
		return nil
	}
	h.notifier.CaptureException(ctx, err)

	if h.queue == nil {
		return nil
	}
	body, jerr := events.AsJSON(ev)
	if jerr != nil {
		h.notifier.CaptureException(ctx, fmt.Errorf("encode %s for recovery: %w", events.TypeName(ev), jerr))
		return nil
	}
	if qerr := h.queue.EnqueueRecovery(ctx, events.TypeName(ev), body, ev.EventBase().OriginHeaders()); qerr != nil {
		h.notifier.CaptureException(ctx, fmt.Errorf("enqueue recovery for %s: %w", events.TypeName(ev), qerr))
	}
	return nil
}

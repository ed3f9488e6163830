package runtime

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	loggingpkg "github.com/drblury/hermes/internal/runtime/logging"
	"github.com/drblury/hermes/internal/runtime/notify"
	"github.com/drblury/hermes/internal/runtime/tracectx"
)

// DeliveryContext describes one handled delivery to hooks.
type DeliveryContext struct {
	// HandlerName is the router handler processing the delivery.
	HandlerName string
	// Topic is the routing key or topic the delivery was received from.
	Topic string
	// MessageUUID is the unique identifier of the message.
	MessageUUID string
	// TraceID is the B3 trace id carried by the delivery, if any.
	TraceID string
	// Metadata contains the message metadata.
	Metadata message.Metadata
	// Context is the context associated with the message.
	Context context.Context
	// StartedAt is when the handler started.
	StartedAt time.Time
	// Duration is how long the handler took (only set in OnDone and OnError).
	Duration time.Duration
}

// DeliveryHooks are optional callbacks around every handled delivery.
type DeliveryHooks struct {
	OnStart func(ctx DeliveryContext)
	OnDone  func(ctx DeliveryContext)
	OnError func(ctx DeliveryContext, err error)
}

// Merge returns hooks calling h first and other second.
func (h DeliveryHooks) Merge(other DeliveryHooks) DeliveryHooks {
	return DeliveryHooks{
		OnStart: chainHooks(h.OnStart, other.OnStart),
		OnDone:  chainHooks(h.OnDone, other.OnDone),
		OnError: chainErrorHooks(h.OnError, other.OnError),
	}
}

func chainHooks(a, b func(DeliveryContext)) func(DeliveryContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DeliveryContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(DeliveryContext, error)) func(DeliveryContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DeliveryContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// DeliveryHooksMiddleware invokes hooks around every router handler.
func DeliveryHooksMiddleware(hooks DeliveryHooks) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "delivery_hooks",
		Middleware: deliveryHooksMiddleware(hooks),
	}
}

func deliveryHooksMiddleware(hooks DeliveryHooks) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			ctx := msg.Context()
			dc := DeliveryContext{
				HandlerName: message.HandlerNameFromCtx(ctx),
				Topic:       message.SubscribeTopicFromCtx(ctx),
				MessageUUID: msg.UUID,
				TraceID:     msg.Metadata.Get(tracectx.HeaderTraceID),
				Metadata:    msg.Metadata,
				Context:     ctx,
				StartedAt:   time.Now(),
			}
			if hooks.OnStart != nil {
				hooks.OnStart(dc)
			}

			msgs, err := h(msg)

			dc.Duration = time.Since(dc.StartedAt)
			if err != nil {
				if hooks.OnError != nil {
					hooks.OnError(dc, err)
				}
			} else if hooks.OnDone != nil {
				hooks.OnDone(dc)
			}
			return msgs, err
		}
	}
}

// LoggingHooks logs the lifecycle of every delivery.
func LoggingHooks(logger loggingpkg.ServiceLogger) DeliveryHooks {
	fields := func(ctx DeliveryContext) loggingpkg.LogFields {
		return loggingpkg.LogFields{
			"handler":      ctx.HandlerName,
			"topic":        ctx.Topic,
			"message_uuid": ctx.MessageUUID,
			"trace_id":     ctx.TraceID,
		}
	}
	return DeliveryHooks{
		OnStart: func(ctx DeliveryContext) {
			logger.Debug("Delivery started", fields(ctx))
		},
		OnDone: func(ctx DeliveryContext) {
			f := fields(ctx)
			f["duration_ms"] = ctx.Duration.Milliseconds()
			logger.Info("Delivery handled", f)
		},
		OnError: func(ctx DeliveryContext, err error) {
			f := fields(ctx)
			f["duration_ms"] = ctx.Duration.Milliseconds()
			logger.Error("Delivery failed", err, f)
		},
	}
}

// AlertingHooks reports failed deliveries to notifier.
func AlertingHooks(notifier notify.Notifier) DeliveryHooks {
	return DeliveryHooks{
		OnError: func(ctx DeliveryContext, err error) {
			notifier.CaptureException(ctx.Context, err)
		},
	}
}

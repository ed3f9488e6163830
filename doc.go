// Package hermes is an event bus layer on top of Watermill. Services publish
// typed events to a topic exchange, consume them through per-service queues,
// and call each other over RPC using RabbitMQ direct reply-to.
//
// Every event carries a B3 trace context (X-B3-TraceId, X-B3-SpanId,
// X-B3-ParentSpanId and the service header). Events published while handling
// another event inherit its trace, and each publish or process step can be
// persisted as a distributed trace row in PostgreSQL or SQLite.
//
// Events are structs embedding Base:
//
//	type BookingConfirmed struct {
//		hermes.Base
//		BookingID string `json:"booking_id"`
//	}
//
// A minimal setup fills Config, creates a Service, registers handlers with
// Handle or Subscribe, and calls Start:
//
//	svc := hermes.NewService(conf, logger, ctx, hermes.ServiceDependencies{})
//	hermes.Subscribe(svc, func(ctx context.Context, ev *BookingConfirmed) error {
//		return svc.Publish(ctx, &InvoiceRequested{BookingID: ev.BookingID})
//	})
//	svc.Start(ctx)
//
// # Handlers
//
// Handlers are asynchronous by default: the consumer stores the delivery as a
// background job and a job worker runs the handler. Async(false) runs the
// handler inline, and RPC() runs it inline and sends its return value back to
// the caller's reply address.
//
// # Producer reliability
//
// With ProducerErrorHandler "safe" a failing publish is retried, reported to
// the Notifier and enqueued as a republish job. The default "null" handler
// returns the error to the caller.
//
// # Transports
//
// The transport is selected by Config.PubSubSystem:
//   - rabbitmq: topic exchange with durable queues and direct reply-to
//   - kafka: consumer groups per service
//   - nats: core NATS subjects
//   - channel: in-memory Go channels for tests
//
// # Middleware
//
// The default middleware chain adds correlation IDs, sanitized message
// logging, OpenTelemetry spans, Prometheus metrics, retries and panic
// recovery. Custom middleware can be added via ServiceDependencies.Middlewares,
// and DeliveryHooksMiddleware exposes callbacks around each delivery.
package hermes

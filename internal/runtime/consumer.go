package runtime

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/hermes/internal/runtime/events"
	"github.com/drblury/hermes/internal/runtime/jobs"
	jsoncodec "github.com/drblury/hermes/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/hermes/internal/runtime/logging"
	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
	"github.com/drblury/hermes/internal/runtime/publisher"
	"github.com/drblury/hermes/transport"
)

// transportKeys are message metadata entries that belong to the broker
// envelope rather than to the event headers.
var transportKeys = []string{
	transport.MetadataReplyTo,
	transport.MetadataCorrelationID,
	transport.MetadataTransient,
	transport.MetadataContentType,
	correlationIDKey,
}

// consumer is the router handler of one registration.
type consumer struct {
	registration   Registration
	service        string
	dispatcher     *Dispatcher
	queue          *jobs.Queue
	resources      ResourcePool
	replyPublisher message.Publisher
	eventLog       *loggingpkg.EventLogger
	log            loggingpkg.ServiceLogger
}

// Handle processes one delivery. A returned error nacks the message.
func (c *consumer) Handle(msg *message.Message) error {
	ctx := msg.Context()
	headers := metadatapkg.HeadersFromMessage(msg, transportKeys...)

	var err error
	if c.registration.Options.Async {
		err = c.enqueue(ctx, msg, headers)
	} else {
		err = c.process(ctx, msg, headers)
	}
	if err != nil && c.resources.Disconnected(err) {
		if recoverErr := c.resources.Recover(ctx); recoverErr != nil {
			c.log.Error("Failed to recover resources", recoverErr, loggingpkg.LogFields{
				"event_type": c.registration.EventType,
			})
		}
	}
	return err
}

func (c *consumer) enqueue(ctx context.Context, msg *message.Message, headers metadatapkg.Headers) error {
	job, err := c.queue.EnqueueProcess(ctx, c.registration.EventType, msg.Payload, headers)
	if err != nil {
		return err
	}
	if c.eventLog != nil {
		body, _ := jsoncodec.UnmarshalMap(msg.Payload)
		c.eventLog.LogEnqueued(c.registration.EventType, body, headers, job.EnqueuedAt)
	}
	return nil
}

func (c *consumer) process(ctx context.Context, msg *message.Message, headers metadatapkg.Headers) error {
	if err := c.resources.Verify(ctx); err != nil {
		return err
	}
	result, err := c.dispatcher.Process(ctx, c.registration.EventType, msg.Payload, headers)
	if err != nil {
		return err
	}
	if !c.registration.Options.RPC {
		return nil
	}
	return c.reply(msg, result)
}

func (c *consumer) reply(request *message.Message, result Result) error {
	replyTo := request.Metadata.Get(transport.MetadataReplyTo)
	if replyTo == "" {
		c.log.Debug("RPC request without reply address", loggingpkg.LogFields{
			"event_type":   c.registration.EventType,
			"message_uuid": request.UUID,
		})
		return nil
	}

	body := map[string]any{}
	if result.Response != nil {
		var err error
		body, err = jsoncodec.ToMap(result.Response)
		if err != nil {
			return fmt.Errorf("encode %s response: %w", c.registration.EventType, err)
		}
	}
	headers, err := events.Headers(result.Event, c.service)
	if err != nil {
		return err
	}

	reply, err := publisher.NewMessage(body, publisher.Properties{
		Headers:       headers,
		CorrelationID: request.Metadata.Get(transport.MetadataCorrelationID),
	}, publisher.Options{Transient: true})
	if err != nil {
		return err
	}
	reply.SetContext(request.Context())
	if err := c.replyPublisher.Publish(replyTo, reply); err != nil {
		return fmt.Errorf("reply to %s: %w", replyTo, err)
	}
	return nil
}

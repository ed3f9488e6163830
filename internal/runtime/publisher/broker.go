package publisher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	idspkg "github.com/drblury/hermes/internal/runtime/ids"
	jsoncodec "github.com/drblury/hermes/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/hermes/internal/runtime/logging"
	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
	"github.com/drblury/hermes/transport"
)

// BrokerAdapter publishes JSON-encoded payloads as Watermill messages. The
// routing key is used as the Watermill topic.
type BrokerAdapter struct {
	publisher message.Publisher
	log       *loggingpkg.EventLogger
	now       func() time.Time
}

// NewBrokerAdapter wraps a Watermill publisher. A nil log disables the
// publish log line.
func NewBrokerAdapter(publisher message.Publisher, log *loggingpkg.EventLogger) (*BrokerAdapter, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	return &BrokerAdapter{publisher: publisher, log: log, now: time.Now}, nil
}

func (a *BrokerAdapter) Publish(ctx context.Context, routingKey string, payload map[string]any, props Properties, opts Options) error {
	msg, err := NewMessage(payload, props, opts)
	if err != nil {
		return err
	}
	if ctx != nil {
		msg.SetContext(ctx)
	}
	if err := a.publisher.Publish(routingKey, msg); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	if a.log != nil {
		a.log.LogPublished(routingKey, payload, props.Headers, a.now())
	}
	return nil
}

// NewMessage builds the Watermill message carrying payload. Headers become
// message metadata; reply properties use the transport metadata keys.
func NewMessage(payload map[string]any, props Properties, opts Options) (*message.Message, error) {
	body, err := jsoncodec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	md := props.Headers.Metadata()
	if props.ReplyTo != "" {
		md[transport.MetadataReplyTo] = props.ReplyTo
	}
	if props.CorrelationID != "" {
		md[transport.MetadataCorrelationID] = props.CorrelationID
	}
	if props.ContentType != "" {
		md[transport.MetadataContentType] = props.ContentType
	}
	if opts.Transient {
		md[transport.MetadataTransient] = strconv.FormatBool(true)
	}

	msg := message.NewMessage(idspkg.CreateULID(), body)
	msg.Metadata = metadatapkg.ToWatermill(md)
	return msg, nil
}

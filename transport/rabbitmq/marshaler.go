package rabbitmq

import (
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/drblury/hermes/transport"
)

// DefaultContentType is set on publishings that do not name one.
const DefaultContentType = "application/json"

// Marshaler maps the hermes metadata keys onto AMQP message properties and
// back. Everything else is handled by amqp.DefaultMarshaler.
type Marshaler struct {
	amqp.DefaultMarshaler
}

var propertyKeys = []string{
	transport.MetadataReplyTo,
	transport.MetadataCorrelationID,
	transport.MetadataTransient,
	transport.MetadataContentType,
}

func (m Marshaler) Marshal(msg *message.Message) (amqp091.Publishing, error) {
	publishing, err := m.DefaultMarshaler.Marshal(msg)
	if err != nil {
		return publishing, err
	}

	publishing.ReplyTo = msg.Metadata.Get(transport.MetadataReplyTo)
	publishing.CorrelationId = msg.Metadata.Get(transport.MetadataCorrelationID)
	publishing.ContentType = msg.Metadata.Get(transport.MetadataContentType)
	if publishing.ContentType == "" {
		publishing.ContentType = DefaultContentType
	}
	if msg.Metadata.Get(transport.MetadataTransient) == "true" {
		publishing.DeliveryMode = amqp091.Transient
	}
	for _, key := range propertyKeys {
		delete(publishing.Headers, key)
	}
	return publishing, nil
}

func (m Marshaler) Unmarshal(delivery amqp091.Delivery) (*message.Message, error) {
	msg, err := m.DefaultMarshaler.Unmarshal(delivery)
	if err != nil {
		return nil, err
	}

	if delivery.ReplyTo != "" {
		msg.Metadata.Set(transport.MetadataReplyTo, delivery.ReplyTo)
	}
	if delivery.CorrelationId != "" {
		msg.Metadata.Set(transport.MetadataCorrelationID, delivery.CorrelationId)
	}
	if delivery.ContentType != "" {
		msg.Metadata.Set(transport.MetadataContentType, delivery.ContentType)
	}
	return msg, nil
}

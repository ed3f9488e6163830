// Package transport defines the Watermill transports hermes runs on. Each
// transport lives in its own sub-package and registers itself with the
// transport registry under the name used by the PubSubSystem setting.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Metadata keys carrying broker message properties through Watermill
// messages. Transports that support replies map them onto their native
// properties.
const (
	MetadataReplyTo       = "hermes_reply_to"
	MetadataCorrelationID = "hermes_correlation_id"
	MetadataTransient     = "hermes_transient"
	MetadataContentType   = "hermes_content_type"
)

// Transport bundles the Watermill endpoints of one broker connection.
// ReplyPublisher is nil for transports without request/reply support; its
// topic argument is the reply address of the request.
type Transport struct {
	Publisher      message.Publisher
	Subscriber     message.Subscriber
	ReplyPublisher message.Publisher
}

// Builder creates a transport from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the settings transports read.
type Config interface {
	GetPubSubSystem() string
	GetApplicationPrefix() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string
	GetExchange() string

	// NATS
	GetNATSURL() string
}

// QueueNamer is implemented by configs that choose the consumer queue of a
// topic. Transports fall back to "{prefix}.{topic}.queue" otherwise.
type QueueNamer interface {
	QueueName(topic string) string
}

// QueueName resolves the consumer queue for topic.
func QueueName(cfg Config, topic string) string {
	if namer, ok := cfg.(QueueNamer); ok {
		if name := namer.QueueName(topic); name != "" {
			return name
		}
	}
	prefix := cfg.GetApplicationPrefix()
	if prefix == "" {
		return topic + ".queue"
	}
	return prefix + "." + topic + ".queue"
}

// CapabilitiesProvider is implemented by transports that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}

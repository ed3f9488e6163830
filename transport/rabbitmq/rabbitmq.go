// Package rabbitmq provides the RabbitMQ/AMQP transport for hermes: a durable
// topic exchange with one durable queue per consumer, plus a reply publisher
// on the default exchange for RPC answers.
package rabbitmq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/hermes/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "rabbitmq"

// ExchangeType is the type of the shared exchange.
const ExchangeType = "topic"

// ConnectionFactory allows overriding the connection creation for testing.
var ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
	return amqp.NewSubscriberWithConnection(cfg, logger, conn)
}

func init() {
	Register()
}

// Register registers the RabbitMQ transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.RabbitMQCapabilities)
}

// PubSubConfig returns the Watermill AMQP config for event traffic: topics are
// routing keys on the configured exchange and queues are named by
// transport.QueueName.
func PubSubConfig(cfg transport.Config) amqp.Config {
	exchange := cfg.GetExchange()

	amqpConfig := amqp.NewDurablePubSubConfig(
		cfg.GetRabbitMQURL(),
		func(topic string) string { return transport.QueueName(cfg, topic) },
	)
	amqpConfig.Exchange.GenerateName = func(string) string { return exchange }
	amqpConfig.Exchange.Type = ExchangeType
	amqpConfig.QueueBind.GenerateRoutingKey = func(topic string) string { return topic }
	amqpConfig.Publish.GenerateRoutingKey = func(topic string) string { return topic }
	amqpConfig.Marshaler = Marshaler{}
	return amqpConfig
}

// ReplyConfig returns the Watermill AMQP config for RPC replies: messages go
// straight to the reply address through the default exchange.
func ReplyConfig(cfg transport.Config) amqp.Config {
	amqpConfig := amqp.NewNonDurableQueueConfig(cfg.GetRabbitMQURL())
	amqpConfig.Marshaler = Marshaler{}
	return amqpConfig
}

// Build creates a new RabbitMQ transport sharing one connection between the
// publisher, subscriber and reply publisher.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	conn, err := ConnectionFactory(amqp.ConnectionConfig{
		AmqpURI:   cfg.GetRabbitMQURL(),
		TLSConfig: nil,
		Reconnect: amqp.DefaultReconnectConfig(),
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	pubSubConfig := PubSubConfig(cfg)

	publisher, err := PublisherFactory(pubSubConfig, logger, conn)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(pubSubConfig, logger, conn)
	if err != nil {
		return transport.Transport{}, err
	}

	replyPublisher, err := PublisherFactory(ReplyConfig(cfg), logger, conn)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:      publisher,
		Subscriber:     subscriber,
		ReplyPublisher: replyPublisher,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.RabbitMQCapabilities
}

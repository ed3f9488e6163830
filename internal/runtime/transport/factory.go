// Package transport builds the Watermill endpoints a Service runs on.
package transport

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	publictransport "github.com/drblury/hermes/transport"

	// Import all transport packages to register them.
	_ "github.com/drblury/hermes/transport/transports"
)

// Transport is the publisher, subscriber and optional reply publisher of one
// broker connection.
type Transport = publictransport.Transport

// Factory abstracts how hermes initialises message transports.
type Factory interface {
	Build(ctx context.Context, conf publictransport.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf publictransport.Config, logger watermill.LoggerAdapter) (Transport, error)

func (f FactoryFunc) Build(ctx context.Context, conf publictransport.Config, logger watermill.LoggerAdapter) (Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory returns the factory backed by the transport registry.
func DefaultFactory() Factory {
	return defaultFactory{}
}

type defaultFactory struct{}

func (defaultFactory) Build(ctx context.Context, conf publictransport.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, fmt.Errorf("config is required")
	}

	t, err := publictransport.Build(ctx, conf, logger)
	if err != nil {
		return Transport{}, fmt.Errorf("build %s transport: %w", conf.GetPubSubSystem(), err)
	}
	if t.Publisher == nil || t.Subscriber == nil {
		return Transport{}, fmt.Errorf("transport %s is missing a publisher or subscriber", conf.GetPubSubSystem())
	}
	return t, nil
}

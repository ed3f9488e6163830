package transport

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/hermes/internal/runtime/config"
	"github.com/drblury/hermes/internal/runtime/logging"
	publictransport "github.com/drblury/hermes/transport"
)

func testLogger() watermill.LoggerAdapter {
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return logging.NewWatermillAdapter(logging.NewSlogServiceLogger(slogger))
}

func TestDefaultFactory_Build_Channel(t *testing.T) {
	cfg := &config.Config{PubSubSystem: "channel", ApplicationPrefix: "app"}

	tr, err := DefaultFactory().Build(context.Background(), cfg, testLogger())

	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)
	assert.NotNil(t, tr.ReplyPublisher)
	assert.NoError(t, tr.Publisher.Close())
}

func TestDefaultFactory_Build_NilConfig(t *testing.T) {
	_, err := DefaultFactory().Build(context.Background(), nil, testLogger())
	assert.ErrorContains(t, err, "config is required")
}

func TestDefaultFactory_Build_InvalidTransport(t *testing.T) {
	cfg := &config.Config{PubSubSystem: "invalid-transport"}

	_, err := DefaultFactory().Build(context.Background(), cfg, testLogger())
	assert.ErrorContains(t, err, "invalid-transport")
}

func TestDefaultFactory_Build_IncompleteTransport(t *testing.T) {
	publictransport.Register("incomplete", func(context.Context, publictransport.Config, watermill.LoggerAdapter) (publictransport.Transport, error) {
		return publictransport.Transport{}, nil
	})

	_, err := DefaultFactory().Build(context.Background(), &config.Config{PubSubSystem: "incomplete"}, testLogger())
	assert.ErrorContains(t, err, "missing a publisher or subscriber")
}

func TestFactoryFunc(t *testing.T) {
	called := false
	factory := FactoryFunc(func(ctx context.Context, conf publictransport.Config, logger watermill.LoggerAdapter) (Transport, error) {
		called = true
		return Transport{}, nil
	})

	_, err := factory.Build(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	assert.True(t, called)
}

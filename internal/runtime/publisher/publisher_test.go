package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
)

func TestPublisherBuildsAdapterOnce(t *testing.T) {
	builds := 0
	adapter := NewInMemoryAdapter()
	p := New(func() (Adapter, error) {
		builds++
		return adapter, nil
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Publish(context.Background(), "users.created", map[string]any{"i": i}, Properties{}, Options{}))
	}

	assert.Equal(t, 1, builds)
	assert.Len(t, adapter.Store(), 3)
}

func TestPublisherResetRebuilds(t *testing.T) {
	builds := 0
	p := New(func() (Adapter, error) {
		builds++
		return NewInMemoryAdapter(), nil
	})

	first, err := p.CurrentAdapter()
	require.NoError(t, err)
	p.Reset()
	second, err := p.CurrentAdapter()
	require.NoError(t, err)

	assert.Equal(t, 2, builds)
	assert.NotSame(t, first, second)
}

func TestPublisherSetCurrentAdapter(t *testing.T) {
	p := New(func() (Adapter, error) { return nil, errors.New("must not build") })
	adapter := NewInMemoryAdapter()
	p.SetCurrentAdapter(adapter)

	require.NoError(t, p.Publish(context.Background(), "users.created", map[string]any{}, Properties{}, Options{Transient: true}))

	current, err := p.CurrentAdapter()
	require.NoError(t, err)
	assert.Same(t, adapter, current)
	require.Len(t, adapter.Store(), 1)
	assert.True(t, adapter.Store()[0].Options.Transient)
}

func TestPublisherFactoryErrors(t *testing.T) {
	boom := errors.New("dial failed")
	p := New(func() (Adapter, error) { return nil, boom })

	err := p.Publish(context.Background(), "users.created", nil, Properties{}, Options{})
	assert.ErrorIs(t, err, boom)

	_, err = New(nil).CurrentAdapter()
	assert.ErrorIs(t, err, errspkg.ErrInvalidAdapter)
}

func TestPublisherConcurrentAccess(t *testing.T) {
	adapter := NewInMemoryAdapter()
	p := New(func() (Adapter, error) { return adapter, nil })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Publish(context.Background(), "users.created", map[string]any{}, Properties{}, Options{})
			p.SetCurrentAdapter(adapter)
		}()
	}
	wg.Wait()

	assert.Len(t, adapter.Store(), 20)
}

func TestNewFactory(t *testing.T) {
	inMemory, err := NewFactory(AdapterInMemory, nil)
	require.NoError(t, err)
	adapter, err := inMemory()
	require.NoError(t, err)
	assert.IsType(t, &InMemoryAdapter{}, adapter)

	broker := NewInMemoryAdapter()
	brokerFactory, err := NewFactory(AdapterBroker, func() (Adapter, error) { return broker, nil })
	require.NoError(t, err)
	built, err := brokerFactory()
	require.NoError(t, err)
	assert.Same(t, broker, built)

	_, err = NewFactory(AdapterBroker, nil)
	assert.ErrorIs(t, err, errspkg.ErrInvalidAdapter)

	_, err = NewFactory("carrier_pigeon", nil)
	assert.ErrorIs(t, err, errspkg.ErrInvalidAdapter)
	assert.ErrorContains(t, err, "carrier_pigeon")
}

func TestInMemoryAdapterRecordsAndResets(t *testing.T) {
	adapter := NewInMemoryAdapter()
	headers := metadatapkg.Headers{"service": "app"}
	props := Properties{Headers: headers, CorrelationID: "corr", ReplyTo: "reply"}

	require.NoError(t, adapter.Publish(context.Background(), "a.b", map[string]any{"x": 1}, props, Options{}))
	headers["service"] = "mutated"

	stored := adapter.Store()
	require.Len(t, stored, 1)
	assert.Equal(t, "a.b", stored[0].RoutingKey)
	assert.Equal(t, map[string]any{"x": 1}, stored[0].Payload)
	assert.Equal(t, "app", stored[0].Properties.Headers["service"])
	assert.Equal(t, "corr", stored[0].Properties.CorrelationID)
	assert.Equal(t, "reply", stored[0].Properties.ReplyTo)

	adapter.Reset()
	assert.Empty(t, adapter.Store())
}

package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
	"github.com/drblury/hermes/internal/runtime/tracectx"
)

type OrderPlaced struct {
	Base
	OrderID string `json:"order_id"`
	Amount  int    `json:"amount"`
}

type namedEvent struct {
	Base
	Message string `json:"message"`
}

func (*namedEvent) EventType() string { return "Events.Greetings.HelloSent" }
func (*namedEvent) Version() int      { return 2 }

type routedEvent struct {
	Base
}

func (*routedEvent) RoutingKey() string { return "custom.key" }

func TestRoutingKeyFor(t *testing.T) {
	tests := []struct {
		typeName string
		want     string
	}{
		{"Events.OrderPlaced", "order_placed"},
		{"Events::Billing::InvoicePaid", "billing.invoice_paid"},
		{"DomainEvents.UserSignedUp", "user_signed_up"},
		{"bookings.OrderPlaced", "bookings.order_placed"},
		{"Shipping.HTTPRequestSent", "shipping.http_request_sent"},
		{"Events", "events"},
		{"Orders.Item2Added", "orders.item2_added"},
		{"Orders.order-cancelled", "orders.order_cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			got := RoutingKeyFor(tt.typeName)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, RoutingKeyFor(tt.typeName), "derivation must be deterministic")
		})
	}
}

func TestTypeNameAndRoutingKey(t *testing.T) {
	assert.Equal(t, "events.OrderPlaced", TypeName(&OrderPlaced{}))
	assert.Equal(t, "order_placed", RoutingKey(&OrderPlaced{}))

	assert.Equal(t, "Events.Greetings.HelloSent", TypeName(&namedEvent{}))
	assert.Equal(t, "greetings.hello_sent", RoutingKey(&namedEvent{}))

	assert.Equal(t, "custom.key", RoutingKey(&routedEvent{}))
}

func TestQueueName(t *testing.T) {
	assert.Equal(t, "app.order_placed.queue", QueueName("app", "order_placed"))
}

func TestVersion(t *testing.T) {
	assert.Equal(t, DefaultVersion, Version(&OrderPlaced{}))
	assert.Equal(t, 2, Version(&namedEvent{}))
}

func TestAsJSON(t *testing.T) {
	out, err := AsJSON(&OrderPlaced{OrderID: "o-1", Amount: 5})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"order_id": "o-1", "amount": float64(5)}, out)
}

func TestDecode(t *testing.T) {
	ev := &OrderPlaced{}
	headers := metadatapkg.Headers{tracectx.HeaderTraceID: "trace-1", tracectx.HeaderSpanID: "span-1"}

	err := Decode(ev, []byte(`{"order_id":"o-9","amount":3,"meta":{"event_version":1}}`), headers)
	require.NoError(t, err)

	assert.Equal(t, "o-9", ev.OrderID)
	assert.Equal(t, 3, ev.Amount)
	assert.Equal(t, "o-9", ev.OriginBody()["order_id"])
	assert.True(t, ev.HasOriginHeaders())
	assert.Equal(t, headers, ev.OriginHeaders())

	headers["mutated"] = true
	assert.NotContains(t, ev.OriginHeaders(), "mutated")
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	assert.Error(t, Decode(&OrderPlaced{}, []byte(`{`), nil))
}

func TestTraceContextIsMemoized(t *testing.T) {
	ev := &OrderPlaced{}

	first, err := ev.TraceContext("app")
	require.NoError(t, err)
	second, err := ev.TraceContext("app")
	require.NoError(t, err)
	assert.Same(t, first, second)

	ev.SetOriginHeaders(metadatapkg.Headers{tracectx.HeaderTraceID: "t", tracectx.HeaderSpanID: "parent"})
	third, err := ev.TraceContext("app")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, "t", third.Trace())
}

func TestHeadersRequireService(t *testing.T) {
	_, err := Headers(&OrderPlaced{}, "")
	assert.ErrorIs(t, err, errspkg.ErrMissingApplicationPrefix)

	headers, err := Headers(&OrderPlaced{}, "app")
	require.NoError(t, err)
	assert.Equal(t, "app", headers[tracectx.HeaderService])
}

func TestAmbientOriginHeaders(t *testing.T) {
	ctx := context.Background()
	_, ok := OriginHeadersFromContext(ctx)
	assert.False(t, ok)

	origin := metadatapkg.Headers{tracectx.HeaderTraceID: "ambient"}
	scoped := WithOriginHeaders(ctx, origin)

	got, ok := OriginHeadersFromContext(scoped)
	require.True(t, ok)
	assert.Equal(t, "ambient", got[tracectx.HeaderTraceID])

	fresh := &OrderPlaced{}
	InheritOriginHeaders(scoped, fresh)
	assert.Equal(t, "ambient", fresh.OriginHeaders()[tracectx.HeaderTraceID])

	explicit := &OrderPlaced{}
	explicit.SetOriginHeaders(metadatapkg.Headers{tracectx.HeaderTraceID: "explicit"})
	InheritOriginHeaders(scoped, explicit)
	assert.Equal(t, "explicit", explicit.OriginHeaders()[tracectx.HeaderTraceID])

	untouched := &OrderPlaced{}
	InheritOriginHeaders(ctx, untouched)
	assert.False(t, untouched.HasOriginHeaders())
}

func TestCatalog(t *testing.T) {
	catalog := NewCatalog()

	name, err := Register[*OrderPlaced](catalog)
	require.NoError(t, err)
	assert.Equal(t, "events.OrderPlaced", name)

	named, err := Register[*namedEvent](catalog)
	require.NoError(t, err)
	assert.Equal(t, "Events.Greetings.HelloSent", named)

	ev, err := catalog.New(name)
	require.NoError(t, err)
	assert.IsType(t, &OrderPlaced{}, ev)

	other, err := catalog.New(name)
	require.NoError(t, err)
	assert.NotSame(t, ev, other)

	_, err = catalog.New("Events.Missing")
	assert.ErrorIs(t, err, errspkg.ErrUnknownEventType)

	assert.True(t, catalog.Has(name))
	assert.Equal(t, []string{"Events.Greetings.HelloSent", "events.OrderPlaced"}, catalog.Names())
}

type valueEvent struct{}

func (valueEvent) EventBase() *Base { return &Base{} }

func TestCatalogRejectsInvalidRegistrations(t *testing.T) {
	catalog := NewCatalog()

	_, err := Register[valueEvent](catalog)
	assert.ErrorIs(t, err, errspkg.ErrEventPointerNeeded)

	_, err = Register[Event](catalog)
	assert.ErrorIs(t, err, errspkg.ErrEventRequired)

	assert.ErrorIs(t, catalog.Register("", func() Event { return &OrderPlaced{} }), errspkg.ErrEventTypeRequired)
	assert.ErrorIs(t, catalog.Register("x", nil), errspkg.ErrEventRequired)
}

func TestCatalogRemember(t *testing.T) {
	catalog := NewCatalog()

	name := catalog.Remember(&OrderPlaced{OrderID: "o-1"})
	assert.Equal(t, "events.OrderPlaced", name)
	require.True(t, catalog.Has(name))

	ev, err := catalog.New(name)
	require.NoError(t, err)
	assert.Equal(t, &OrderPlaced{}, ev)

	assert.Equal(t, "events.valueEvent", catalog.Remember(valueEvent{}))
	assert.False(t, catalog.Has("events.valueEvent"))
}

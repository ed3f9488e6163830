// Package rpc implements request/reply calls over RabbitMQ using direct
// reply-to. A Client performs a single call and releases its connection
// afterwards.
package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	"github.com/drblury/hermes/internal/runtime/events"
	idspkg "github.com/drblury/hermes/internal/runtime/ids"
	"github.com/drblury/hermes/internal/runtime/instrument"
	jsoncodec "github.com/drblury/hermes/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/hermes/internal/runtime/logging"
	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
	"github.com/drblury/hermes/internal/runtime/tracectx"
	"github.com/drblury/hermes/internal/runtime/tracestore"
)

// DefaultTimeout bounds the wait for a reply.
const DefaultTimeout = 10 * time.Second

// ResponseEventType is the type name under which replies are traced.
const ResponseEventType = "Hermes.RpcClient.ResponseEvent"

// ResponseEvent wraps the reply body so it can be traced like any event.
type ResponseEvent struct {
	events.Base
	ResponseBody map[string]any `json:"response_body"`
}

func (*ResponseEvent) EventType() string { return ResponseEventType }

// Options configures a Client.
type Options struct {
	URL      string
	Exchange string
	// Service is the application prefix stamped on trace headers.
	Service      string
	Timeout      time.Duration
	Dialer       Dialer
	Repository   *tracestore.Repository
	Instrumenter instrument.Instrumenter
	Logger       loggingpkg.ServiceLogger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Dialer == nil {
		o.Dialer = DefaultDialer
	}
	if o.Instrumenter == nil {
		o.Instrumenter = instrument.Null{}
	}
	if o.Logger == nil {
		o.Logger = loggingpkg.NewNopServiceLogger()
	}
	return o
}

// Client sends one request and waits for its reply.
type Client struct {
	mu      sync.Mutex
	opts    Options
	conn    Connection
	channel Channel
	tag     string
	closed  bool
}

// NewClient dials the broker and opens the channel used by Call.
func NewClient(opts Options) (*Client, error) {
	if opts.Service == "" {
		return nil, errspkg.ErrMissingApplicationPrefix
	}
	opts = opts.withDefaults()

	conn, err := opts.Dialer(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rpc: open channel: %w", err)
	}
	return &Client{opts: opts, conn: conn, channel: ch}, nil
}

// Call publishes ev to its routing key and returns the parsed reply. The
// connection is released when Call returns, whatever the outcome.
func (c *Client) Call(ctx context.Context, ev events.Event) (*ResponseEvent, error) {
	if ev == nil {
		return nil, errspkg.ErrEventRequired
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errspkg.ErrClientClosed
	}
	defer c.cleanup()

	var response *ResponseEvent
	err := c.opts.Instrumenter.Instrument(ctx, instrument.OperationRPCCall, func(ctx context.Context) error {
		var err error
		response, err = c.call(ctx, ev)
		return err
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (c *Client) call(ctx context.Context, ev events.Event) (*ResponseEvent, error) {
	events.InheritOriginHeaders(ctx, ev)
	trace, err := ev.EventBase().TraceContext(c.opts.Service)
	if err != nil {
		return nil, err
	}
	attrs, err := events.AsJSON(ev)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode %s: %w", events.TypeName(ev), err)
	}
	// Requests carry the bare attributes, without the serializer meta block.
	body, err := jsoncodec.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode %s: %w", events.TypeName(ev), err)
	}

	consumerTag := c.consumerTag()
	deliveries, err := c.channel.Consume(DirectReplyTo, consumerTag, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("rpc: consume replies: %w", err)
	}
	c.tag = consumerTag

	routingKey := events.RoutingKey(ev)
	correlationID := idspkg.NewUUID()
	publishing := amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		ReplyTo:       DirectReplyTo,
		MessageId:     idspkg.CreateULID(),
		Timestamp:     time.Now().UTC(),
		DeliveryMode:  amqp.Transient,
		Headers:       headerTable(trace.Headers()),
		Body:          body,
	}
	if err := c.channel.PublishWithContext(ctx, c.opts.Exchange, routingKey, false, false, publishing); err != nil {
		return nil, fmt.Errorf("rpc: publish %s: %w", routingKey, err)
	}
	c.opts.Logger.Debug("RPC request sent", loggingpkg.LogFields{
		"routing_key":    routingKey,
		"correlation_id": correlationID,
	})
	c.opts.Repository.Create(ctx, ev)

	timer := time.NewTimer(c.opts.Timeout)
	defer timer.Stop()

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				return nil, fmt.Errorf("rpc: reply channel closed while waiting for %s", routingKey)
			}
			if delivery.CorrelationId != "" && delivery.CorrelationId != correlationID {
				continue
			}
			return c.response(ctx, trace, delivery)
		case <-timer.C:
			return nil, &errspkg.RPCTimeoutError{RoutingKey: routingKey, Timeout: c.opts.Timeout}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) response(ctx context.Context, request *tracectx.Context, delivery amqp.Delivery) (*ResponseEvent, error) {
	body, err := jsoncodec.UnmarshalMap(delivery.Body)
	if err != nil {
		return nil, fmt.Errorf("rpc: decode reply: %w", err)
	}

	headers := tableHeaders(delivery.Headers)
	headers[tracectx.HeaderSpanID] = request.Span()

	response := &ResponseEvent{ResponseBody: body}
	response.SetOriginBody(body)
	response.SetOriginHeaders(headers)
	c.opts.Repository.Create(ctx, response)
	return response, nil
}

func (c *Client) consumerTag() string {
	return c.opts.Service + ".rpc." + idspkg.NewUUID()
}

// Close releases the connection of a client that was never called.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	chErr := c.channel.Close()
	connErr := c.conn.Close()
	if chErr != nil {
		return chErr
	}
	return connErr
}

// cleanup runs with c.mu held.
func (c *Client) cleanup() {
	c.closed = true
	if c.tag != "" && !c.conn.IsClosed() {
		if err := c.channel.Cancel(c.tag, false); err != nil {
			c.opts.Logger.Debug("RPC consumer cancel failed", loggingpkg.LogFields{"error": err.Error()})
		}
	}
	_ = c.channel.Close()
	_ = c.conn.Close()
}

func headerTable(headers metadatapkg.Headers) amqp.Table {
	table := amqp.Table{}
	for k, v := range headers.Metadata() {
		table[k] = v
	}
	return table
}

func tableHeaders(table amqp.Table) metadatapkg.Headers {
	headers := make(metadatapkg.Headers, len(table))
	for k, v := range table {
		headers[k] = v
	}
	return headers
}

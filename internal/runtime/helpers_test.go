package runtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/hermes/internal/runtime/config"
	"github.com/drblury/hermes/internal/runtime/events"
	loggingpkg "github.com/drblury/hermes/internal/runtime/logging"
	"github.com/drblury/hermes/internal/runtime/publisher"
	transportpkg "github.com/drblury/hermes/internal/runtime/transport"
	publictransport "github.com/drblury/hermes/transport"
)

type greetingSent struct {
	events.Base
	Message string `json:"message"`
}

func (*greetingSent) EventType() string { return "Events.Greetings.GreetingSent" }

type chargeCard struct {
	events.Base
	CardNumber string `json:"card_number"`
	Amount     int    `json:"amount"`
}

func (*chargeCard) EventType() string { return "Events.Billing.ChargeCard" }

type testPublisher struct {
	mu        sync.Mutex
	published map[string][]*message.Message
	err       error
}

func (p *testPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.published == nil {
		p.published = make(map[string][]*message.Message)
	}
	p.published[topic] = append(p.published[topic], messages...)
	return nil
}

func (p *testPublisher) Close() error { return nil }

func (p *testPublisher) Messages(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*message.Message(nil), p.published[topic]...)
}

type testSubscriber struct {
	err error
}

func (s *testSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (s *testSubscriber) Close() error { return nil }

type fakeStore struct {
	mu   sync.Mutex
	rows []map[string]any
	err  error
}

func (s *fakeStore) Insert(_ context.Context, table string, attrs map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	row := map[string]any{"_table": table}
	for k, v := range attrs {
		row[k] = v
	}
	s.rows = append(s.rows, row)
	return nil
}

func (s *fakeStore) Rows() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.rows...)
}

type logEntry struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(e logEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

func (l *recordingLogger) With(loggingpkg.LogFields) loggingpkg.ServiceLogger { return l }
func (l *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.add(logEntry{level: "debug", msg: msg, fields: fields})
}
func (l *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.add(logEntry{level: "info", msg: msg, fields: fields})
}
func (l *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.add(logEntry{level: "error", msg: msg, err: err, fields: fields})
}
func (l *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.add(logEntry{level: "trace", msg: msg, fields: fields})
}

func (l *recordingLogger) Find(msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func testConfig() *configpkg.Config {
	return &configpkg.Config{
		ApplicationPrefix: "app",
		PubSubSystem:      "channel",
	}
}

// channelFactory serves one in-process pub/sub as publisher, subscriber and
// reply publisher.
func channelFactory(pubSub *gochannel.GoChannel) transportpkg.Factory {
	return transportpkg.FactoryFunc(func(context.Context, publictransport.Config, watermill.LoggerAdapter) (transportpkg.Transport, error) {
		return transportpkg.Transport{Publisher: pubSub, Subscriber: pubSub, ReplyPublisher: pubSub}, nil
	})
}

func stubFactory(pub message.Publisher, sub message.Subscriber, reply message.Publisher) transportpkg.Factory {
	return transportpkg.FactoryFunc(func(context.Context, publictransport.Config, watermill.LoggerAdapter) (transportpkg.Transport, error) {
		return transportpkg.Transport{Publisher: pub, Subscriber: sub, ReplyPublisher: reply}, nil
	})
}

type testService struct {
	*Service
	pubSub  *gochannel.GoChannel
	adapter *publisher.InMemoryAdapter
	store   *fakeStore
}

// newTestService builds a service on a gochannel transport with an in-memory
// publisher adapter and a recording trace store.
func newTestService(t *testing.T, conf *configpkg.Config, deps ServiceDependencies) *testService {
	t.Helper()
	if conf == nil {
		conf = testConfig()
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	ts := &testService{pubSub: pubSub, store: &fakeStore{}}
	if deps.TransportFactory == nil {
		deps.TransportFactory = channelFactory(pubSub)
	}
	if deps.TraceStore == nil {
		deps.TraceStore = ts.store
	}
	if deps.Adapter == nil {
		ts.adapter = publisher.NewInMemoryAdapter()
		deps.Adapter = ts.adapter
	}
	deps.DisableDefaultMiddlewares = true

	svc, err := TryNewService(conf, newTestLogger(), context.Background(), deps)
	require.NoError(t, err)
	ts.Service = svc
	t.Cleanup(func() { _ = svc.Close() })
	return ts
}

// run starts the router and waits until all handlers are subscribed.
func (ts *testService) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Start(ctx) }()
	select {
	case <-ts.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond)
}

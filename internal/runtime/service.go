package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/drblury/hermes/internal/runtime/config"
	"github.com/drblury/hermes/internal/runtime/errorhandler"
	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	"github.com/drblury/hermes/internal/runtime/events"
	"github.com/drblury/hermes/internal/runtime/instrument"
	"github.com/drblury/hermes/internal/runtime/jobs"
	loggingpkg "github.com/drblury/hermes/internal/runtime/logging"
	"github.com/drblury/hermes/internal/runtime/notify"
	"github.com/drblury/hermes/internal/runtime/publisher"
	"github.com/drblury/hermes/internal/runtime/retry"
	"github.com/drblury/hermes/internal/runtime/rpc"
	"github.com/drblury/hermes/internal/runtime/sanitize"
	"github.com/drblury/hermes/internal/runtime/serializer"
	"github.com/drblury/hermes/internal/runtime/tracestore"
	transportpkg "github.com/drblury/hermes/internal/runtime/transport"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// JobsHandlerName is the router handler consuming the background job topic.
const JobsHandlerName = "hermes.jobs"

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to use the implementation selected by the configuration.
type ServiceDependencies struct {
	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	TransportFactory          transportpkg.Factory

	// TraceStore replaces the SQL store opened from the configuration.
	TraceStore tracestore.Store
	// ResourcePool is verified before synchronous handlers run.
	ResourcePool ResourcePool
	// Notifier receives captured producer and trace store errors.
	Notifier notify.Notifier
	// Instrumenter wraps publish, process and RPC operations.
	Instrumenter instrument.Instrumenter
	// TracerProvider feeds the default instrumenter and tracer middleware.
	TracerProvider trace.TracerProvider
	// MetricsRegisterer receives hermes metrics when metrics are enabled.
	MetricsRegisterer prometheus.Registerer
	// RetryPolicy overrides the policy of the safe producer error handler.
	RetryPolicy *retry.Policy
	// Adapter replaces the publisher adapter named by the configuration.
	Adapter publisher.Adapter
	// RPCDialer opens the broker connection of RPC calls.
	RPCDialer rpc.Dialer
	// Clock stamps serialized payloads and trace rows.
	Clock func() time.Time
}

// Service wires a Watermill router, transport, event registry, producer and
// background jobs.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	publisher      message.Publisher
	subscriber     message.Subscriber
	replyPublisher message.Publisher
	router         *message.Router

	filter         *sanitize.Filter
	eventLog       *loggingpkg.EventLogger
	notifier       notify.Notifier
	instrumenter   instrument.Instrumenter
	tracerProvider trace.TracerProvider
	metricsReg     prometheus.Registerer
	serializer     *serializer.Serializer
	registry       *Registry
	repository     *tracestore.Repository
	resources      ResourcePool
	jobs           *jobs.Queue
	worker         *jobs.Worker
	eventPublisher *publisher.Publisher
	producer       *Producer
	dispatcher     *Dispatcher
	republisher    *Republisher
	rpcDialer      rpc.Dialer

	closers   []io.Closer
	closeOnce sync.Once
	closeErr  error
}

// NewService constructs a Service for the supplied configuration. Register handlers
// on the returned Service before calling Start. It panics when the service
// cannot be built; use TryNewService to handle the error.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	s, err := TryNewService(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService constructs a Service and reports configuration and transport
// errors instead of panicking.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	resolved := conf.WithDefaults()
	if err := resolved.Validate(); err != nil {
		return nil, errspkg.ConfigValidationError{Err: err}
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating event service",
		loggingpkg.LogFields{
			"pubsub_system": resolved.PubSubSystem,
			"adapter":       resolved.Adapter,
			"config":        resolved.String(),
		})

	s := &Service{
		Conf:           &resolved,
		Logger:         log,
		tracerProvider: deps.TracerProvider,
		metricsReg:     deps.MetricsRegisterer,
		rpcDialer:      deps.RPCDialer,
	}
	if s.metricsReg == nil {
		s.metricsReg = prometheus.DefaultRegisterer
	}
	var filterOpts []sanitize.Option
	if len(resolved.SensitiveKeywords) > 0 {
		filterOpts = append(filterOpts, sanitize.WithKeywords(resolved.SensitiveKeywords...))
	}
	s.filter = sanitize.NewFilter(filterOpts...)
	s.eventLog = loggingpkg.NewEventLogger(log, s.filter)

	var serializerOpts []serializer.Option
	if deps.Clock != nil {
		serializerOpts = append(serializerOpts, serializer.WithClock(deps.Clock))
	}
	s.serializer = serializer.New(serializerOpts...)

	if err := s.setupObservability(deps); err != nil {
		return nil, err
	}

	s.registry = NewRegistry(resolved.ApplicationPrefix, events.NewCatalog())

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	transport, err := factory.Build(ctx, transportConfig{Config: s.Conf, registry: s.registry}, wmLogger)
	if err != nil {
		return nil, err
	}
	s.publisher = transport.Publisher
	s.subscriber = transport.Subscriber
	s.replyPublisher = transport.ReplyPublisher

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		_ = s.closeTransport()
		return nil, err
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	if err := s.setupTraces(deps); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.setupProducer(deps); err != nil {
		_ = s.Close()
		return nil, err
	}
	if !resolved.DisableJobWorker {
		if err := RegisterMessageHandler(s, MessageHandlerRegistration{
			Name:    JobsHandlerName,
			Topic:   s.jobs.Topic(),
			Handler: s.worker.Handler,
		}); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

func (s *Service) setupObservability(deps ServiceDependencies) error {
	s.notifier = deps.Notifier
	if s.notifier == nil {
		s.notifier = notify.NewLogger(s.Logger)
	}
	s.instrumenter = deps.Instrumenter
	if s.instrumenter == nil {
		s.instrumenter = instrument.NewTracer(s.tracerProvider)
	}
	if !s.Conf.MetricsEnabled {
		return nil
	}

	counter, err := notify.NewCounter(s.metricsReg, s.notifier)
	if err != nil {
		return fmt.Errorf("register exception counter: %w", err)
	}
	s.notifier = counter

	metrics, err := instrument.NewMetrics(s.metricsReg)
	if err != nil {
		return fmt.Errorf("register operation metrics: %w", err)
	}
	s.instrumenter = instrument.Chain{s.instrumenter, metrics}
	return nil
}

func (s *Service) setupTraces(deps ServiceDependencies) error {
	store := deps.TraceStore
	var pools []ResourcePool
	if store == nil && s.Conf.StoreDistributedTraces {
		if s.Conf.DistributedTracesDatabaseURL == "" {
			return errspkg.ConfigValidationError{Err: errors.New("traces: database URL is required when trace storage is enabled")}
		}
		sqlStore, err := tracestore.OpenSQLStore(s.Conf.DistributedTracesDriver, s.Conf.DistributedTracesDatabaseURL)
		if err != nil {
			return err
		}
		if s.Conf.DisconnectPattern != "" {
			sqlStore.SetDisconnectPattern(regexp.MustCompile(s.Conf.DisconnectPattern))
		}
		s.closers = append(s.closers, sqlStore)
		pools = append(pools, sqlStore)
		store = sqlStore
	}
	if pool, ok := store.(ResourcePool); ok && len(pools) == 0 {
		pools = append(pools, pool)
	}
	s.resources = newPool(append(pools, deps.ResourcePool)...)

	s.repository = tracestore.NewRepository(tracestore.Options{
		Enabled:      s.Conf.StoreDistributedTraces,
		Table:        s.Conf.DistributedTracesTable,
		Service:      s.Conf.ApplicationPrefix,
		Store:        store,
		Mapper:       tracestore.SanitizingMapper{Filter: s.filter},
		ErrorHandler: tracestore.DatabaseErrorHandler{Notifier: s.notifier},
		Clock:        deps.Clock,
	})
	return nil
}

func (s *Service) setupProducer(deps ServiceDependencies) error {
	queue, err := jobs.NewQueue(s.publisher, s.Conf.JobsTopic)
	if err != nil {
		return err
	}
	s.jobs = queue

	var handler errorhandler.Handler = errorhandler.NullHandler{}
	if s.Conf.ProducerErrorHandler == configpkg.ProducerErrorHandlerSafe {
		policy := deps.RetryPolicy
		if policy == nil {
			policy = retry.New(s.Conf.RetryAttempts, retry.WithDelay(s.Conf.RetryDelay))
		}
		handler = errorhandler.NewSafeHandler(queue, s.notifier, policy)
	}

	factory, err := publisher.NewFactory(s.Conf.Adapter, func() (publisher.Adapter, error) {
		return publisher.NewBrokerAdapter(s.publisher, s.eventLog)
	})
	if err != nil {
		return err
	}
	s.eventPublisher = publisher.New(factory)
	if deps.Adapter != nil {
		s.eventPublisher.SetCurrentAdapter(deps.Adapter)
	}

	s.producer, err = NewProducer(ProducerOptions{
		Service:      s.Conf.ApplicationPrefix,
		Publisher:    s.eventPublisher,
		Serializer:   s.serializer,
		ErrorHandler: handler,
		Repository:   s.repository,
		Instrumenter: s.instrumenter,
		Catalog:      s.registry.Catalog(),
	})
	if err != nil {
		return err
	}
	s.dispatcher = NewDispatcher(s.registry, s.repository, s.instrumenter)
	s.republisher = NewRepublisher(s.registry.Catalog(), s.producer)
	s.worker = jobs.NewWorker(s.Logger).
		Handle(jobs.KindProcess, s.dispatcher).
		Handle(jobs.KindRepublish, s.republisher)
	return nil
}

// Start runs the underlying Watermill router until the provided context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	return routerRun(s.router, ctx)
}

// Running is closed once the router has started all handlers.
func (s *Service) Running() chan struct{} {
	return s.router.Running()
}

// Publish sends ev to its routing key with default properties.
func (s *Service) Publish(ctx context.Context, ev events.Event) error {
	return s.producer.Publish(ctx, ev, publisher.Properties{}, publisher.Options{})
}

// PublishWith sends ev with explicit broker properties.
func (s *Service) PublishWith(ctx context.Context, ev events.Event, props publisher.Properties, opts publisher.Options) error {
	return s.producer.Publish(ctx, ev, props, opts)
}

// Call sends ev as an RPC request and waits for the reply. Each call uses
// its own broker connection.
func (s *Service) Call(ctx context.Context, ev events.Event) (*rpc.ResponseEvent, error) {
	events.InheritOriginHeaders(ctx, ev)
	client, err := rpc.NewClient(rpc.Options{
		URL:          s.Conf.RabbitMQURL,
		Exchange:     s.Conf.Exchange,
		Service:      s.Conf.ApplicationPrefix,
		Timeout:      s.Conf.RPCCallTimeout,
		Dialer:       s.rpcDialer,
		Repository:   s.repository,
		Instrumenter: s.instrumenter,
		Logger:       s.Logger,
	})
	if err != nil {
		return nil, err
	}
	return client.Call(ctx, ev)
}

// Publisher returns the adapter holder used for outgoing events.
func (s *Service) Publisher() *publisher.Publisher { return s.eventPublisher }

// Registry returns the event registry.
func (s *Service) Registry() *Registry { return s.registry }

// Catalog returns the catalog of known event types.
func (s *Service) Catalog() *events.Catalog { return s.registry.Catalog() }

// Jobs returns the background job queue.
func (s *Service) Jobs() *jobs.Queue { return s.jobs }

// Close stops the router and releases the transport and trace store.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		// A router that never ran has no handlers to drain and would sit out
		// the whole close timeout.
		if s.router != nil && s.router.IsRunning() {
			errs = append(errs, s.router.Close())
		}
		errs = append(errs, s.closeTransport())
		for _, closer := range s.closers {
			errs = append(errs, closer.Close())
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func (s *Service) closeTransport() error {
	var errs []error
	if s.replyPublisher != nil && s.replyPublisher != s.publisher {
		errs = append(errs, s.replyPublisher.Close())
	}
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.subscriber != nil && any(s.subscriber) != any(s.publisher) {
		errs = append(errs, s.subscriber.Close())
	}
	return errors.Join(errs...)
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("failed to register middleware %s: %w", name, err)
		}
	}
	return nil
}

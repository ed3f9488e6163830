package hermes

import (
	"context"

	runtimepkg "github.com/drblury/hermes/internal/runtime"
	configpkg "github.com/drblury/hermes/internal/runtime/config"
	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	"github.com/drblury/hermes/internal/runtime/events"
	idspkg "github.com/drblury/hermes/internal/runtime/ids"
	"github.com/drblury/hermes/internal/runtime/instrument"
	"github.com/drblury/hermes/internal/runtime/jobs"
	jsoncodec "github.com/drblury/hermes/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/hermes/internal/runtime/logging"
	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
	"github.com/drblury/hermes/internal/runtime/notify"
	"github.com/drblury/hermes/internal/runtime/publisher"
	"github.com/drblury/hermes/internal/runtime/retry"
	"github.com/drblury/hermes/internal/runtime/rpc"
	"github.com/drblury/hermes/internal/runtime/tracectx"
	"github.com/drblury/hermes/internal/runtime/tracestore"
	transportpkg "github.com/drblury/hermes/internal/runtime/transport"
	newtransport "github.com/drblury/hermes/transport"
)

type (
	Config               = configpkg.Config
	Service              = runtimepkg.Service
	ServiceDependencies  = runtimepkg.ServiceDependencies
	Transport            = transportpkg.Transport
	TransportFactory     = transportpkg.Factory
	TransportFactoryFunc = transportpkg.FactoryFunc

	// Events
	Event        = events.Event
	Base         = events.Base
	EventFactory = events.Factory
	Catalog      = events.Catalog
	Headers      = metadatapkg.Headers
	Metadata     = metadatapkg.Metadata
	TraceContext = tracectx.Context

	// Registration
	Handler                    = runtimepkg.Handler
	Registration               = runtimepkg.Registration
	RegistrationOption         = runtimepkg.RegistrationOption
	RegistrationOptions        = runtimepkg.RegistrationOptions
	ConsumerConfig             = runtimepkg.ConsumerConfig
	Registry                   = runtimepkg.Registry
	MessageHandlerRegistration = runtimepkg.MessageHandlerRegistration

	// Publishing
	Producer         = runtimepkg.Producer
	Properties       = publisher.Properties
	PublishOptions   = publisher.Options
	PublisherAdapter = publisher.Adapter
	EventPublisher   = publisher.Publisher
	InMemoryAdapter  = publisher.InMemoryAdapter
	PublishedMessage = publisher.Message
	RetryPolicy      = retry.Policy
	RPCResponse      = rpc.ResponseEvent
	RPCDialer        = rpc.Dialer
	RPCTimeoutError  = errspkg.RPCTimeoutError
	Job              = jobs.Job
	JobQueue         = jobs.Queue
	ResourcePool     = runtimepkg.ResourcePool
	TraceStore       = tracestore.Store
	Notifier         = notify.Notifier
	NotifierFunc     = notify.Func
	Instrumenter     = instrument.Instrumenter

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig

	// Delivery lifecycle hooks
	DeliveryContext = runtimepkg.DeliveryContext
	DeliveryHooks   = runtimepkg.DeliveryHooks

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError

	// Transport capabilities
	Capabilities      = newtransport.Capabilities
	TransportBuilder  = newtransport.Builder
	TransportConfig   = newtransport.Config
	TransportRegistry = newtransport.Registry
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	ValidateConfig = configpkg.ValidateConfig
	LoadConfig     = configpkg.Load

	Async              = runtimepkg.Async
	RPC                = runtimepkg.RPC
	WithConsumerConfig = runtimepkg.WithConsumerConfig

	RegisterMessageHandler = runtimepkg.RegisterMessageHandler

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	DeliveryHooksMiddleware = runtimepkg.DeliveryHooksMiddleware
	LoggingHooks            = runtimepkg.LoggingHooks
	AlertingHooks           = runtimepkg.AlertingHooks

	NewCatalog         = events.NewCatalog
	TypeName           = events.TypeName
	RoutingKey         = events.RoutingKey
	RoutingKeyFor      = events.RoutingKeyFor
	WithOriginHeaders  = events.WithOriginHeaders
	NewInMemoryAdapter = publisher.NewInMemoryAdapter
	NewRetryPolicy     = retry.New

	GetCapabilities          = newtransport.GetCapabilities
	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	ErrServiceRequired          = errspkg.ErrServiceRequired
	ErrHandlerRequired          = errspkg.ErrHandlerRequired
	ErrEventRequired            = errspkg.ErrEventRequired
	ErrUnknownEventType         = errspkg.ErrUnknownEventType
	ErrAlreadyRegistered        = errspkg.ErrAlreadyRegistered
	ErrAsyncRPC                 = errspkg.ErrAsyncRPC
	ErrReplyPublisherRequired   = errspkg.ErrReplyPublisherRequired
	ErrMissingApplicationPrefix = errspkg.ErrMissingApplicationPrefix
	ErrPublisherRequired        = errspkg.ErrPublisherRequired
	ErrConfigRequired           = errspkg.ErrConfigRequired
	ErrLoggerRequired           = errspkg.ErrLoggerRequired
	ErrRPCTimeout               = errspkg.ErrRPCTimeout

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewNopServiceLogger  = loggingpkg.NewNopServiceLogger

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID
)

// Header keys of the B3 trace context carried by every event.
const (
	HeaderTraceID      = tracectx.HeaderTraceID
	HeaderSpanID       = tracectx.HeaderSpanID
	HeaderParentSpanID = tracectx.HeaderParentSpanID
	HeaderSampled      = tracectx.HeaderSampled
	HeaderService      = tracectx.HeaderService
)

// Values accepted by Config.Adapter and Config.ProducerErrorHandler.
const (
	AdapterBroker            = configpkg.AdapterBroker
	AdapterInMemory          = configpkg.AdapterInMemory
	ProducerErrorHandlerNull = configpkg.ProducerErrorHandlerNull
	ProducerErrorHandlerSafe = configpkg.ProducerErrorHandlerSafe
)

// Handle registers a typed handler for the event type T. RPC handlers return
// the response body sent back to the caller.
func Handle[T Event](svc *Service, handler func(context.Context, T) (any, error), opts ...RegistrationOption) (Registration, error) {
	return runtimepkg.Handle(svc, handler, opts...)
}

// Subscribe registers a typed handler that returns no response.
func Subscribe[T Event](svc *Service, handler func(context.Context, T) error, opts ...RegistrationOption) (Registration, error) {
	return runtimepkg.Subscribe(svc, handler, opts...)
}

// RegisterEvent adds T to catalog and returns its type name.
func RegisterEvent[T Event](catalog *Catalog) (string, error) {
	return events.Register[T](catalog)
}

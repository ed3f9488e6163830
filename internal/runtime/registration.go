package runtime

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	"github.com/drblury/hermes/internal/runtime/events"
	loggingpkg "github.com/drblury/hermes/internal/runtime/logging"
)

// MessageHandlerRegistration wires a raw Watermill handler without event
// decoding, tracing or replies.
type MessageHandlerRegistration struct {
	Name       string
	Topic      string
	Handler    message.NoPublishHandlerFunc
	Subscriber message.Subscriber
}

// RegisterMessageHandler attaches the provided handler to the service router.
func RegisterMessageHandler(svc *Service, cfg MessageHandlerRegistration) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	if cfg.Handler == nil {
		return errspkg.ErrHandlerRequired
	}
	if cfg.Topic == "" {
		return fmt.Errorf("hermes: topic is required for handler %q", cfg.Name)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Topic
	}
	if cfg.Subscriber == nil {
		cfg.Subscriber = svc.subscriber
	}
	if err := svc.registry.ClaimHandlerName(cfg.Name, cfg.Topic); err != nil {
		return err
	}
	svc.router.AddNoPublisherHandler(cfg.Name, cfg.Topic, cfg.Subscriber, cfg.Handler)
	return nil
}

// Register stores handler for eventType and subscribes its queue. An empty
// eventType is derived from the event built by factory.
func (s *Service) Register(eventType string, factory events.Factory, handler Handler, opts ...RegistrationOption) (Registration, error) {
	options, err := buildOptions(opts)
	if err != nil {
		return Registration{}, err
	}
	if options.RPC && s.replyPublisher == nil {
		return Registration{}, fmt.Errorf("%w: %s", errspkg.ErrReplyPublisherRequired, s.Conf.PubSubSystem)
	}
	reg, err := s.registry.Register(eventType, factory, handler, opts...)
	if err != nil {
		return Registration{}, err
	}

	c := &consumer{
		registration:   reg,
		service:        s.Conf.ApplicationPrefix,
		dispatcher:     s.dispatcher,
		queue:          s.jobs,
		resources:      s.resources,
		replyPublisher: s.replyPublisher,
		eventLog:       s.eventLog,
		log:            s.Logger,
	}
	s.router.AddNoPublisherHandler(reg.Consumer.HandlerName, reg.RoutingKey, s.subscriber, c.Handle)

	s.Logger.Info("Registered event handler", loggingpkg.LogFields{
		"event_type":  reg.EventType,
		"routing_key": reg.RoutingKey,
		"queue":       reg.Consumer.Queue,
		"async":       reg.Options.Async,
		"rpc":         reg.Options.RPC,
	})
	return reg, nil
}

// Handle registers a typed handler for the pointer event type T.
func Handle[T events.Event](svc *Service, handler func(context.Context, T) (any, error), opts ...RegistrationOption) (Registration, error) {
	if svc == nil {
		return Registration{}, errspkg.ErrServiceRequired
	}
	if handler == nil {
		return Registration{}, errspkg.ErrHandlerRequired
	}
	factory, name, err := events.FactoryFor[T]()
	if err != nil {
		return Registration{}, err
	}
	return svc.Register(name, factory, func(ctx context.Context, ev events.Event) (any, error) {
		typed, ok := ev.(T)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", errspkg.ErrUnknownEventType, ev)
		}
		return handler(ctx, typed)
	}, opts...)
}

// Subscribe registers a typed handler that returns no response.
func Subscribe[T events.Event](svc *Service, handler func(context.Context, T) error, opts ...RegistrationOption) (Registration, error) {
	if handler == nil {
		return Registration{}, errspkg.ErrHandlerRequired
	}
	return Handle(svc, func(ctx context.Context, ev T) (any, error) {
		return nil, handler(ctx, ev)
	}, opts...)
}

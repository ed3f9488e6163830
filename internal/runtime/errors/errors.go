package errors

import (
	sterrors "errors"
	"fmt"
	"time"
)

var (
	ErrServiceRequired          = sterrors.New("hermes: event service is required")
	ErrHandlerRequired          = sterrors.New("hermes: handler function is required")
	ErrEventRequired            = sterrors.New("hermes: event is required")
	ErrEventTypeRequired        = sterrors.New("hermes: event type name is required")
	ErrEventPointerNeeded       = sterrors.New("hermes: event type must be a pointer")
	ErrUnknownEventType         = sterrors.New("hermes: unknown event type")
	ErrInvalidAdapter           = sterrors.New("hermes: invalid async messaging adapter")
	ErrMissingApplicationPrefix = sterrors.New("hermes: missing application prefix")
	ErrAsyncRPC                 = sterrors.New("hermes: rpc handlers cannot be processed asynchronously")
	ErrReplyPublisherRequired   = sterrors.New("hermes: transport does not provide a reply publisher")
	ErrPublisherRequired        = sterrors.New("hermes: publisher is required")
	ErrConfigRequired           = sterrors.New("hermes: configuration is required")
	ErrLoggerRequired           = sterrors.New("hermes: logger is required")
	ErrRPCTimeout               = sterrors.New("hermes: rpc call timed out")
	ErrClientClosed             = sterrors.New("hermes: rpc client is closed")
	ErrUnknownJobKind           = sterrors.New("hermes: unknown job kind")
	ErrAlreadyRegistered        = sterrors.New("hermes: event type already registered")
)

// ConfigValidationError reports an invalid configuration.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("hermes: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// RPCTimeoutError is returned when no reply arrives before the call timeout.
type RPCTimeoutError struct {
	RoutingKey string
	Timeout    time.Duration
}

func (e *RPCTimeoutError) Error() string {
	return fmt.Sprintf("hermes: rpc call to %q timed out after %s", e.RoutingKey, e.Timeout)
}

// Is reports ErrRPCTimeout as a match so callers can use errors.Is.
func (e *RPCTimeoutError) Is(target error) bool {
	return target == ErrRPCTimeout
}

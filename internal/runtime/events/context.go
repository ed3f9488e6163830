package events

import (
	"context"

	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
)

type originHeadersKey struct{}

// WithOriginHeaders scopes headers as the ambient origin for events produced
// while handling the current message.
func WithOriginHeaders(ctx context.Context, headers metadatapkg.Headers) context.Context {
	return context.WithValue(ctx, originHeadersKey{}, headers.Clone())
}

// OriginHeadersFromContext returns the ambient origin headers, if any.
func OriginHeadersFromContext(ctx context.Context) (metadatapkg.Headers, bool) {
	if ctx == nil {
		return nil, false
	}
	headers, ok := ctx.Value(originHeadersKey{}).(metadatapkg.Headers)
	return headers, ok && headers != nil
}

// InheritOriginHeaders copies the ambient origin headers onto ev unless ev
// already carries explicit ones.
func InheritOriginHeaders(ctx context.Context, ev Event) {
	base := ev.EventBase()
	if base.HasOriginHeaders() {
		return
	}
	if headers, ok := OriginHeadersFromContext(ctx); ok {
		base.SetOriginHeaders(headers)
	}
}

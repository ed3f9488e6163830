package tracectx

import (
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/hermes/internal/runtime/errors"
	metadatapkg "github.com/drblury/hermes/internal/runtime/metadata"
)

var hexTrace = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestNewRootContext(t *testing.T) {
	ctx, err := New(nil, "app")
	require.NoError(t, err)

	assert.Regexp(t, hexTrace, ctx.Trace())
	assert.Len(t, ctx.Span(), SpanLength)
	assert.Contains(t, ctx.Span(), ";app;")
	assert.True(t, strings.HasPrefix(ctx.Span(), ctx.Trace()[:23]))
	assert.Equal(t, "app", ctx.Service())

	_, hasParent := ctx.ParentSpan()
	assert.False(t, hasParent)
	assert.Nil(t, ctx.ParentSpanValue())
}

func TestNewInheritsOrigin(t *testing.T) {
	origin := metadatapkg.Headers{
		HeaderTraceID: "abcdef",
		HeaderSpanID:  "upstream-span",
	}

	ctx, err := New(origin, "orders")
	require.NoError(t, err)

	assert.Equal(t, "abcdef", ctx.Trace())
	parent, ok := ctx.ParentSpan()
	assert.True(t, ok)
	assert.Equal(t, "upstream-span", parent)
	assert.Len(t, ctx.Span(), SpanLength)
	assert.True(t, strings.HasPrefix(ctx.Span(), "abcdef0"), "short traces are padded: %s", ctx.Span())
}

func TestNewIgnoresBlankOrigin(t *testing.T) {
	ctx, err := New(metadatapkg.Headers{HeaderTraceID: "", HeaderSpanID: nil}, "app")
	require.NoError(t, err)

	assert.Regexp(t, hexTrace, ctx.Trace())
	assert.Nil(t, ctx.ParentSpanValue())
}

func TestNewRequiresService(t *testing.T) {
	_, err := New(nil, "")
	assert.ErrorIs(t, err, errspkg.ErrMissingApplicationPrefix)
}

func TestSpanLengthIsFixed(t *testing.T) {
	traces := []string{"", "a", "0123456789", strings.Repeat("f", 64), strings.Repeat("e", 200)}
	services := []string{"a", "app", "fifteen-chars-x", "a-service-name-well-beyond-fifteen"}

	for _, trace := range traces {
		for _, service := range services {
			ctx, err := New(metadatapkg.Headers{HeaderTraceID: trace}, service)
			require.NoError(t, err)
			assert.Len(t, ctx.Span(), SpanLength, "trace=%q service=%q", trace, service)

			seed := service
			if len(seed) > 15 {
				seed = seed[:15]
			}
			assert.Contains(t, ctx.Span(), ";"+seed+";")
		}
	}
}

func TestSpanKeepsMultiByteRunesWhole(t *testing.T) {
	original := newUUID
	t.Cleanup(func() { newUUID = original })
	newUUID = func() string { return "123e4567-e89b-12d3-a456-426614174000" }

	ctx, err := New(metadatapkg.Headers{HeaderTraceID: "a" + strings.Repeat("€", 5)}, strings.Repeat("ä", 8))
	require.NoError(t, err)

	span := ctx.Span()
	assert.Len(t, span, SpanLength)
	assert.True(t, utf8.ValidString(span), "span %q", span)
	assert.Equal(t, "a€€€00;"+strings.Repeat("ä", 7)+";123e4567-e89b-12d3-a456-426614174000", span)
}

func TestSpanUsesUUID(t *testing.T) {
	original := newUUID
	t.Cleanup(func() { newUUID = original })
	newUUID = func() string { return "123e4567-e89b-12d3-a456-426614174000" }

	ctx, err := New(metadatapkg.Headers{HeaderTraceID: strings.Repeat("a", 64)}, "app")
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat("a", 23)+";app;123e4567-e89b-12d3-a456-426614174000", ctx.Span())
}

func TestHeaders(t *testing.T) {
	ctx, err := New(metadatapkg.Headers{HeaderSpanID: "parent"}, "app")
	require.NoError(t, err)

	headers := ctx.Headers()
	assert.Len(t, headers, 5)
	assert.Equal(t, ctx.Trace(), headers[HeaderTraceID])
	assert.Equal(t, "parent", headers[HeaderParentSpanID])
	assert.Equal(t, ctx.Span(), headers[HeaderSpanID])
	assert.Equal(t, "", headers[HeaderSampled])
	assert.Equal(t, "app", headers[HeaderService])

	b3 := ctx.B3Headers()
	assert.Len(t, b3, 4)
	assert.NotContains(t, b3, HeaderService)
}

func TestRootHeadersCarryNilParent(t *testing.T) {
	ctx, err := New(nil, "app")
	require.NoError(t, err)

	headers := ctx.Headers()
	value, present := headers[HeaderParentSpanID]
	assert.True(t, present)
	assert.Nil(t, value)
}

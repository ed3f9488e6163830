package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	loggingpkg "github.com/drblury/hermes/internal/runtime/logging"
)

func TestFuncAndMulti(t *testing.T) {
	var got []error
	record := Func(func(_ context.Context, err error) { got = append(got, err) })
	boom := errors.New("boom")

	Multi{record, nil, Null{}, record}.CaptureException(context.Background(), boom)

	assert.Equal(t, []error{boom, boom}, got)
}

func TestLoggerWritesError(t *testing.T) {
	log := &errorLog{}
	n := NewLogger(log)
	boom := errors.New("boom")

	n.CaptureException(context.Background(), boom)
	n.CaptureException(context.Background(), nil)

	assert.Equal(t, []error{boom}, log.errs)
}

type errorLog struct {
	errs []error
}

func (l *errorLog) With(loggingpkg.LogFields) loggingpkg.ServiceLogger { return l }
func (l *errorLog) Debug(string, loggingpkg.LogFields)                 {}
func (l *errorLog) Info(string, loggingpkg.LogFields)                  {}
func (l *errorLog) Trace(string, loggingpkg.LogFields)                 {}
func (l *errorLog) Error(_ string, err error, _ loggingpkg.LogFields) {
	l.errs = append(l.errs, err)
}

func TestCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	var forwarded int
	c, err := NewCounter(reg, Func(func(context.Context, error) { forwarded++ }))
	require.NoError(t, err)

	c.CaptureException(context.Background(), errors.New("a"))
	c.CaptureException(context.Background(), errors.New("b"))
	c.CaptureException(context.Background(), nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.counter))
	assert.Equal(t, 2, forwarded)

	_, err = NewCounter(reg, nil)
	assert.Error(t, err, "duplicate registration must fail")
}

package tracing

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"whatsflow/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRequestContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Zero(t, Duration(ctx))

	id := NewRequestID()
	ctx = WithRequestID(ctx, id)
	ctx = WithStartTime(ctx, time.Now().Add(-50*time.Millisecond))

	assert.Equal(t, id, RequestID(ctx))
	assert.GreaterOrEqual(t, Duration(ctx), 50*time.Millisecond)
	assert.NotEqual(t, id, NewRequestID())
}

func TestManager_Disabled(t *testing.T) {
	m := NewManager(models.TracingConfig{Enabled: false}, quietLogger())

	require.NoError(t, m.Initialize(context.Background()))
	assert.Nil(t, m.provider)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_Stdout(t *testing.T) {
	m := NewManager(models.TracingConfig{
		Enabled:     true,
		ServiceName: "whatsflow-test",
		SampleRate:  1,
		UseStdout:   true,
	}, quietLogger())

	require.NoError(t, m.Initialize(context.Background()))
	assert.NotNil(t, m.provider)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	ctx, span := StartSpan(context.Background(), "dispatch", attribute.String("account_id", "acc-1"))
	AddSpanAttributes(ctx, attribute.String("stage", "rule"))
	RecordError(ctx, errors.New("send failed"))
	assert.NotEmpty(t, TraceID(ctx))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "dispatch", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("stage", "rule"))
	assert.Len(t, ended[0].Events(), 1)
	assert.Empty(t, TraceID(context.Background()))
}

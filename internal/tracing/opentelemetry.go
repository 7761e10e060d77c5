package tracing

import (
	"context"
	"fmt"
	"time"

	"whatsflow/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "whatsflow"
	shutdownTimeout = 5 * time.Second
)

// Manager installs and flushes the process tracer provider. With tracing
// disabled it does nothing and spans go to the global no-op provider.
type Manager struct {
	config   models.TracingConfig
	logger   *logrus.Logger
	provider *sdktrace.TracerProvider
}

func NewManager(config models.TracingConfig, logger *logrus.Logger) *Manager {
	return &Manager{config: config, logger: logger}
}

func (m *Manager) Initialize(ctx context.Context) error {
	if !m.config.Enabled {
		m.logger.Debug("Tracing disabled")
		return nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", m.config.ServiceName),
		attribute.String("service.version", m.config.ServiceVersion),
		attribute.String("deployment.environment", m.config.Environment),
	))
	if err != nil {
		return fmt.Errorf("failed to build trace resource: %w", err)
	}

	exporter, target, err := m.exporter(ctx)
	if err != nil {
		return err
	}

	m.provider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(m.config.SampleRate))),
	)
	otel.SetTracerProvider(m.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	m.logger.WithFields(logrus.Fields{
		"exporter":    target,
		"service":     m.config.ServiceName,
		"sample_rate": m.config.SampleRate,
	}).Info("Tracing enabled")
	return nil
}

// exporter returns the span exporter and a label for logging.
func (m *Manager) exporter(ctx context.Context) (sdktrace.SpanExporter, string, error) {
	if m.config.UseStdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, "", fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exp, "stdout", nil
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(m.config.OTLPEndpoint))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create OTLP exporter for %s: %w", m.config.OTLPEndpoint, err)
	}
	return exp, m.config.OTLPEndpoint, nil
}

// Shutdown flushes buffered spans, waiting at most shutdownTimeout.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := m.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to flush spans: %w", err)
	}
	return nil
}

func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// recording returns the span in ctx if it is being recorded.
func recording(ctx context.Context) (oteltrace.Span, bool) {
	span := oteltrace.SpanFromContext(ctx)
	return span, span.IsRecording()
}

func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	if span, ok := recording(ctx); ok {
		span.SetAttributes(attrs...)
	}
}

func SetSpanStatus(ctx context.Context, code codes.Code, description string) {
	if span, ok := recording(ctx); ok {
		span.SetStatus(code, description)
	}
}

// RecordError adds err as an event and marks the span failed.
func RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	if span, ok := recording(ctx); ok {
		span.RecordError(err, oteltrace.WithAttributes(attrs...))
		span.SetStatus(codes.Error, err.Error())
	}
}

// TraceID is empty when ctx carries no span context.
func TraceID(ctx context.Context) string {
	if sc := oteltrace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

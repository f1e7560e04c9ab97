package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Telemetry handles all observability concerns: tracing and metrics
type Telemetry struct {
	TracerProvider     *sdktrace.TracerProvider
	MeterProvider      *sdkmetric.MeterProvider
	PrometheusExporter *prometheus.Exporter
	Tracer             trace.Tracer
	Meter              metric.Meter
	logger             *zap.Logger
}

// TelemetryMetrics contains pre-created metrics for common operations
type TelemetryMetrics struct {
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestCount    metric.Int64Counter
	DBQueryDuration     metric.Float64Histogram
	ProblemsCreated     metric.Int64Counter
	RevisionsMarked     metric.Int64Counter
}

// NewTelemetry initializes OpenTelemetry with tracing and metrics. When
// disabled it returns noop global providers so callers never nil-check.
func NewTelemetry(ctx context.Context, config *TelemetryConfig, logger *zap.Logger) (*Telemetry, error) {
	if !config.Enabled {
		logger.Info("Telemetry disabled, using noop providers")
		return &Telemetry{
			Tracer: otel.Tracer(config.ServiceName),
			Meter:  otel.Meter(config.ServiceName),
			logger: logger,
		}, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tracerProvider, err := newTracerProvider(ctx, config, res)
	if err != nil {
		return nil, err
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)

	logger.Info("Telemetry initialized",
		zap.String("service", config.ServiceName),
		zap.String("version", config.ServiceVersion),
		zap.String("otlp_endpoint", config.OTLPEndpoint),
	)

	return &Telemetry{
		TracerProvider:     tracerProvider,
		MeterProvider:      meterProvider,
		PrometheusExporter: promExporter,
		Tracer:             tracerProvider.Tracer(config.ServiceName),
		Meter:              meterProvider.Meter(config.ServiceName),
		logger:             logger,
	}, nil
}

func newTracerProvider(ctx context.Context, config *TelemetryConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(config.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(0.1),
		)),
	), nil
}

// CreateMetrics initializes the application metric instruments
func (t *Telemetry) CreateMetrics() (*TelemetryMetrics, error) {
	httpDuration, err := t.Meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	httpCount, err := t.Meter.Int64Counter(
		"http.request.count",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	dbDuration, err := t.Meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	problemsCreated, err := t.Meter.Int64Counter(
		"problems.created",
		metric.WithDescription("Total number of problems added to the tracker"),
	)
	if err != nil {
		return nil, err
	}

	revisionsMarked, err := t.Meter.Int64Counter(
		"revisions.marked",
		metric.WithDescription("Total number of revisions recorded"),
	)
	if err != nil {
		return nil, err
	}

	return &TelemetryMetrics{
		HTTPRequestDuration: httpDuration,
		HTTPRequestCount:    httpCount,
		DBQueryDuration:     dbDuration,
		ProblemsCreated:     problemsCreated,
		RevisionsMarked:     revisionsMarked,
	}, nil
}

// Shutdown flushes and stops the telemetry providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			t.logger.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			t.logger.Error("Failed to shutdown meter provider", zap.Error(err))
		}
	}
	t.logger.Info("Telemetry shutdown complete")
	return nil
}

package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"ineqpanel/internal/config"
)

const (
	ServiceName = "inequality-report"
	MeterName   = "ineqpanel"
)

// TelemetryOptions holds the telemetry settings of a run
type TelemetryOptions struct {
	EnableTracing bool
	EnableMetrics bool
	// TracePath receives pretty-printed spans when tracing is enabled.
	TracePath string
	// MetricsPath receives the Prometheus text exposition on Shutdown.
	MetricsPath string
	RunID       string
}

// NewTelemetryOptions derives options from config and the run paths
func NewTelemetryOptions(cfg config.TelemetryConfig, paths *config.Paths, runID string) TelemetryOptions {
	return TelemetryOptions{
		EnableTracing: cfg.Tracing,
		EnableMetrics: cfg.Metrics,
		TracePath:     paths.GetTracePath(),
		MetricsPath:   paths.GetMetricsPath(),
		RunID:         runID,
	}
}

// Telemetry holds the tracing and metrics providers of one pipeline run.
// Everything is flushed to files on Shutdown; nothing is served.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Registry       *prometheus.Registry
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *RunMetrics

	traceFile   *os.File
	metricsPath string
	logger      *slog.Logger
}

// InitializeTelemetry sets up tracing and metrics for a run. Disabled signals
// fall back to no-op providers so callers never branch on configuration.
func InitializeTelemetry(ctx context.Context, opts TelemetryOptions, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = GetLogger()
	}

	res := createResource(opts.RunID)

	t := &Telemetry{
		Tracer:      tracenoop.NewTracerProvider().Tracer(MeterName),
		Meter:       metricnoop.NewMeterProvider().Meter(MeterName),
		metricsPath: opts.MetricsPath,
		logger:      logger,
	}

	if opts.EnableTracing {
		if err := t.initializeTracing(opts.TracePath, res); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if opts.EnableMetrics {
		if err := t.initializeMetrics(res); err != nil {
			t.closeTraceFile()
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	metrics, err := CreateRunMetrics(t.Meter)
	if err != nil {
		t.closeTraceFile()
		return nil, fmt.Errorf("failed to create run metrics: %w", err)
	}
	t.Metrics = metrics

	logger.InfoContext(ctx, "Telemetry initialized",
		slog.Bool("tracing_enabled", opts.EnableTracing),
		slog.Bool("metrics_enabled", opts.EnableMetrics))

	return t, nil
}

// createResource creates the OpenTelemetry resource
func createResource(runID string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(config.AppVersion),
		attribute.String("run.id", runID),
	)
}

func (t *Telemetry) initializeTracing(path string, res *resource.Resource) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(file),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	t.traceFile = file
	t.TracerProvider = tp
	t.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(config.AppVersion))
	return nil
}

func (t *Telemetry) initializeMetrics(res *resource.Resource) error {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	t.Registry = registry
	t.MeterProvider = mp
	t.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(config.AppVersion))
	return nil
}

// Shutdown writes the metrics file and flushes spans. It is safe to call on
// a Telemetry with both signals disabled.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.Registry != nil && t.metricsPath != "" {
		if err := prometheus.WriteToTextfile(t.metricsPath, t.Registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics file: %w", err))
		}
	}

	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if err := t.closeTraceFile(); err != nil {
		errs = append(errs, fmt.Errorf("close trace file: %w", err))
	}

	return errors.Join(errs...)
}

func (t *Telemetry) closeTraceFile() error {
	if t.traceFile == nil {
		return nil
	}
	err := t.traceFile.Close()
	t.traceFile = nil
	return err
}

// RunMetrics holds the instruments recorded during a pipeline run
type RunMetrics struct {
	requestsTotal metric.Int64Counter
	rowsFetched   metric.Int64Counter
	stepDuration  metric.Float64Histogram
	stepErrors    metric.Int64Counter
	sampleSize    metric.Int64Gauge
}

// CreateRunMetrics creates the pipeline instruments on meter
func CreateRunMetrics(meter metric.Meter) (*RunMetrics, error) {
	requestsTotal, err := meter.Int64Counter(
		"source_requests_total",
		metric.WithDescription("Total number of requests sent to the data source"),
	)
	if err != nil {
		return nil, err
	}

	rowsFetched, err := meter.Int64Counter(
		"source_rows_fetched_total",
		metric.WithDescription("Total number of indicator rows received from the data source"),
	)
	if err != nil {
		return nil, err
	}

	stepDuration, err := meter.Float64Histogram(
		"pipeline_step_duration_seconds",
		metric.WithDescription("Pipeline step execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stepErrors, err := meter.Int64Counter(
		"pipeline_step_errors_total",
		metric.WithDescription("Total number of failed pipeline steps"),
	)
	if err != nil {
		return nil, err
	}

	sampleSize, err := meter.Int64Gauge(
		"pipeline_sample_size",
		metric.WithDescription("Number of rows or groups retained at each pipeline stage"),
	)
	if err != nil {
		return nil, err
	}

	return &RunMetrics{
		requestsTotal: requestsTotal,
		rowsFetched:   rowsFetched,
		stepDuration:  stepDuration,
		stepErrors:    stepErrors,
		sampleSize:    sampleSize,
	}, nil
}

// RecordRequest counts one source request by indicator and HTTP status
func (m *RunMetrics) RecordRequest(ctx context.Context, indicator string, status int) {
	if m == nil {
		return
	}
	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("indicator", indicator),
		attribute.Int("status", status),
	))
}

// RecordRowsFetched counts rows received for an indicator
func (m *RunMetrics) RecordRowsFetched(ctx context.Context, indicator string, rows int) {
	if m == nil {
		return
	}
	m.rowsFetched.Add(ctx, int64(rows), metric.WithAttributes(
		attribute.String("indicator", indicator),
	))
}

// RecordStep records the duration and outcome of a pipeline step
func (m *RunMetrics) RecordStep(ctx context.Context, stepID string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		m.stepErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("step", stepID)))
	}
	m.stepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("step", stepID),
		attribute.String("status", status),
	))
}

// RecordSample records a sample size such as observations or entities retained
func (m *RunMetrics) RecordSample(ctx context.Context, name string, n int) {
	if m == nil {
		return
	}
	m.sampleSize.Record(ctx, int64(n), metric.WithAttributes(attribute.String("sample", name)))
}

// RecordError records an error on the span in ctx
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes sets attributes on the span in ctx
func SetSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

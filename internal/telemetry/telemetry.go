// Package telemetry instruments coreprobe itself with OpenTelemetry metrics.
package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/coreprobe/internal/errors"
	"codeberg.org/mutker/coreprobe/internal/execution"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type service struct {
	provider *sdkmetric.MeterProvider

	executions metric.Int64Counter
	duration   metric.Float64Histogram
	reports    metric.Int64Counter
}

// New builds a Recorder for cfg. The "none" exporter records into a
// provider without readers.
func New(ctx context.Context, cfg Config) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}

	if cfg.Exporter == ExporterNone {
		return newService(sdkmetric.NewMeterProvider(), cfg.ServiceName)
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, errFactory.Wrap(ErrExporterInit, err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, errFactory.Wrap(ErrResourceInit, err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	return newService(provider, cfg.ServiceName)
}

// NewWithReader builds a Recorder that exposes its metrics to reader.
func NewWithReader(reader sdkmetric.Reader) (Recorder, error) {
	return newService(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), defaultServiceName)
}

func createExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	if cfg.Exporter == ExporterStdout {
		return stdoutmetric.New()
	}

	var opts []otlpmetrichttp.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure())
	}

	return otlpmetrichttp.New(ctx, opts...)
}

func newService(provider *sdkmetric.MeterProvider, name string) (*service, error) {
	errFactory := errors.New()
	meter := provider.Meter(name)

	s := &service{provider: provider}

	var err error
	if s.executions, err = meter.Int64Counter(MetricCommandExecutions,
		metric.WithDescription("External commands run by the probe")); err != nil {
		return nil, errFactory.Wrap(ErrInstrumentsInit, err)
	}
	if s.duration, err = meter.Float64Histogram(MetricCommandDuration,
		metric.WithDescription("Wall time of external commands"),
		metric.WithUnit("ms")); err != nil {
		return nil, errFactory.Wrap(ErrInstrumentsInit, err)
	}
	if s.reports, err = meter.Int64Counter(MetricReportsSent,
		metric.WithDescription("Reports handed to the transport")); err != nil {
		return nil, errFactory.Wrap(ErrInstrumentsInit, err)
	}

	return s, nil
}

func (s *service) CommandExecuted(method execution.Method, _ string, elapsed time.Duration, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("method", method.String()),
		attribute.String("outcome", outcome(err)),
	)

	s.executions.Add(ctx, 1, attrs)
	s.duration.Record(ctx, milliseconds(elapsed), attrs)
}

func (s *service) ReportSent(ctx context.Context, err error) {
	s.reports.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
}

func (s *service) Shutdown(ctx context.Context) error {
	if err := s.provider.Shutdown(ctx); err != nil {
		return errors.New().Wrap(ErrServiceShutdown, err)
	}

	return nil
}

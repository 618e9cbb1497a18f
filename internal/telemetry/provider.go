// Package telemetry wires the OpenTelemetry SDK for the command line tools.
// Metrics and spans are written to a stream as JSON by the stdout exporters.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds OpenTelemetry configuration
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Revision is the VCS revision of the build, recorded on the resource
	// when set.
	Revision string

	// Writer receives exported telemetry. Defaults to stderr.
	Writer io.Writer

	// Interval between metric exports. Metrics are always flushed on
	// Shutdown.
	Interval time.Duration

	EnableTraces  bool
	EnableMetrics bool
	Logger        *zap.Logger
}

// DefaultConfig returns default telemetry configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Writer:         os.Stderr,
		Interval:       30 * time.Second,
		EnableTraces:   true,
		EnableMetrics:  true,
	}
}

// Provider holds the SDK providers.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	logger         *zap.Logger
}

// NewProvider creates the providers and installs them as the otel globals.
func NewProvider(ctx context.Context, config *Config) (*Provider, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Writer == nil {
		config.Writer = os.Stderr
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(config.ServiceName),
		semconv.ServiceVersionKey.String(config.ServiceVersion),
		attribute.String("kcall.component", config.ServiceName),
	}
	if config.Revision != "" {
		attrs = append(attrs, attribute.String("kcall.revision", config.Revision))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithProcessPID(),
		resource.WithHost(),
		resource.WithOS(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Provider{
		config: config,
		logger: config.Logger,
	}

	if config.EnableTraces {
		if err := p.initTracing(res); err != nil {
			return nil, fmt.Errorf("failed to init tracing: %w", err)
		}
		otel.SetTracerProvider(p.tracerProvider)
	}

	if config.EnableMetrics {
		if err := p.initMetrics(res); err != nil {
			return nil, fmt.Errorf("failed to init metrics: %w", err)
		}
		otel.SetMeterProvider(p.meterProvider)
	}

	return p, nil
}

func (p *Provider) initTracing(res *resource.Resource) error {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(p.config.Writer))
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	return nil
}

func (p *Provider) initMetrics(res *resource.Resource) error {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(p.config.Writer))
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	interval := p.config.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	return nil
}

// MeterProvider returns the meter provider, or the global one when metrics
// are disabled.
func (p *Provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return p.meterProvider
}

// TracerProvider returns the tracer provider, or the global one when traces
// are disabled.
func (p *Provider) TracerProvider() trace.TracerProvider {
	if p.tracerProvider == nil {
		return otel.GetTracerProvider()
	}
	return p.tracerProvider
}

// Shutdown flushes and stops all providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error

	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}

	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		p.logger.Warn("Telemetry shutdown incomplete", zap.Error(err))
		return err
	}
	return nil
}

package syscallprog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Metric names exported by programs.
const (
	MetricInvocations      = "kcall_syscall_invocations_total"
	MetricInvocationErrors = "kcall_syscall_invocation_errors_total"
	MetricLoads            = "kcall_syscall_loads_total"
	MetricLoadErrors       = "kcall_syscall_load_errors_total"
	MetricDuration         = "kcall_syscall_invocation_duration_ms"
	MetricBufferSize       = "kcall_syscall_buffer_size_bytes"
)

type metrics struct {
	invocations      metric.Int64Counter
	invocationErrors metric.Int64Counter
	loads            metric.Int64Counter
	loadErrors       metric.Int64Counter
	duration         metric.Float64Histogram
	bufferSize       metric.Int64Histogram
}

// newMetrics creates the instruments. Instruments that fail to register are
// left nil and skipped when recording.
func newMetrics(meter metric.Meter, logger *zap.Logger) *metrics {
	m := &metrics{}
	var err error

	m.invocations, err = meter.Int64Counter(
		MetricInvocations,
		metric.WithDescription("Total syscall program invocations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		logger.Debug("Failed to create invocations counter", zap.Error(err))
		m.invocations = nil
	}

	m.invocationErrors, err = meter.Int64Counter(
		MetricInvocationErrors,
		metric.WithDescription("Total failed syscall program invocations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		logger.Debug("Failed to create invocation errors counter", zap.Error(err))
		m.invocationErrors = nil
	}

	m.loads, err = meter.Int64Counter(
		MetricLoads,
		metric.WithDescription("Total syscall programs loaded"),
		metric.WithUnit("1"),
	)
	if err != nil {
		logger.Debug("Failed to create loads counter", zap.Error(err))
		m.loads = nil
	}

	m.loadErrors, err = meter.Int64Counter(
		MetricLoadErrors,
		metric.WithDescription("Total syscall programs rejected at load"),
		metric.WithUnit("1"),
	)
	if err != nil {
		logger.Debug("Failed to create load errors counter", zap.Error(err))
		m.loadErrors = nil
	}

	m.duration, err = meter.Float64Histogram(
		MetricDuration,
		metric.WithDescription("Wall time of the BPF_PROG_TEST_RUN call"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		logger.Debug("Failed to create duration histogram", zap.Error(err))
		m.duration = nil
	}

	m.bufferSize, err = meter.Int64Histogram(
		MetricBufferSize,
		metric.WithDescription("Size of the context buffer passed to the program"),
		metric.WithUnit("By"),
	)
	if err != nil {
		logger.Debug("Failed to create buffer size histogram", zap.Error(err))
		m.bufferSize = nil
	}

	return m
}

func (m *metrics) recordLoad(ctx context.Context, program string, err error) {
	attrs := metric.WithAttributes(attribute.String("program", program))
	if err != nil {
		if m.loadErrors != nil {
			m.loadErrors.Add(ctx, 1, attrs)
		}
		return
	}
	if m.loads != nil {
		m.loads.Add(ctx, 1, attrs)
	}
}

func (m *metrics) recordInvoke(ctx context.Context, program string, size int, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("program", program))

	if m.invocations != nil {
		m.invocations.Add(ctx, 1, attrs)
	}
	if err != nil && m.invocationErrors != nil {
		m.invocationErrors.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Nanoseconds())/1e6, attrs)
	}
	if m.bufferSize != nil {
		m.bufferSize.Record(ctx, int64(size), attrs)
	}
}

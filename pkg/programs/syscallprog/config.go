package syscallprog

import (
	"fmt"

	"github.com/cilium/ebpf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/yairfalse/kcall/pkg/programs/syscallprog"

// Config controls how programs are loaded.
type Config struct {
	// VerifierLogLevel is passed to the kernel on load. Zero only collects
	// the log when loading fails.
	VerifierLogLevel ebpf.LogLevel `mapstructure:"verifier_log_level"`

	// DisableVerifierLog skips the verifier log entirely.
	DisableVerifierLog bool `mapstructure:"disable_verifier_log"`

	// RemoveMemlock lifts RLIMIT_MEMLOCK before loading, needed on kernels
	// without memcg based accounting.
	RemoveMemlock bool `mapstructure:"remove_memlock"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		RemoveMemlock: true,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	known := ebpf.LogLevelInstruction | ebpf.LogLevelBranch | ebpf.LogLevelStats
	if c.VerifierLogLevel&^known != 0 {
		return fmt.Errorf("unknown verifier log level bits: %#x", uint32(c.VerifierLogLevel&^known))
	}
	if c.DisableVerifierLog && c.VerifierLogLevel != 0 {
		return fmt.Errorf("verifier log level %d set while the verifier log is disabled", c.VerifierLogLevel)
	}
	return nil
}

func (c Config) programOptions() ebpf.ProgramOptions {
	return ebpf.ProgramOptions{
		LogLevel:    c.VerifierLogLevel,
		LogDisabled: c.DisableVerifierLog,
	}
}

// Option configures a Program.
type Option func(*options)

type options struct {
	config         Config
	logger         *zap.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func defaultOptions() options {
	return options{
		config:         DefaultConfig(),
		logger:         zap.NewNop(),
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
}

// WithConfig replaces the load configuration.
func WithConfig(config Config) Option {
	return func(o *options) {
		o.config = config
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = zap.NewNop()
		}
		o.logger = logger
	}
}

// WithMeterProvider sets the meter provider used for invocation metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// WithTracerProvider sets the tracer provider used for invocation spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

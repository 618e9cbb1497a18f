package syscallprog

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yairfalse/kcall/internal/bpfsys"
	"github.com/yairfalse/kcall/pkg/programs"
)

var errNilContext = errors.New("context value is nil")

// InvokeUnchecked runs the program once with v as its context.
//
// The memory of *v is handed to the kernel as is: the kernel copies
// unsafe.Sizeof(*v) bytes in, runs the program and copies them back, so
// changes made by the program are visible in *v when InvokeUnchecked returns.
//
// T must be plain data: no pointers, slices, strings, maps, channels, funcs
// or interfaces, at any depth. Addresses inside T mean nothing in the kernel
// and are not checked; violating this is undefined behaviour of the program,
// not an error.
//
// The call blocks until the program returns. ctx only carries trace context;
// an invocation cannot be cancelled once issued.
func InvokeUnchecked[T any](ctx context.Context, p *Program, v *T) (int64, error) {
	if v == nil {
		return 0, programs.InvocationError{Program: p.Name(), Cause: errNilContext}
	}

	ret, err := p.InvokeBytes(ctx, bpfsys.Bytes(v))
	runtime.KeepAlive(v)
	return ret, err
}

// InvokeBytes runs the program once with buf as its context. The kernel
// writes the final context back into buf.
//
// It returns the program's return value, programs.ErrNotLoaded if the program
// has no descriptor, or a programs.InvocationError if the syscall failed.
func (p *Program) InvokeBytes(ctx context.Context, buf []byte) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := p.tracer.Start(ctx, "syscallprog.Invoke",
		trace.WithAttributes(
			attribute.String("program", p.name),
			attribute.Int("buffer.size", len(buf)),
		),
	)
	defer span.End()

	start := time.Now()
	ret, err := p.run(buf)
	elapsed := time.Since(start)
	p.metrics.recordInvoke(ctx, p.name, len(buf), elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Debug("Syscall program invocation failed",
			zap.Int("buffer_size", len(buf)),
			zap.Error(err))
		return 0, err
	}

	span.SetAttributes(attribute.Int64("result", ret))
	p.logger.Debug("Syscall program invoked",
		zap.Int("buffer_size", len(buf)),
		zap.Int64("result", ret),
		zap.Duration("elapsed", elapsed))
	return ret, nil
}

func (p *Program) run(buf []byte) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.prog == nil {
		return 0, programs.ErrNotLoaded
	}

	attr, err := bpfsys.SyscallRunAttr(p.prog.FD(), buf)
	if err != nil {
		return 0, programs.InvocationError{Program: p.name, Cause: err}
	}
	if err := bpfsys.ProgRun(attr); err != nil {
		return 0, programs.InvocationError{Program: p.name, Cause: err}
	}
	runtime.KeepAlive(buf)

	return attr.Result(), nil
}

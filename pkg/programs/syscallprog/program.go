package syscallprog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/rlimit"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yairfalse/kcall/internal/bpfsys"
	"github.com/yairfalse/kcall/pkg/programs"
)

// Program is a handle to a syscall program.
//
// A Program starts unloaded. Load registers it with the kernel; from then on
// it can be invoked any number of times until Close releases the descriptor.
// Invocations may run concurrently with each other but never with Load or
// Close.
type Program struct {
	name string
	spec *ebpf.ProgramSpec

	mu    sync.RWMutex
	prog  *ebpf.Program
	links *programs.LinkMap[LinkID, Link]

	config  Config
	logger  *zap.Logger
	metrics *metrics
	tracer  trace.Tracer
}

// New creates an unloaded program from spec. The spec is copied.
func New(spec *ebpf.ProgramSpec, opts ...Option) (*Program, error) {
	if spec == nil {
		return nil, errors.New("program spec is nil")
	}
	if spec.Name == "" {
		return nil, errors.New("program spec has no name")
	}
	if spec.Type != ebpf.Syscall && spec.Type != ebpf.UnspecifiedProgram {
		return nil, fmt.Errorf("program %s has type %s, want %s", spec.Name, spec.Type, ebpf.Syscall)
	}

	return newProgram(spec.Name, spec.Copy(), opts)
}

// FromCollectionSpec creates an unloaded program from the named program of
// an ELF collection, usually obtained from ebpf.LoadCollectionSpec or a
// bpf2go generated loader.
func FromCollectionSpec(cs *ebpf.CollectionSpec, name string, opts ...Option) (*Program, error) {
	if cs == nil {
		return nil, errors.New("collection spec is nil")
	}
	spec, ok := cs.Programs[name]
	if !ok {
		return nil, fmt.Errorf("program %s not found in collection", name)
	}
	return New(spec, opts...)
}

// FromPinned opens a syscall program pinned to bpffs. The returned program
// is already loaded.
func FromPinned(path string, opts ...Option) (*Program, error) {
	prog, err := ebpf.LoadPinnedProgram(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load pinned program %s: %w", path, err)
	}
	if prog.Type() != ebpf.Syscall {
		prog.Close()
		return nil, fmt.Errorf("pinned program %s has type %s, want %s", path, prog.Type(), ebpf.Syscall)
	}

	name := filepath.Base(path)
	if info, err := prog.Info(); err == nil && info.Name != "" {
		name = info.Name
	}

	p, err := newProgram(name, nil, opts)
	if err != nil {
		prog.Close()
		return nil, err
	}
	p.prog = prog
	return p, nil
}

func newProgram(name string, spec *ebpf.ProgramSpec, opts []Option) (*Program, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Program{
		name:    name,
		spec:    spec,
		links:   programs.NewLinkMap[LinkID, Link](),
		config:  o.config,
		logger:  o.logger.With(zap.String("program", name)),
		metrics: newMetrics(o.meterProvider.Meter(instrumentationName), o.logger),
		tracer:  o.tracerProvider.Tracer(instrumentationName),
	}, nil
}

// Name returns the program name.
func (p *Program) Name() string {
	return p.name
}

// Loaded reports whether the program currently holds a kernel descriptor.
func (p *Program) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prog != nil
}

// Load registers the program with the kernel as BPF_PROG_TYPE_SYSCALL.
//
// A program the kernel rejects yields a programs.LoadError and stays
// unloaded. Loading a loaded program returns programs.ErrAlreadyLoaded.
func (p *Program) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.prog != nil {
		return programs.ErrAlreadyLoaded
	}
	if p.spec == nil {
		return fmt.Errorf("program %s has no spec to load from", p.name)
	}

	if p.config.RemoveMemlock {
		if err := rlimit.RemoveMemlock(); err != nil {
			p.logger.Warn("Failed to remove memlock limit", zap.Error(err))
		}
	}

	spec := p.spec.Copy()
	spec.Type = ebpf.Syscall
	spec.Flags |= bpfsys.ProgFlagSleepable

	prog, err := ebpf.NewProgramWithOptions(spec, p.config.programOptions())
	p.metrics.recordLoad(context.Background(), p.name, err)
	if err != nil {
		var ve *ebpf.VerifierError
		if errors.As(err, &ve) {
			p.logger.Error("eBPF verifier error", zap.String("details", fmt.Sprintf("%+v", ve)))
		}
		return programs.LoadError{
			Program: p.name,
			Type:    ebpf.Syscall.String(),
			Cause:   err,
		}
	}

	p.prog = prog
	p.logger.Info("Syscall program loaded", zap.Int("fd", prog.FD()))
	return nil
}

// FD returns the program descriptor.
func (p *Program) FD() (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.prog == nil {
		return -1, programs.ErrNotLoaded
	}
	return p.prog.FD(), nil
}

// Info returns kernel side information about the loaded program.
func (p *Program) Info() (*ebpf.ProgramInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.prog == nil {
		return nil, programs.ErrNotLoaded
	}
	return p.prog.Info()
}

// Pin persists the loaded program to bpffs so FromPinned can open it later.
func (p *Program) Pin(path string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.prog == nil {
		return programs.ErrNotLoaded
	}
	if err := p.prog.Pin(path); err != nil {
		return fmt.Errorf("failed to pin program %s to %s: %w", p.name, path, err)
	}
	return nil
}

// Attach records the program as attached. The kernel is not involved:
// loading already made the program invokable.
func (p *Program) Attach() (LinkID, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.prog == nil {
		return LinkID{}, programs.ErrNotLoaded
	}
	return p.links.Insert(Link{})
}

// Detach removes the attachment with the given id.
func (p *Program) Detach(id LinkID) error {
	return p.links.Remove(id)
}

// Close detaches all links and releases the program descriptor. The
// program returns to the unloaded state.
func (p *Program) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if err := p.links.RemoveAll(); err != nil {
		errs = append(errs, err)
	}

	if p.prog != nil {
		if err := p.prog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close program %s: %w", p.name, err))
		}
		p.prog = nil
		p.logger.Debug("Syscall program closed")
	}

	return errors.Join(errs...)
}

package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/cilium/ebpf"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yairfalse/kcall/internal/layout"
	"github.com/yairfalse/kcall/pkg/programs/syscallprog"
)

// programFlags select the program a command operates on: either a program
// in an ELF object given as arguments, or a pinned program.
type programFlags struct {
	pinned string
}

func (f *programFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.pinned, "from-pin", "", "use the program pinned at this bpffs path instead of an object file")
}

func (f *programFlags) args(cmd *cobra.Command, args []string) error {
	if f.pinned != "" {
		if len(args) != 0 {
			return errors.New("object and program arguments cannot be combined with --from-pin")
		}
		return nil
	}
	if len(args) != 2 {
		return fmt.Errorf("accepts <object> <program>, received %d arg(s)", len(args))
	}
	return nil
}

// bufferFlags describe the invocation buffer.
type bufferFlags struct {
	fields     []string
	fieldsFile string
	hex        string
}

func (f *bufferFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.fields, "field", "f", nil, "buffer field as [name:]type=value, repeatable (e.g. value:i32=21)")
	cmd.Flags().StringVar(&f.fieldsFile, "fields", "", "YAML file describing the buffer fields")
	cmd.Flags().StringVar(&f.hex, "hex", "", "raw buffer as hex bytes")
}

// build returns the initial buffer and, unless it was given as raw bytes,
// the layout to decode it with.
func (f *bufferFlags) build() ([]byte, *layout.Layout, error) {
	if f.hex != "" {
		if len(f.fields) > 0 || f.fieldsFile != "" {
			return nil, nil, errors.New("--hex cannot be combined with --field or --fields")
		}
		buf, err := hex.DecodeString(strings.NewReplacer(" ", "", "0x", "").Replace(f.hex))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --hex buffer: %w", err)
		}
		return buf, nil, nil
	}

	var fields []layout.Field
	if f.fieldsFile != "" {
		loaded, err := layout.LoadFile(f.fieldsFile)
		if err != nil {
			return nil, nil, err
		}
		fields = append(fields, loaded...)
	}
	for _, s := range f.fields {
		field, err := layout.ParseField(s)
		if err != nil {
			return nil, nil, err
		}
		fields = append(fields, field)
	}
	if len(fields) == 0 {
		return nil, nil, errors.New("no buffer given: use --field, --fields or --hex")
	}

	l, err := layout.New(fields)
	if err != nil {
		return nil, nil, err
	}
	buf, err := l.Encode()
	if err != nil {
		return nil, nil, err
	}
	return buf, l, nil
}

func (a *app) programOptions() ([]syscallprog.Option, error) {
	cfg := syscallprog.DefaultConfig()
	if err := a.v.UnmarshalKey("program", &cfg); err != nil {
		return nil, fmt.Errorf("invalid program configuration: %w", err)
	}

	opts := []syscallprog.Option{
		syscallprog.WithConfig(cfg),
		syscallprog.WithLogger(a.logger),
	}
	if a.telemetry != nil {
		opts = append(opts,
			syscallprog.WithMeterProvider(a.telemetry.MeterProvider()),
			syscallprog.WithTracerProvider(a.telemetry.TracerProvider()))
	}
	return opts, nil
}

// openProgram returns a loaded program. The caller must close it.
func (a *app) openProgram(f *programFlags, args []string) (*syscallprog.Program, error) {
	opts, err := a.programOptions()
	if err != nil {
		return nil, err
	}

	if f.pinned != "" {
		return syscallprog.FromPinned(f.pinned, opts...)
	}

	object, name := args[0], args[1]
	spec, err := ebpf.LoadCollectionSpec(object)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection spec %s: %w", object, err)
	}

	prog, err := syscallprog.FromCollectionSpec(spec, name, opts...)
	if err != nil {
		return nil, err
	}
	if err := prog.Load(); err != nil {
		prog.Close()
		return nil, err
	}

	a.logger.Debug("Program ready", zap.String("object", object), zap.String("program", name))
	return prog, nil
}

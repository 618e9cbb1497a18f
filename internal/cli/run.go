package cli

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yairfalse/kcall/internal/layout"
)

type runResult struct {
	Program string         `json:"program"`
	Retval  int64          `json:"retval"`
	Buffer  string         `json:"buffer"`
	Fields  []layout.Value `json:"fields,omitempty"`
}

func (a *app) runCmd() *cobra.Command {
	var (
		prog   programFlags
		buffer bufferFlags
		pin    string
	)

	cmd := &cobra.Command{
		Use:   "run <object> <program>",
		Short: "Load a syscall program and invoke it once",
		Long: `Load a syscall program and invoke it once.

The buffer is built from the given fields, handed to the program as its
context and printed again after the kernel copied it back.`,
		Example: `  # Double a 32-bit value
  kcall run doubler.o mySyscall --field value:i32=21

  # Describe the buffer in a file and print JSON
  kcall run doubler.o mySyscall --fields data.yaml -o json

  # Pin after loading, then reuse the pinned program
  kcall run doubler.o mySyscall --field i32=1 --pin /sys/fs/bpf/doubler
  kcall run --from-pin /sys/fs/bpf/doubler --hex 15000000`,
		Args: prog.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, l, err := buffer.build()
			if err != nil {
				return err
			}

			p, err := a.openProgram(&prog, args)
			if err != nil {
				return err
			}
			defer p.Close()

			if pin != "" {
				if err := p.Pin(pin); err != nil {
					return err
				}
				a.logger.Info("Program pinned", zap.String("path", pin))
			}

			ret, err := p.InvokeBytes(cmd.Context(), buf)
			if err != nil {
				return err
			}

			res := runResult{
				Program: p.Name(),
				Retval:  ret,
				Buffer:  hex.EncodeToString(buf),
			}
			if l != nil {
				if res.Fields, err = l.Decode(buf); err != nil {
					return err
				}
			}

			return a.write(cmd.OutOrStdout(), res, func(w io.Writer) {
				printRunResult(w, res)
			})
		},
	}

	prog.register(cmd)
	buffer.register(cmd)
	cmd.Flags().StringVar(&pin, "pin", "", "pin the loaded program to this bpffs path")
	return cmd
}

func printRunResult(w io.Writer, res runResult) {
	fmt.Fprintf(w, "program: %s\n", res.Program)
	fmt.Fprintf(w, "retval:  %d\n", res.Retval)
	for _, f := range res.Fields {
		fmt.Fprintf(w, "  %s (%s) = %v\n", f.Name, f.Kind, f.Value)
	}
	fmt.Fprintf(w, "buffer:  %s\n", res.Buffer)
}

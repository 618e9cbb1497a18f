package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/yairfalse/kcall/pkg/programs/syscallprog"
)

type probeResult struct {
	Platform  string `json:"platform"`
	Supported bool   `json:"supported"`
	Reason    string `json:"reason,omitempty"`
}

func (a *app) probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check whether the kernel supports syscall programs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := probeResult{Platform: runtime.GOOS + "/" + runtime.GOARCH, Supported: true}
			err := syscallprog.Supported()
			if err != nil {
				res.Supported = false
				res.Reason = err.Error()
			}

			if werr := a.write(cmd.OutOrStdout(), res, func(w io.Writer) {
				if res.Supported {
					fmt.Fprintf(w, "syscall programs: supported (%s)\n", res.Platform)
				} else {
					fmt.Fprintf(w, "syscall programs: not supported (%s): %s\n", res.Platform, res.Reason)
				}
			}); werr != nil {
				return werr
			}
			return err
		},
	}
}

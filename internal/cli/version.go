package cli

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version overrides the module version, e.g. -ldflags "-X ...cli.version=v1.2.0".
var version string

type buildInfo struct {
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	Time      string `json:"time"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

// currentBuild reads the version stamped by the Go toolchain.
func currentBuild() buildInfo {
	b := buildInfo{
		Version:   "dev",
		Revision:  "unknown",
		Time:      "unknown",
		GoVersion: runtime.Version(),
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			b.Version = v
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				b.Revision = s.Value
			case "vcs.time":
				b.Time = s.Value
			case "vcs.modified":
				b.Modified = s.Value == "true"
			}
		}
	}

	if version != "" {
		b.Version = version
	}
	return b
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show kcall version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := currentBuild()
			return a.write(cmd.OutOrStdout(), b, func(w io.Writer) {
				revision := b.Revision
				if b.Modified {
					revision += "-dirty"
				}
				fmt.Fprintf(w, "kcall %s (%s, built %s, %s)\n", b.Version, revision, b.Time, b.GoVersion)
			})
		},
	}
}

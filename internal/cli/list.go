package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/cilium/ebpf"
	"github.com/spf13/cobra"

	"github.com/yairfalse/kcall/internal/entrygen"
)

type listEntry struct {
	Name         string `json:"name"`
	Section      string `json:"section"`
	Type         string `json:"type"`
	Instructions int    `json:"instructions"`
}

func (a *app) listCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list <object>",
		Short: "List the syscall programs of an ELF object",
		Example: `  # Programs in the syscall section
  kcall list doubler.o

  # Every program, whatever its type
  kcall list --all doubler.o`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := ebpf.LoadCollectionSpec(args[0])
			if err != nil {
				return fmt.Errorf("failed to load collection spec %s: %w", args[0], err)
			}

			entries := listPrograms(spec, all)
			return a.write(cmd.OutOrStdout(), entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintln(w, "no syscall programs found")
					return
				}
				for _, e := range entries {
					fmt.Fprintf(w, "%-24s %-16s %-12s %d insns\n", e.Name, e.Section, e.Type, e.Instructions)
				}
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "list programs of every type")
	return cmd
}

func listPrograms(spec *ebpf.CollectionSpec, all bool) []listEntry {
	entries := []listEntry{}
	for name, p := range spec.Programs {
		if !all && !isSyscallProgram(p) {
			continue
		}
		entries = append(entries, listEntry{
			Name:         name,
			Section:      p.SectionName,
			Type:         p.Type.String(),
			Instructions: len(p.Instructions),
		})
	}
	slices.SortFunc(entries, func(x, y listEntry) int {
		return strings.Compare(x.Name, y.Name)
	})
	return entries
}

func isSyscallProgram(p *ebpf.ProgramSpec) bool {
	return p.Type == ebpf.Syscall || p.SectionName == entrygen.Section
}

// Command kcall-gen generates the entry points of syscall programs written
// in Go. It is meant to run from go:generate:
//
//	//go:generate go run github.com/yairfalse/kcall/cmd/kcall-gen prog.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yairfalse/kcall/internal/entrygen"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "kcall-gen: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		config   entrygen.Config
		manifest string
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "kcall-gen [flags] files...",
		Short: "Generate syscall program entry points",
		Long: `kcall-gen scans Go source files for functions marked with

	//kcall:syscall

and writes an entry point for each of them to <file>_entry.go. Marked
functions take a syscallctx.Context and return int64.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logConfig := zap.NewProductionConfig()
			if verbose {
				logConfig = zap.NewDevelopmentConfig()
			}
			logConfig.OutputPaths = []string{"stderr"}
			logger, err := logConfig.Build()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logger.Sync()

			results, err := entrygen.NewGenerator(config, logger).Run(args)
			if err != nil {
				return err
			}

			if config.DryRun {
				for _, res := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "// %s\n%s\n", res.Output, res.Code)
				}
			}

			if manifest != "" {
				if err := entrygen.WriteManifest(manifest, entrygen.NewManifest(results)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&config.OutputDir, "output-dir", "", "directory for generated files (default: next to each source); the files must be compiled together with their sources as one package")
	cmd.Flags().StringVar(&manifest, "manifest", "", "write a YAML manifest of generated entry points to this path")
	cmd.Flags().BoolVar(&config.DryRun, "dry-run", false, "print generated code instead of writing it")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	return cmd
}

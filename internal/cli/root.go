// Package cli implements the kcall command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/yairfalse/kcall/internal/telemetry"
)

// app carries state shared by all subcommands of one invocation.
type app struct {
	cfgFile string
	v       *viper.Viper

	logger    *zap.Logger
	telemetry *telemetry.Provider
}

// Execute runs the root command
func Execute() error {
	a := &app{v: viper.New()}
	cmd := a.rootCmd()
	defer a.close()
	return cmd.ExecuteContext(context.Background())
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kcall",
		Short: "Load and invoke BPF syscall programs",
		Long: `kcall loads BPF_PROG_TYPE_SYSCALL programs from ELF objects and runs them
synchronously through BPF_PROG_TEST_RUN.

The invocation buffer is built from typed fields, passed to the program as its
context, and decoded again once the kernel copies it back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initConfig(cmd.ErrOrStderr()); err != nil {
				return err
			}
			return a.setup(cmd.Context(), cmd.ErrOrStderr())
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.kcall.yaml)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("telemetry", false, "export metrics and spans to stderr")
	flags.StringP("output", "o", "text", "output format (text, json)")

	// Bind flags to viper
	a.v.BindPFlag("verbose", flags.Lookup("verbose"))
	a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	a.v.BindPFlag("telemetry", flags.Lookup("telemetry"))
	a.v.BindPFlag("output", flags.Lookup("output"))

	// Add subcommands
	cmd.AddCommand(a.probeCmd())
	cmd.AddCommand(a.listCmd())
	cmd.AddCommand(a.runCmd())
	cmd.AddCommand(a.benchCmd())
	cmd.AddCommand(a.versionCmd())

	return cmd
}

func (a *app) initConfig(stderr io.Writer) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error getting home directory: %w", err)
		}

		a.v.AddConfigPath(home)
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".kcall")
	}

	a.v.SetEnvPrefix("KCALL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && a.cfgFile != "" {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		return nil
	}
	if a.v.GetBool("verbose") {
		fmt.Fprintf(stderr, "Using config file: %s\n", a.v.ConfigFileUsed())
	}
	return nil
}

func (a *app) setup(ctx context.Context, stderr io.Writer) error {
	logger, err := newLogger(a.v.GetString("log_level"), a.v.GetBool("verbose"))
	if err != nil {
		return err
	}
	a.logger = logger

	if a.v.GetBool("telemetry") {
		cfg := telemetry.DefaultConfig("kcall")
		build := currentBuild()
		cfg.ServiceVersion = build.Version
		cfg.Revision = build.Revision
		cfg.Writer = stderr
		cfg.Logger = logger
		provider, err := telemetry.NewProvider(ctx, cfg)
		if err != nil {
			return err
		}
		a.telemetry = provider
	}
	return nil
}

func (a *app) close() {
	if a.telemetry != nil {
		a.telemetry.Shutdown(context.Background())
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	if verbose || level == "debug" {
		logConfig = zap.NewDevelopmentConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if verbose {
		lvl = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logConfig.Level = lvl

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

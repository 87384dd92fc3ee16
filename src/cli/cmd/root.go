package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sofmeright/buildmatrix/src/config"
	"github.com/sofmeright/buildmatrix/src/logging"
	"github.com/sofmeright/buildmatrix/src/resolve"
)

// App carries what a command invocation needs from its surroundings.
type App struct {
	Stdout     io.Writer
	Stderr     io.Writer
	Environ    resolve.Map    // process environment snapshot
	NewBuilder BuilderFactory // nil means DockerBuilder
}

// session is the per-invocation state shared by subcommands.
type session struct {
	app *App

	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string

	cfg *config.Config
	log *logrus.Logger
}

// Execute runs the CLI against the real process environment. SIGINT and
// SIGTERM cancel the run.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Environ: resolve.Env(),
	}
	err := app.Run(ctx, os.Args[1:])
	if err != nil {
		var ee *ExitError
		if !errors.As(err, &ee) || ee.Err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return err
}

// Run executes one command line.
func (a *App) Run(ctx context.Context, args []string) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *App) *cobra.Command {
	s := &session{app: a}

	root := &cobra.Command{
		Use:   "buildmatrix",
		Short: "Build every image of a compose build manifest",
		Long: `buildmatrix reads a compose-style build manifest, resolves each
service's image reference, and builds the services with docker buildx,
several at a time.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// version needs no config
			if cmd.Name() == "version" {
				return nil
			}
			return s.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&s.cfgFile, "config", "", "config file (default: .buildmatrix.yml)")
	root.PersistentFlags().BoolVarP(&s.verbose, "verbose", "v", false, "verbose output, debug logging and builder output on stderr")
	root.PersistentFlags().StringVar(&s.logLevel, "log-level", "", "log level: debug, info, warn, error (default from config, else info)")
	root.PersistentFlags().StringVar(&s.logFormat, "log-format", "", "log format: text or json (default from config, else text)")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	root.AddCommand(newBuildCmd(s), newValidateCmd(s), newVersionCmd())
	return root
}

// setup loads config and the logger. Flag values override config.
func (s *session) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(s.cfgFile)
	if err != nil {
		return usageError(fmt.Errorf("loading config: %w", err))
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = s.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = s.logFormat
	}
	if s.verbose {
		cfg.Log.Level = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return usageError(err)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, s.app.Stderr)
	if err != nil {
		return usageError(err)
	}
	if cfg.Source != "" {
		log.WithField("config", cfg.Source).Debug("config loaded")
	}

	s.cfg = cfg
	s.log = log
	return nil
}

// maxArgs is cobra.MaximumNArgs with a usage exit code.
func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

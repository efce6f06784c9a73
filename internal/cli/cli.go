// Package cli implements the dagchef command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hammamikhairi/dagchef/internal/config"
	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
)

const appName = "dagchef"

// defaultLogFile keeps logs out of the REPL. "stderr" logs to the console.
const defaultLogFile = ".dagchef/logs/dagchef.log"

// App holds shared state for all commands.
type App struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg   *config.Config
	log   *logger.Logger
	store domain.RecipeStore

	// set by flags
	configPath string
	verbose    bool
	quiet      bool
	logFile    string

	closers []func(context.Context) error
}

// Option configures an App.
type Option func(*App)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
		a.errOut = out
	}
}

// WithConfig skips config file loading.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) { a.cfg = cfg }
}

// WithLogger skips log file setup.
func WithLogger(log *logger.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithStore skips opening the configured store.
func WithStore(store domain.RecipeStore) Option {
	return func(a *App) { a.store = store }
}

// New creates an App that talks to the process's terminal.
func New(opts ...Option) *App {
	a := &App{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Execute builds the command tree and runs it. Resources are released even
// when a command fails.
func Execute(ctx context.Context) error {
	a := New()
	err := a.RootCommand().ExecuteContext(ctx)
	if cerr := a.teardown(context.WithoutCancel(ctx)); err == nil {
		err = cerr
	}
	return err
}

// RootCommand creates the root cobra command with all subcommands registered.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               appName,
		Short:             "dagchef edits and plays recipes shaped as step graphs",
		Long:              `dagchef keeps recipes as directed acyclic graphs of steps. Edit them interactively, export them to Graphviz, and play them with parallel timers.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultPath+")")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose/debug logging")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "disable all logging")
	flags.StringVar(&a.logFile, "log-file", defaultLogFile, `file to write logs to (use "stderr" to log to console)`)

	root.AddCommand(a.listCommand())
	root.AddCommand(a.importCommand())
	root.AddCommand(a.exportCommand())
	root.AddCommand(a.newCommand())
	root.AddCommand(a.deleteCommand())
	root.AddCommand(a.playCommand())
	root.AddCommand(a.editCommand())

	return root
}

// setup loads config, opens the log and connects the store.
func (a *App) setup(cmd *cobra.Command, args []string) error {
	if a.cfg == nil {
		cfg, err := config.Load(a.configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	if a.log == nil {
		level, err := a.cfg.Level()
		if err != nil {
			return err
		}
		if a.verbose {
			level = logger.LevelVerbose
		}
		if a.quiet {
			level = logger.LevelOff
		}
		a.log = logger.New(level, a.openLog())
	}

	if a.store == nil {
		store, closeFn, err := openStore(cmd.Context(), a.cfg.Store, a.log)
		if err != nil {
			return err
		}
		a.store = store
		if closeFn != nil {
			a.closers = append(a.closers, closeFn)
		}
	}
	return nil
}

// openLog returns the log destination, falling back to stderr.
func (a *App) openLog() io.Writer {
	if a.logFile == "" || a.logFile == "stderr" {
		return a.errOut
	}
	if dir := filepath.Dir(a.logFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(a.errOut, "warning: could not create log directory %s: %v (falling back to stderr)\n", dir, err)
			return a.errOut
		}
	}
	f, err := os.OpenFile(a.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(a.errOut, "warning: could not open log file %s: %v (falling back to stderr)\n", a.logFile, err)
		return a.errOut
	}
	a.closers = append(a.closers, func(context.Context) error { return f.Close() })
	return f
}

// teardown closes the store and log in reverse order of opening.
func (a *App) teardown(ctx context.Context) error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

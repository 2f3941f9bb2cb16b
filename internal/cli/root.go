package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dirstore/internal/config"
	"github.com/roach88/dirstore/internal/logging"
	"github.com/roach88/dirstore/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "text" | "json" | "yaml"
	Root        string
	ConfigFile  string
	LogLevel    string
	LockTimeout time.Duration

	// Populated by the root command before any subcommand runs.
	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the dirstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dirstore",
		Short: "dirstore - typed values in a directory",
		Long: `A durable key-value store that keeps each value in its own pair of files.

Values keep their exact shape across a save and load: tuples stay tuples,
sets stay sets, and decimals, dates and times keep their types. Corrupt or
half-written records read as absent.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.Root, "root", "r", config.DefaultRoot, "store directory")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default: dirstore.yaml in the working directory)")
	flags.StringVar(&opts.Format, "format", config.DefaultFormat, "output format (text|json|yaml)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.LogLevel, "log-level", config.DefaultLogLevel, "log level (debug|info|warn|error)")
	flags.DurationVar(&opts.LockTimeout, "lock-timeout", config.DefaultLockTimeout, "how long to wait for a key's lock")

	// Add subcommands
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewExistsCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewPopCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewKeysCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// load merges config sources into opts and builds the logger.
func (opts *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigFile, cmd.Flags())
	if err != nil {
		if f := opts.formatter(cmd); f.Structured() {
			_ = f.Error(ErrCodeConfig, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if !isValidFormat(cfg.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", cfg.Format, ValidFormats))
	}

	opts.Config = cfg
	opts.Root = cfg.Root
	opts.Format = cfg.Format
	opts.Verbose = cfg.Verbose
	opts.LogLevel = cfg.LogLevel
	opts.LockTimeout = cfg.Lock.Timeout

	level := cfg.LogLevel
	if cfg.Verbose && !cmd.Flags().Changed("log-level") {
		level = "debug"
	}
	logger, err := logging.New(cmd.ErrOrStderr(), level, cfg.LogFormat)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	opts.Logger = logger
	return nil
}

// openStore opens the configured store.
func (opts *RootOptions) openStore() (*store.Store, error) {
	cfg := opts.Config
	if cfg == nil {
		// Commands constructed directly in tests skip the root's pre-run.
		cfg = &config.Config{
			Root: opts.Root,
			Lock: config.LockConfig{Timeout: opts.LockTimeout},
		}
	}
	storeOpts := []store.Option{
		store.WithLockTimeout(cfg.Lock.Timeout),
		store.WithLockPollInterval(cfg.Lock.PollInterval),
	}
	if opts.Logger != nil {
		storeOpts = append(storeOpts, store.WithLogger(opts.Logger))
	}
	st, err := store.Open(cfg.Root, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return st, nil
}

// formatter returns an OutputFormatter bound to cmd's writers.
func (opts *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func (opts *RootOptions) logger() *slog.Logger {
	if opts.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return opts.Logger
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

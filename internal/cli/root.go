package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/infinity/internal/config"
	"github.com/roach88/infinity/internal/logging"
	"github.com/roach88/infinity/internal/model"
	"github.com/roach88/infinity/internal/store"
)

// RootOptions holds global flags and the state PersistentPreRunE derives
// from them.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	LogLevel   string
	LogDir     string

	// Config is the merged file, environment and flag configuration.
	Config config.Config
	// Log is nil until PersistentPreRunE has run.
	Log      *zap.SugaredLogger
	closeLog func() error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the infinity CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "infinity",
		Short: "infinity - ledger state projector",
		Long: `Projects committed infinity ledger blocks into a queryable,
block-range versioned SQLite view, repairing forks as they are detected.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closeLog != nil {
				return opts.closeLog()
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warning|error)")
	cmd.PersistentFlags().StringVar(&opts.LogDir, "log-dir", "", "directory for rotated log files")

	// Add subcommands
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewBlocksCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// setup validates flags, loads configuration and builds the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = o.LogLevel
	} else if o.Verbose {
		cfg.Log.Level = "debug"
	}
	if cmd.Flags().Changed("log-dir") {
		cfg.Log.Dir = o.LogDir
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	o.Config = cfg

	logOpts := cfg.LoggingOptions()
	logOpts.Output = cmd.ErrOrStderr()
	logOpts.NoColor = !isTerminalFile(logOpts.Output)
	log, closeLog, err := logging.Setup(logOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "set up logging", err)
	}
	o.Log = log
	o.closeLog = closeLog
	return nil
}

func (o *RootOptions) logger() *zap.SugaredLogger {
	if o.Log == nil {
		return logging.Nop()
	}
	return o.Log
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// dbPath resolves the database from the --db flag, falling back to the
// configured path.
func (o *RootOptions) dbPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if o.Config.DB != "" {
		return o.Config.DB, nil
	}
	return "", NewExitError(ExitCommandError, "no database: pass --db or set db in config or INFINITY_DB")
}

// openStore opens the database for a read-only command.
func (o *RootOptions) openStore(f *OutputFormatter, flag string) (*store.Store, error) {
	path, err := o.dbPath(flag)
	if err != nil {
		return nil, f.Fail(ExitCommandError, CodeConfig, err.Error(), nil, nil)
	}
	f.VerboseLog("opening %s", path)
	st, err := store.Open(path, store.WithLogger(o.logger()))
	if err != nil {
		return nil, f.Fail(ExitCommandError, CodeDatabase, "failed to open database", err, map[string]string{"path": path})
	}
	return st, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func isTerminalFile(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// formatRange renders a block range, showing the open sentinel as "open".
func formatRange(r model.BlockRange) string {
	if r.Open() {
		return fmt.Sprintf("[%d, open)", r.Start)
	}
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// atBlock maps the --at flag to a store block. Negative means current.
func atBlock(at int64) int64 {
	if at < 0 {
		return store.BlockCurrent
	}
	return at
}

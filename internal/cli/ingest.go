package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/infinity/internal/events"
	"github.com/roach88/infinity/internal/projector"
	"github.com/roach88/infinity/internal/store"
)

// Input formats accepted by ingest.
const (
	InputJSONL     = "jsonl"
	InputDelimited = "delimited"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Database    string
	Input       string
	InputFormat string
	StopOnError bool
}

// IngestResult is the outcome of one ingest run.
type IngestResult struct {
	Database string             `json:"database"`
	Stats    projector.RunStats `json:"stats"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Project event batches into the database",
		Long: `Read ledger event batches in delivery order and project them into the
database. Each batch is one committed block; duplicates are ignored and forks
are rolled back.

Input formats:
  jsonl      - one {"events": [...]} object per line, event data base64
  delimited  - varint length-prefixed EventList protobuf messages

Exit codes:
  0 - All batches handled
  1 - One or more batches failed
  2 - Command error (unreadable input, database unavailable, etc.)

Examples:
  infinity ingest --db ./state.db --input blocks.jsonl
  cat stream.bin | infinity ingest --db ./state.db --input - --input-format delimited`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "event batch file, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("input")
	cmd.Flags().StringVar(&opts.InputFormat, "input-format", InputJSONL, "input format (jsonl|delimited)")
	cmd.Flags().BoolVar(&opts.StopOnError, "stop-on-error", false, "stop at the first failed batch")

	return cmd
}

func runIngest(opts *IngestOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := opts.formatter(cmd)
	log := opts.logger()

	path, err := opts.dbPath(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, CodeConfig, err.Error(), nil, nil)
	}

	in, closeInput, err := openInput(cmd, opts.Input)
	if err != nil {
		return f.Fail(ExitCommandError, CodeInput, "failed to open input", err, map[string]string{"input": opts.Input})
	}
	defer closeInput()

	var src events.Source
	switch opts.InputFormat {
	case InputJSONL:
		src = events.NewJSONLSource(in)
	case InputDelimited:
		src = events.NewDelimitedSource(in)
	default:
		return f.Fail(ExitCommandError, CodeInput,
			fmt.Sprintf("invalid input format %q: must be %s or %s", opts.InputFormat, InputJSONL, InputDelimited), nil, nil)
	}

	policy := opts.Config.RetryPolicy()
	if policy.Multiplier == 0 {
		policy = store.DefaultRetryPolicy
	}
	f.VerboseLog("opening %s", path)
	st, err := store.OpenWithRetry(ctx, path, policy, store.WithLogger(log))
	if err != nil {
		return f.Fail(ExitCommandError, CodeDatabase, "failed to open database", err, map[string]string{"path": path})
	}
	defer st.Close()

	stopOnError := opts.StopOnError || opts.Config.StopOnError
	p := projector.New(st,
		projector.WithLogger(log),
		projector.WithNamespace(opts.Config.Namespace),
		projector.WithStopOnError(stopOnError),
	)

	stats, err := p.Run(ctx, src)
	if err != nil {
		if stopOnError && stats.Failed > 0 {
			return f.Fail(ExitFailure, CodeBatch, "batch failed", err, stats)
		}
		return f.Fail(ExitCommandError, CodeInput, "failed to read input", err, stats)
	}

	result := IngestResult{Database: path, Stats: stats}
	if err := f.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "Ingested %d batches into %s\n", stats.Batches, path)
		fmt.Fprintf(w, "  committed:  %d\n", stats.Committed)
		fmt.Fprintf(w, "  duplicates: %d\n", stats.Duplicates)
		fmt.Fprintf(w, "  forks:      %d\n", stats.Forks)
		fmt.Fprintf(w, "  discarded:  %d\n", stats.Discarded)
		fmt.Fprintf(w, "  failed:     %d\n", stats.Failed)
		fmt.Fprintf(w, "  versions applied: %d, changes skipped: %d\n", stats.Applied, stats.Skipped)
	}); err != nil {
		return err
	}

	if stats.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d batches failed", stats.Failed, stats.Batches))
	}
	return nil
}

// openInput returns the reader for path; "-" is stdin.
func openInput(cmd *cobra.Command, path string) (io.Reader, func() error, error) {
	if path == "-" {
		return cmd.InOrStdin(), func() error { return nil }, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}

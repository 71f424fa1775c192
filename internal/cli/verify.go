package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the versioning invariants of the database",
		Long: `Check that no resource has more than one open version, that versions of
a resource never overlap, that every version starts at a known block and that
record owners and locations line up with a record version.

Exit codes:
  0 - No violations
  1 - One or more violations found
  2 - Command error

Examples:
  infinity verify --db ./state.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, err := opts.openStore(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	violations, err := st.CheckInvariants(cmd.Context())
	if err != nil {
		return f.Fail(ExitCommandError, CodeDatabase, "failed to check invariants", err, nil)
	}

	if len(violations) > 0 {
		if f.Format != "json" {
			for _, v := range violations {
				fmt.Fprintln(f.Writer, v)
			}
		}
		return f.Fail(ExitFailure, CodeInvariant, fmt.Sprintf("%d invariant violations", len(violations)), nil, violations)
	}

	return f.Emit(map[string]int{"violations": 0}, func(w io.Writer) {
		fmt.Fprintln(w, "OK: no invariant violations")
	})
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// UserOptions holds flags for the user command.
type UserOptions struct {
	*RootOptions
	Database string
	At       int64
}

// NewUserCommand creates the user command.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "user <public_key>",
		Short: "Show a user as of a block",
		Long: `Show the version of a user valid at a block. Without --at the current
version is shown.

Exit codes:
  0 - User found
  1 - No version of the user is valid at that block

Examples:
  infinity user 02a1b2... --db ./state.db
  infinity user 02a1b2... --db ./state.db --at 120`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUser(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().Int64Var(&opts.At, "at", -1, "block number (default: current)")

	return cmd
}

func runUser(opts *UserOptions, cmd *cobra.Command, publicKey string) error {
	f := opts.formatter(cmd)

	st, err := opts.openStore(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	u, err := st.UserAt(cmd.Context(), publicKey, atBlock(opts.At))
	if err != nil {
		return f.Fail(ExitCommandError, CodeDatabase, "failed to read user", err, nil)
	}
	if u == nil {
		return f.Fail(ExitFailure, CodeNotFound, fmt.Sprintf("user %s not found", publicKey), nil, nil)
	}

	return f.Emit(u, func(w io.Writer) {
		fmt.Fprintf(w, "public_key: %s\n", u.PublicKey)
		fmt.Fprintf(w, "name:       %s\n", u.Name)
		fmt.Fprintf(w, "role:       %s\n", u.Role)
		fmt.Fprintf(w, "timestamp:  %d\n", u.Timestamp)
		fmt.Fprintf(w, "valid:      %s\n", formatRange(u.BlockRange))
	})
}

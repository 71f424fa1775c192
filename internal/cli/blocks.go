package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// BlocksOptions holds flags for the blocks command.
type BlocksOptions struct {
	*RootOptions
	Database string
	Count    int
}

// NewBlocksCommand creates the blocks command.
func NewBlocksCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BlocksOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "List the most recent known blocks",
		Long: `List the newest checkpoints in the database, highest block first.
A resuming subscriber offers these to the ledger to pick up where it left off.

Examples:
  infinity blocks --db ./state.db
  infinity blocks --db ./state.db --count 3 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlocks(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 10, "number of blocks to list")

	return cmd
}

func runBlocks(opts *BlocksOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if opts.Count < 0 {
		return f.Fail(ExitCommandError, CodeInput, fmt.Sprintf("invalid --count %d", opts.Count), nil, nil)
	}

	st, err := opts.openStore(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	blocks, err := st.LastKnownBlocks(cmd.Context(), opts.Count)
	if err != nil {
		return f.Fail(ExitCommandError, CodeDatabase, "failed to read blocks", err, nil)
	}

	return f.Emit(blocks, func(w io.Writer) {
		if len(blocks) == 0 {
			fmt.Fprintln(w, "No blocks found in database.")
			return
		}
		for _, b := range blocks {
			fmt.Fprintf(w, "%d\t%s\n", b.BlockNum, b.BlockID)
		}
	})
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/infinity/internal/store"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Database string
	At       int64
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record [record_id]",
		Short: "Show records as of a block",
		Long: `Show the version of a record valid at a block, including its owner and
location history. Without a record ID every record valid at that block is
listed. Without --at the current versions are shown.

Examples:
  infinity record guitar-42 --db ./state.db
  infinity record --db ./state.db --at 120 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runRecordList(opts, cmd)
			}
			return runRecord(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().Int64Var(&opts.At, "at", -1, "block number (default: current)")

	return cmd
}

func runRecord(opts *RecordOptions, cmd *cobra.Command, recordID string) error {
	f := opts.formatter(cmd)

	st, err := opts.openStore(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	rv, err := st.RecordAt(cmd.Context(), recordID, atBlock(opts.At))
	if err != nil {
		return f.Fail(ExitCommandError, CodeDatabase, "failed to read record", err, nil)
	}
	if rv == nil {
		return f.Fail(ExitFailure, CodeNotFound, fmt.Sprintf("record %s not found", recordID), nil, nil)
	}

	return f.Emit(rv, func(w io.Writer) { writeRecordText(w, *rv) })
}

func runRecordList(opts *RecordOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, err := opts.openStore(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Records(cmd.Context(), atBlock(opts.At))
	if err != nil {
		return f.Fail(ExitCommandError, CodeDatabase, "failed to read records", err, nil)
	}

	return f.Emit(records, func(w io.Writer) {
		if len(records) == 0 {
			fmt.Fprintln(w, "No records found.")
			return
		}
		for _, rv := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\towners=%d locations=%d\n",
				rv.RecordID, rv.Name, formatRange(rv.BlockRange), len(rv.Owners), len(rv.Locations))
		}
	})
}

func writeRecordText(w io.Writer, rv store.RecordVersion) {
	fmt.Fprintf(w, "record_id: %s\n", rv.RecordID)
	fmt.Fprintf(w, "name:      %s\n", rv.Name)
	fmt.Fprintf(w, "price:     %s\n", rv.Price)
	fmt.Fprintf(w, "for_sale:  %t\n", rv.ForSale)
	if rv.ImageURL != "" {
		fmt.Fprintf(w, "image_url: %s\n", rv.ImageURL)
	}
	if rv.Stolen {
		fmt.Fprintln(w, "stolen:    true")
	}
	fmt.Fprintf(w, "valid:     %s\n", formatRange(rv.BlockRange))
	fmt.Fprintf(w, "owners (%d):\n", len(rv.Owners))
	for _, o := range rv.Owners {
		fmt.Fprintf(w, "  %s at %d\n", o.UserID, o.Timestamp)
	}
	fmt.Fprintf(w, "locations (%d):\n", len(rv.Locations))
	for _, l := range rv.Locations {
		fmt.Fprintf(w, "  %d,%d at %d\n", l.Latitude, l.Longitude, l.Timestamp)
	}
}

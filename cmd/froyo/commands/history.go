package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/detyped/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		status  string
		address string
		limit   int
		offset  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journal entries",
		Long: `List the invocations recorded in the journal, oldest first.

The schema is not needed: entries are shown as recorded.`,
		Example: `  # Show everything
  froyo history

  # Show the rejected invocations of one server
  froyo history --status rejected --address "/server[@name='web-01']"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			filter := stores.EntryFilter{
				Status:  stores.EntryStatus(status),
				Address: address,
				Limit:   limit,
				Offset:  offset,
			}
			switch filter.Status {
			case "", stores.EntryStatusApplied, stores.EntryStatusUndone, stores.EntryStatusRejected:
			default:
				return fmt.Errorf("invalid status %q", status)
			}

			journal, err := openJournal(ctx)
			if err != nil {
				return err
			}
			defer journal.Close()

			entries, err := journal.ListEntries(ctx, filter)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(entries)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "SEQ\tSTATUS\tOPERATION\tADDRESS\tCREATED\tDETAIL")
			fmt.Fprintln(w, "---\t------\t---------\t-------\t-------\t------")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					e.Seq, e.Status, e.Operation, e.Address, e.CreatedAt.Format(time.RFC3339), entryDetail(e))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only entries with this status (applied, undone, rejected)")
	cmd.Flags().StringVar(&address, "address", "", "only entries for this address")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")

	return cmd
}

func entryDetail(e *stores.Entry) string {
	switch {
	case e.Error != nil:
		return *e.Error
	case e.UndoneAt != nil:
		return "undone " + e.UndoneAt.Format(time.RFC3339)
	case !e.Reversible():
		return "irreversible"
	default:
		return e.Params
	}
}

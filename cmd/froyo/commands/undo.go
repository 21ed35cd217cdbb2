package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/detyped/pkg/stores"
)

func newUndoCommand() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Undo the newest applied invocations",
		Long: `Apply the recorded compensation of the newest applied journal entry and
mark the entry undone. With --steps, repeat for older entries.

An irreversible entry stops the walk.`,
		Example: `  # Undo the last invocation
  froyo undo

  # Undo the last three
  froyo undo --steps 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if steps < 1 {
				return fmt.Errorf("steps must be at least 1, got %d", steps)
			}

			w, err := openWorkspace(ctx, workspaceOptions{record: true})
			if err != nil {
				return err
			}
			defer w.Close(ctx)

			undone := make([]*stores.Entry, 0, steps)
			for i := 0; i < steps; i++ {
				entry, err := w.engine.Undo(ctx)
				if err != nil {
					if jsonOutput {
						_ = printJSON(undone)
					}
					return err
				}
				undone = append(undone, entry)
				if !jsonOutput {
					successColor.Print("✓ ")
					fmt.Printf("undid %d: %s %s\n", entry.Seq, entry.Operation, entry.Address)
				}
			}
			if jsonOutput {
				return printJSON(undone)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "number of entries to undo")

	return cmd
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	var source invocationSource

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Dry-run invocations against the model",
		Long: `Apply invocations to a replayed copy of the model without recording them.

Every invocation runs through decoding, policies and its handler, so the
report shows exactly which invocations apply would accept. The journal is
only read. Later invocations see the effect of earlier ones.`,
		Example: `  # Check a script before applying it
  froyo plan --script setup.star

  # Check recorded requests in JSON
  froyo plan --invocations requests.jsonl --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			w, err := openWorkspace(ctx, workspaceOptions{replay: true})
			if err != nil {
				return err
			}
			defer w.Close(ctx)

			requests, err := source.load(ctx)
			if err != nil {
				return err
			}

			outcomes, rejected := run(ctx, w.engine, requests, true)
			if jsonOutput {
				if err := printJSON(outcomes); err != nil {
					return err
				}
			} else {
				fmt.Println()
				infoColor.Printf("%d would apply, %d would be rejected\n", len(outcomes)-rejected, rejected)
			}
			if rejected > 0 {
				return fmt.Errorf("%d invocations would be rejected", rejected)
			}
			return nil
		},
	}

	source.addFlags(cmd)

	return cmd
}

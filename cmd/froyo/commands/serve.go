package commands

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/detyped/pkg/protocol"
	"github.com/openfroyo/detyped/pkg/telemetry"
)

func newServeCommand() *cobra.Command {
	var (
		metricsAddress string
		noJournal      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the invocation protocol on stdin and stdout",
		Long: `Replay the journal and answer JSON-lines invocation messages on stdin
until it closes. Logs go to stderr.

Policy files given with --policy are reloaded when they change. Metrics are
served on --metrics when set. Telemetry uses the service profile unless
--telemetry-profile says otherwise.`,
		Example: `  # Serve with metrics
  froyo serve --schema schema.yaml --metrics :9090

  # Serve without recording anything
  froyo serve --no-journal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			opts := workspaceOptions{
				record:         !noJournal,
				watchPolicies:  true,
				metricsAddress: metricsAddress,
				profile:        telemetry.ProfileService,
			}
			w, err := openWorkspace(ctx, opts)
			if err != nil {
				return err
			}
			defer w.Close(context.Background())

			if err := w.telemetry.StartMetricsServer(ctx); err != nil {
				return err
			}

			ready := protocol.ReadyMessage{
				Version:  serviceVersion,
				Handlers: w.engine.Handlers(),
				Metadata: map[string]string{"schema": schemaPath},
			}
			if !noJournal {
				ready.Metadata["journal"] = dbPath
			}
			server := protocol.NewServer(w.engine, ready, log.Logger)
			exit, err := server.Serve(ctx, os.Stdin, os.Stdout)
			if err != nil {
				return err
			}
			log.Info().
				Str("reason", exit.Reason).
				Int("invocations", exit.Invocations).
				Int("rejected", exit.Rejected).
				Msg("Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddress, "metrics", "", "metrics listen address, e.g. :9090")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "do not open or record the journal")

	return cmd
}

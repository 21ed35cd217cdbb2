// Package main implements the model-runner binary: a self-contained host
// that loads one schema document and answers management invocations over
// JSON-lines on stdin and stdout. It keeps no journal; the tree lives only
// as long as the process.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/detyped/pkg/config"
	"github.com/openfroyo/detyped/pkg/engine"
	"github.com/openfroyo/detyped/pkg/policy"
	"github.com/openfroyo/detyped/pkg/protocol"
	"github.com/openfroyo/detyped/pkg/telemetry"
)

const version = "1.0.0"

func main() {
	os.Exit(execute())
}

func execute() int {
	var (
		schemaPath  string
		policyPaths []string
		ttl         time.Duration
		environment string
		profileName string
		exitCode    int
	)

	cmd := &cobra.Command{
		Use:           "model-runner",
		Short:         "Serve one detyped model over stdio",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := telemetry.ParseProfile(profileName)
			if err != nil {
				return err
			}
			cfg := telemetry.ProfileConfig(profile)
			cfg.ServiceName = "model-runner"
			cfg.ServiceVersion = version
			cfg.ApplyEnv()
			if environment != "" {
				cfg.Environment = environment
			}
			cfg.Metrics.Enabled = false
			tel, err := telemetry.NewTelemetry(cfg)
			if err != nil {
				return err
			}
			defer tel.Shutdown(context.Background())
			logger := tel.Logger.Zerolog().With().Str("component", "model-runner").Logger()

			ctx := cmd.Context()
			if ttl > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, ttl)
				defer cancel()
			}

			catalog, err := config.NewParser().Load(schemaPath)
			if err != nil {
				for _, e := range config.ValidationErrors(err) {
					logger.Error().Msg(e.String())
				}
				return err
			}
			m, err := catalog.NewModel()
			if err != nil {
				return err
			}

			evaluator, err := policy.NewEngine(logger)
			if err != nil {
				return err
			}
			if len(policyPaths) > 0 {
				if err := evaluator.LoadPolicies(ctx, policyPaths); err != nil {
					return err
				}
			}

			e, err := engine.New(engine.Options{
				Model:       m,
				Policy:      evaluator,
				Telemetry:   tel,
				Environment: cfg.Environment,
			})
			if err != nil {
				return err
			}

			ready := protocol.ReadyMessage{
				Version:  version,
				PID:      os.Getpid(),
				Handlers: e.Handlers(),
				Metadata: map[string]string{
					"schema": schemaPath,
					"ttl":    ttl.String(),
				},
			}
			exit, err := protocol.NewServer(e, ready, logger).Serve(ctx, os.Stdin, os.Stdout)
			if err != nil {
				return err
			}
			exitCode = exit.ExitCode
			return nil
		},
	}

	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "schema.yaml", "schema document")
	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "policy files or directories")
	cmd.Flags().DurationVar(&ttl, "ttl", 10*time.Minute, "stop accepting invocations after this long (0 disables)")
	cmd.Flags().StringVar(&environment, "environment", "", "environment passed to policies (default $DETYPED_ENVIRONMENT or development)")
	cmd.Flags().StringVar(&profileName, "telemetry-profile", string(telemetry.ProfileService), "telemetry profile: interactive, debug or service")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "model-runner:", err)
		return 1
	}
	return exitCode
}

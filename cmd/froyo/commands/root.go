package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	schemaPath  string
	dbPath      string
	policyPaths []string
	environment string
	jsonOutput  bool

	telemetryProfile string

	// serviceVersion is reported by telemetry and the READY message
	serviceVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	serviceVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "froyo",
		Short: "froyo - detyped management model host",
		Long: `froyo hosts a detyped management model: a tree of typed resources,
changed only through management invocations.

Features:
  - Schema documents in YAML, JSON or CUE
  - Invocation scripts in Starlark
  - Rego policies gating every invocation
  - A SQLite journal with undo and replay
  - A JSON-lines invocation protocol on stdio`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&schemaPath, "schema", "s", "schema.yaml", "schema document (yaml, json, cue or a CUE package directory)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "froyo.db", "journal database path")
	rootCmd.PersistentFlags().StringSliceVar(&policyPaths, "policy", nil, "policy files or directories (.rego, .json)")
	rootCmd.PersistentFlags().StringVar(&environment, "environment", "", "environment passed to policies (default $DETYPED_ENVIRONMENT or development)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&telemetryProfile, "telemetry-profile", "", "telemetry profile: interactive, debug or service (default $DETYPED_TELEMETRY_PROFILE)")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newUndoCommand())
	rootCmd.AddCommand(newServeCommand())

	return rootCmd
}

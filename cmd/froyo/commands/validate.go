package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/detyped/pkg/telemetry"
)

// validationReport summarizes a valid schema.
type validationReport struct {
	Schema    string   `json:"schema"`
	Types     []string `json:"types"`
	Resources []string `json:"resources"`
	Handlers  []string `json:"handlers"`
	Policies  []string `json:"policies"`
}

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema]",
		Short: "Validate a schema document and policies",
		Long: `Validate a schema document and the policies given with --policy.

This command checks:
  - YAML, JSON or CUE syntax
  - Conformance to the schema document definition
  - Type references, type cycles and resource containment
  - Rego compilation of every policy`,
		Example: `  # Validate the default schema
  froyo validate

  # Validate a CUE package with extra policies
  froyo validate ./schema --policy ./policies`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				schemaPath = args[0]
			}
			log.Debug().Str("schema", schemaPath).Strs("policies", policyPaths).Msg("Validating schema")

			catalog, err := loadCatalog()
			if err != nil {
				return err
			}
			m, err := catalog.NewModel()
			if err != nil {
				return err
			}

			tel, err := newTelemetry("", telemetry.ProfileInteractive)
			if err != nil {
				return fmt.Errorf("failed to initialize telemetry: %w", err)
			}
			w := &workspace{catalog: catalog, telemetry: tel}
			defer w.Close(cmd.Context())
			if err := w.openPolicies(cmd.Context(), false); err != nil {
				return err
			}

			report := validationReport{
				Schema:    schemaPath,
				Types:     catalog.TypeNames(),
				Resources: catalog.ResourceNames(),
			}
			for _, id := range m.Identifiers() {
				report.Handlers = append(report.Handlers, id.Key())
			}
			for _, p := range w.policy.ListPolicies() {
				report.Policies = append(report.Policies, p.Name)
			}

			if jsonOutput {
				return printJSON(report)
			}
			successColor.Print("✓ ")
			fmt.Printf("%s is valid\n\n", schemaPath)
			fmt.Printf("Types:     %d\n", len(report.Types))
			fmt.Printf("Resources: %d\n", len(report.Resources))
			fmt.Printf("Policies:  %d\n\n", len(report.Policies))
			infoColor.Println("Handlers:")
			for _, h := range report.Handlers {
				fmt.Printf("  %s\n", h)
			}
			return nil
		},
	}

	return cmd
}

package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const starterSchema = `# froyo schema document
version: "1"

types:
  Port: int

resources:
  root:
    description: the managed site
    children:
      - resource: server
        cardinality: "0..*"

  server:
    identifier: server[@name]
    description: a server
    attributes:
      name: string
      port: Port
    operations:
      - name: write-port
        usage: configuration
        signature:
          port: Port
    adders:
      - name: add
        signature:
          port: Port?
`

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a froyo workspace",
		Long: `Initialize a workspace with a starter schema document and an empty journal.

An existing schema is kept unless --force is given. The journal is created
and migrated to the current version; existing entries are kept.`,
		Example: `  # Initialize in the current directory
  froyo init

  # Initialize elsewhere
  froyo init --schema site/schema.yaml --db site/froyo.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log.Info().
				Str("schema", schemaPath).
				Str("db", dbPath).
				Msg("Initializing workspace")

			for _, dir := range []string{filepath.Dir(schemaPath), filepath.Dir(dbPath)} {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
			}

			_, err := os.Stat(schemaPath)
			switch {
			case err == nil && !force:
				successColor.Print("✓ ")
				fmt.Printf("Schema already exists: %s\n", schemaPath)
			case err == nil || errors.Is(err, fs.ErrNotExist):
				if err := os.WriteFile(schemaPath, []byte(starterSchema), 0644); err != nil {
					return fmt.Errorf("failed to write schema: %w", err)
				}
				successColor.Print("✓ ")
				fmt.Printf("Created schema: %s\n", schemaPath)
			default:
				return fmt.Errorf("failed to check schema: %w", err)
			}

			if _, err := loadCatalog(); err != nil {
				return err
			}

			journal, err := openJournal(ctx)
			if err != nil {
				return err
			}
			defer journal.Close()
			n, err := journal.CountEntries(ctx, "")
			if err != nil {
				return err
			}
			successColor.Print("✓ ")
			fmt.Printf("Initialized journal: %s (%d entries)\n", dbPath, n)

			fmt.Printf("\nNext steps:\n")
			fmt.Printf("  1. Check the schema:\n")
			fmt.Printf("     froyo validate --schema %s\n\n", schemaPath)
			fmt.Printf("  2. Add a server by writing this line to add.jsonl:\n")
			fmt.Printf("     %s\n", `{"address":"/server[@name='web-01']","operation":"add","params":{"port":8080}}`)
			fmt.Printf("     froyo apply --invocations add.jsonl\n\n")

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing schema")

	return cmd
}

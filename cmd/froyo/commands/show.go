package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/detyped/pkg/jsonvalue"
	"github.com/openfroyo/detyped/pkg/resource"
)

func newShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [address]",
		Short: "Show the resource tree",
		Long: `Replay the journal and print the resource tree, or the subtree at address.

Attributes are shown in their JSON form.`,
		Example: `  # Show the whole tree
  froyo show

  # Show one server as JSON
  froyo show "/server[@name='web-01']" --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			address := resource.Root
			if len(args) > 0 {
				var err error
				if address, err = resource.ParseAddress(args[0]); err != nil {
					return err
				}
			}

			w, err := openWorkspace(ctx, workspaceOptions{replay: true})
			if err != nil {
				return err
			}
			defer w.Close(ctx)

			doc, err := w.engine.ExportEntity(address)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(doc)
			}
			printTree(doc, 0)

			stats, err := w.engine.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Println()
			infoColor.Printf("%d entities\n", stats.Entities)
			return nil
		},
	}

	return cmd
}

// printTree prints doc and its children indented by depth.
func printTree(doc *jsonvalue.EntityDocument, depth int) {
	indent := strings.Repeat("  ", depth)
	label := doc.Address
	if addr, err := resource.ParseAddress(doc.Address); err == nil && depth > 0 {
		if last, ok := addr.LastElement(); ok {
			label = last.String()
		}
	}
	successColor.Print(indent + label)
	if doc.IDOnly {
		warningColor.Print(" (id only)")
	}
	fmt.Println()

	names := make([]string, 0, len(doc.Attributes))
	for name := range doc.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := json.Marshal(doc.Attributes[name])
		if err != nil {
			data = []byte(fmt.Sprint(doc.Attributes[name]))
		}
		fmt.Printf("%s  %s = %s\n", indent, name, data)
	}

	types := make([]string, 0, len(doc.Children))
	for t := range doc.Children {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		for _, child := range doc.Children[t] {
			printTree(child, depth+1)
		}
	}
}

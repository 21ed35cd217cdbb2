package engine_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/openfroyo/detyped/pkg/config"
	"github.com/openfroyo/detyped/pkg/engine"
	"github.com/openfroyo/detyped/pkg/protocol"
)

const exampleSchema = `version: "1"
resources:
  root:
    children:
      - resource: server
  server:
    identifier: server[@name]
    attributes:
      name: string
      port: int
    adders:
      - name: add
        signature:
          port: int
`

// ExampleEngine_Apply demonstrates applying an invocation built from a
// schema document.
func ExampleEngine_Apply() {
	doc, err := config.NewParser().LoadYAML([]byte(exampleSchema), "schema.yaml")
	if err != nil {
		log.Fatal(err)
	}
	catalog, err := config.Build(doc)
	if err != nil {
		log.Fatal(err)
	}
	m, err := catalog.NewModel()
	if err != nil {
		log.Fatal(err)
	}

	e, err := engine.New(engine.Options{Model: m})
	if err != nil {
		log.Fatal(err)
	}

	result, err := e.Apply(context.Background(), &protocol.InvocationRequest{
		ID:        "req-1",
		Address:   "/server[@name='web-01']",
		Operation: "add",
		Params:    map[string]json.RawMessage{"port": json.RawMessage(`8080`)},
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("undo with:", result.Compensation.Operation, result.Compensation.Address)

	stats, _ := e.Stats(context.Background())
	fmt.Println("entities:", stats.Entities)
	// Output:
	// undo with: remove /server[@name='web-01']
	// entities: 2
}

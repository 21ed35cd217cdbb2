package engine

import (
	"github.com/openfroyo/detyped/pkg/model"
	"github.com/openfroyo/detyped/pkg/stores"
	"github.com/openfroyo/detyped/pkg/telemetry"
)

// Options configures an Engine.
type Options struct {
	// Model is the tree the engine drives. Required.
	Model *model.Model

	// Policy gates every invocation. Nil allows everything.
	Policy PolicyEvaluator

	// Journal records invocations. Nil disables undo and replay.
	Journal stores.Journal

	// Telemetry instruments invocations. Nil disables instrumentation.
	Telemetry *telemetry.Telemetry

	// Environment is passed to policies, e.g. "production".
	Environment string
}

// Stats summarizes the tree and the journal.
type Stats struct {
	// Entities counts the entities of the tree, the root included.
	Entities int `json:"entities"`

	Applied  int `json:"applied"`
	Undone   int `json:"undone"`
	Rejected int `json:"rejected"`
}

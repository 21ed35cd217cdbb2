package telemetry_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/resource"
	"github.com/openfroyo/detyped/pkg/telemetry"
)

func exampleInvocation(op string) *resource.ManagementInvocation {
	inv, err := resource.NewInvocation(resource.MustAddress("/servers/server[@name='s1']"), op, nil)
	if err != nil {
		panic(err)
	}
	return inv
}

// Example_structuredLogging shows the fields carried by a component logger.
func Example_structuredLogging() {
	logger := telemetry.NewLoggerWithWriter(telemetry.LoggingConfig{Level: "info", Format: "json"}, os.Stderr)

	logger = logger.NewComponentLogger("engine").
		WithAddress(resource.MustAddress("/servers")).
		WithOperation("remove")
	logger.Info("removing servers")

	err := faults.NewCardinalityError("servers requires at least 1 child")
	logger.WithError(err).Warn("invocation rejected")

	// Output varies, no output specified
}

// Example_eventPublishing shows synchronous event delivery with a filter.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.EnableAsync = false

	events, err := telemetry.NewEventPublisher(cfg.Events)
	if err != nil {
		panic(err)
	}
	defer events.Shutdown(context.Background())

	events.Subscribe(func(e telemetry.Event) {
		fmt.Printf("%s %s %s\n", e.Level, e.Operation, e.Address)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	inv := exampleInvocation("add")
	_ = events.PublishInvocationApplied("req-1", inv, true, time.Millisecond)
	_ = events.PublishInvocationRejected("req-2", inv, faults.NewCardinalityError("servers already has 2 children"))
	_ = events.PublishInvocationRejected("req-3", inv, errors.New("handler panicked"))

	// Output:
	// warning add /servers/server[@name='s1']
	// error add /servers/server[@name='s1']
}

// Example_invocationScope shows the instrumentation of one invocation.
func Example_invocationScope() {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "error"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(e telemetry.Event) {
		fmt.Printf("%s reversible=%v\n", e.Type, e.Data["reversible"])
	}, telemetry.FilterByType(telemetry.EventTypeInvocationApplied))

	scope := tel.StartInvocation(context.Background(), telemetry.SpanInvocationApply, "req-1", exampleInvocation("add"))
	scope.Applied(exampleInvocation("remove"))

	scope = tel.StartInvocation(context.Background(), telemetry.SpanInvocationApply, "req-2", exampleInvocation("restart"))
	scope.Applied(nil)

	// Output:
	// invocation.applied reversible=true
	// invocation.applied reversible=false
}

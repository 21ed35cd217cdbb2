// Package telemetry provides observability for processes hosting a
// management model.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry), metrics
// (Prometheus) and an in-process event publisher. The model core does not log;
// the engine instruments every invocation through an InvocationScope.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ApplyEnv()
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	if err := tel.StartMetricsServer(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Logging
//
// Loggers write to stderr by default so that a process speaking the wire
// protocol keeps stdout for messages:
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger.WithAddress(addr).WithOperation("add").Info("adding server")
//	logger.WithError(err).Warn("invocation rejected")
//
// WithError also records the class and code of fault errors.
//
// # Invocations
//
//	scope := tel.StartInvocation(ctx, telemetry.SpanInvocationApply, requestID, inv)
//	compensation, err := m.Apply(inv)
//	if err != nil {
//	    scope.Rejected(err)
//	    return err
//	}
//	scope.Applied(compensation)
//
// A scope ends its span, records invocation metrics and publishes an
// invocation.applied, invocation.rejected or invocation.undone event.
//
// # Metrics
//
// Collectors live in a private registry served at Path (default /metrics):
// invocations_total{operation,status}, invocation_duration_seconds,
// rejections_total{class,code}, compensations_applied_total,
// irreversible_invocations_total, policy_denials_total, journal_errors_total,
// tree_entities and journal_entries. A disabled configuration makes every
// recording method a no-op.
//
// # Events
//
// Subscribers receive events synchronously unless EnableAsync is set, in
// which case a single goroutine delivers them in publication order:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Address)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
package telemetry

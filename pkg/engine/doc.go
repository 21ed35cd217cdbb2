// Package engine drives a management model at runtime.
//
// # Overview
//
// An Engine owns a model.Model and serializes every invocation through the
// same pipeline:
//
//  1. Decode - parse the address and decode the JSON parameters against the
//     signature of the handler that will serve the invocation
//  2. Policy - evaluate the PolicyEvaluator with the invocation, its target
//     entity and the environment
//  3. Apply - dispatch to the model handler, which returns a compensation
//  4. Journal - record the invocation and its compensation
//  5. Telemetry - span, metrics and events for the outcome
//
// A failure in any step leaves the tree exactly as it was. When the journal
// cannot record an applied invocation the tree is restored from a snapshot
// taken before the apply. Rejected invocations are journaled as well, for
// audit.
//
// # Undo and Replay
//
// Undo applies the compensation of the newest applied entry and marks the
// entry undone, so repeated calls walk back through the journal. An entry
// without a compensation stops the walk with an IRREVERSIBLE state fault.
// Compensations are not gated by policy since they restore a state the
// policies accepted before.
//
// Replay rebuilds the tree of a fresh model from the applied entries, in
// sequence order. Undone entries are skipped: undo always reverts the newest
// applied entry, so the remaining entries reproduce the state. Policies see
// context.replay set during a replay.
//
// # Usage
//
//	journal, _ := stores.NewSQLiteStore(stores.Config{Path: "journal.db"})
//	_ = journal.Init(ctx)
//	_ = journal.Migrate(ctx)
//
//	evaluator, _ := policy.NewEngine(logger)
//	e, err := engine.New(engine.Options{
//	    Model:     m,
//	    Policy:    evaluator,
//	    Journal:   journal,
//	    Telemetry: tel,
//	})
//	if _, err := e.Replay(ctx); err != nil {
//	    return err
//	}
//	result, err := e.Apply(ctx, &protocol.InvocationRequest{
//	    Address:   "/server[@name='web-01']",
//	    Operation: "add",
//	    Params:    map[string]json.RawMessage{"port": json.RawMessage("8080")},
//	})
//
// Engine implements protocol.Invoker, so it can be served directly:
//
//	server := protocol.NewServer(e, protocol.ReadyMessage{Handlers: e.Handlers()}, logger)
//	exit, err := server.Serve(ctx, os.Stdin, os.Stdout)
package engine

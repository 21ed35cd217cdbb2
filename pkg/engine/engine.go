package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/jsonvalue"
	"github.com/openfroyo/detyped/pkg/model"
	"github.com/openfroyo/detyped/pkg/policy"
	"github.com/openfroyo/detyped/pkg/protocol"
	"github.com/openfroyo/detyped/pkg/resource"
	"github.com/openfroyo/detyped/pkg/stores"
	"github.com/openfroyo/detyped/pkg/telemetry"
)

// Span names of the engine operations.
const (
	SpanApply = "invocation.apply"
	SpanUndo  = "invocation.undo"
)

// Engine serializes invocations against a model. Every invocation is
// decoded against the signature of its handler, gated by policy, applied and
// journaled. A rejected invocation leaves the tree unchanged.
type Engine struct {
	mu sync.Mutex

	model       *model.Model
	policy      PolicyEvaluator
	journal     stores.Journal
	telemetry   *telemetry.Telemetry
	logger      *telemetry.Logger
	environment string
}

// New creates an engine from opts.
func New(opts Options) (*Engine, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("engine needs a model")
	}
	e := &Engine{
		model:       opts.Model,
		policy:      opts.Policy,
		journal:     opts.Journal,
		telemetry:   opts.Telemetry,
		environment: opts.Environment,
	}
	if e.policy == nil {
		e.policy = allowAll
	}
	if e.telemetry == nil {
		e.telemetry = telemetry.Disabled()
	}
	e.logger = e.telemetry.Logger.NewComponentLogger("engine")
	return e, nil
}

// Handlers returns the registered "/type#operation" keys.
func (e *Engine) Handlers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := e.model.Identifiers()
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.Key()
	}
	return keys
}

// Invoke implements protocol.Invoker.
func (e *Engine) Invoke(ctx context.Context, req *protocol.InvocationRequest) (*protocol.InvocationResult, error) {
	return e.Apply(ctx, req)
}

// Apply decodes req, evaluates policies, applies it to the model and records
// it in the journal. A request without an id gets a fresh one.
func (e *Engine) Apply(ctx context.Context, req *protocol.InvocationRequest) (*protocol.InvocationResult, error) {
	if req == nil {
		return nil, faults.NewValidationError("null invocation request")
	}
	r := *req
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.apply(ctx, &r, false)
}

func (e *Engine) apply(ctx context.Context, req *protocol.InvocationRequest, replay bool) (*protocol.InvocationResult, error) {
	var sig []resource.ParameterInfo
	inv, err := protocol.DecodeInvocation(req, func(addr resource.Address, op string) ([]resource.ParameterInfo, error) {
		s, err := e.model.Signature(addr, op)
		sig = s
		return s, err
	})
	if err != nil {
		e.telemetry.Metrics.RecordRejection(string(faults.ClassOf(err)), faults.CodeOf(err))
		e.logger.WithError(err).
			WithField("request_id", req.ID).
			WithField("address", req.Address).
			WithField("operation", req.Operation).
			Info("invocation rejected")
		if !replay {
			e.recordRejected(ctx, req, err)
		}
		return nil, err
	}

	scope := e.telemetry.StartInvocation(ctx, SpanApply, req.ID, inv)

	if err := e.authorize(scope, req.ID, inv, sig, replay); err != nil {
		scope.Rejected(err)
		if !replay {
			e.recordRejected(ctx, req, err)
		}
		return nil, err
	}

	var before *resource.Mutable
	if e.journal != nil && !replay {
		before = e.model.Snapshot()
	}

	comp, err := e.model.Apply(inv)
	if err != nil {
		scope.Rejected(err)
		if !replay {
			e.recordRejected(ctx, req, err)
		}
		return nil, err
	}

	compReq := e.encodeCompensation(comp, scope.Logger)
	if compReq == nil {
		comp = nil
	}
	result := &protocol.InvocationResult{ID: req.ID, Compensation: compReq}

	if before != nil {
		entry, err := e.recordApplied(ctx, req, compReq)
		if err != nil {
			e.restore(before)
			e.telemetry.Metrics.RecordJournalError()
			ferr := faults.NewInternalError("failed to journal invocation", err).
				WithAddress(inv.Address.String()).
				WithOperation(inv.OperationID)
			scope.Rejected(ferr)
			return nil, ferr
		}
		result.EntryID = entry.ID
	}

	scope.Applied(comp)
	result.DurationMs = float64(scope.Timer.Duration().Microseconds()) / 1000
	if !replay {
		e.updateGauges(ctx)
	}
	return result, nil
}

// authorize evaluates the policies for inv.
func (e *Engine) authorize(scope *telemetry.InvocationScope, requestID string, inv *resource.ManagementInvocation, sig []resource.ParameterInfo, replay bool) error {
	params := make(map[string]interface{}, len(inv.Params))
	for _, p := range sig {
		v, ok := inv.Params[p.Name]
		if !ok {
			continue
		}
		enc, err := jsonvalue.ToJSON(v, p.Type)
		if err != nil {
			return err
		}
		params[p.Name] = enc
	}

	input := &policy.Input{
		Address:     inv.Address.String(),
		AddressType: addressType(inv.Address),
		Operation:   inv.OperationID,
		Params:      params,
		Target:      e.target(inv.Address),
		Context: &policy.Context{
			RequestID:   requestID,
			Environment: e.environment,
			Timestamp:   time.Now(),
			Replay:      replay,
		},
	}

	result, err := e.policy.EvaluateInvocation(scope.Ctx, input)
	if err != nil {
		if fe, ok := faults.As(err); ok && fe.Class == faults.ClassPolicy {
			name, _ := fe.Details["policy"].(string)
			e.telemetry.Metrics.RecordPolicyDenial(name)
			if perr := e.telemetry.Events.PublishPolicyViolation(inv, name, fe.Message); perr != nil {
				scope.Logger.WithError(perr).Warn("failed to publish event")
			}
			return err
		}
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	for _, w := range result.Warnings {
		scope.Logger.WithField("policy", w.Policy).Warn(w.Message)
	}
	return nil
}

// target describes the entity at addr for policies. An entity that does not
// exist yet takes its fields from the child declaration of its parent.
func (e *Engine) target(addr resource.Address) *policy.Target {
	t := &policy.Target{}
	last, ok := addr.LastElement()
	if ok {
		t.Element = last.ElementName
		t.Name = last.AttributeValue
	}

	if entity, err := e.model.Entity(addr); err == nil {
		t.Exists = true
		t.Fields = entity.Info().Fields()
		for _, ct := range entity.ChildTypes() {
			t.Children += entity.ChildCount(ct)
		}
		return t
	}
	if !ok {
		return t
	}
	if parent, err := e.model.Entity(addr.Parent()); err == nil {
		if decl, found := parent.Info().Child(last.Type()); found {
			t.Fields = decl.Info.Fields()
		}
	}
	return t
}

// addressType is the element path of addr, "/" for the root.
func addressType(addr resource.Address) string {
	if addr.IsRoot() {
		return resource.Separator
	}
	var b strings.Builder
	for _, id := range addr.Elements() {
		b.WriteString(resource.Separator)
		b.WriteString(id.ElementName)
	}
	return b.String()
}

// encodeCompensation returns the wire form of comp. A compensation without a
// handler is dropped and the invocation counts as irreversible.
func (e *Engine) encodeCompensation(comp *resource.ManagementInvocation, logger *telemetry.Logger) *protocol.InvocationRequest {
	if comp == nil {
		return nil
	}
	sig, err := e.model.Signature(comp.Address, comp.OperationID)
	if err != nil {
		logger.WithError(err).Warn("compensation has no handler")
		return nil
	}
	req, err := protocol.EncodeInvocation("", comp, sig)
	if err != nil {
		logger.WithError(err).Warn("failed to encode compensation")
		return nil
	}
	return req
}

func (e *Engine) recordApplied(ctx context.Context, req *protocol.InvocationRequest, comp *protocol.InvocationRequest) (*stores.Entry, error) {
	entry, err := newEntry(req, stores.EntryStatusApplied)
	if err != nil {
		return nil, err
	}
	if comp != nil {
		data, err := json.Marshal(comp)
		if err != nil {
			return nil, fmt.Errorf("failed to encode compensation: %w", err)
		}
		s := string(data)
		entry.Compensation = &s
	}
	if err := e.journal.AppendEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// recordRejected keeps rejected invocations for audit. Failures are logged.
func (e *Engine) recordRejected(ctx context.Context, req *protocol.InvocationRequest, cause error) {
	if e.journal == nil {
		return
	}
	entry, err := newEntry(req, stores.EntryStatusRejected)
	if err == nil {
		msg := cause.Error()
		entry.Error = &msg
		err = e.journal.AppendEntry(ctx, entry)
	}
	if err != nil {
		e.telemetry.Metrics.RecordJournalError()
		e.logger.WithError(err).WithField("request_id", req.ID).Error("failed to journal rejected invocation")
	}
}

func newEntry(req *protocol.InvocationRequest, status stores.EntryStatus) (*stores.Entry, error) {
	params := req.Params
	if params == nil {
		params = map[string]json.RawMessage{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}
	return &stores.Entry{
		RequestID: req.ID,
		Address:   req.Address,
		Operation: req.Operation,
		Params:    string(data),
		Status:    status,
	}, nil
}

// entryRequest rebuilds the request recorded in entry.
func entryRequest(entry *stores.Entry) (*protocol.InvocationRequest, error) {
	req := &protocol.InvocationRequest{
		ID:        entry.RequestID,
		Address:   entry.Address,
		Operation: entry.Operation,
	}
	if entry.Params != "" {
		if err := json.Unmarshal([]byte(entry.Params), &req.Params); err != nil {
			return nil, faults.NewInternalError(fmt.Sprintf("journal entry %s has malformed parameters", entry.ID), err)
		}
	}
	return req, nil
}

// Undo applies the compensation of the newest applied journal entry and
// marks the entry undone. It returns the updated entry.
func (e *Engine) Undo(ctx context.Context) (*stores.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.journal == nil {
		return nil, faults.NewStateError(faults.ErrCodeNotFound, "undo needs a journal")
	}
	entry, err := e.journal.LastApplied(ctx)
	if errors.Is(err, stores.ErrNotFound) {
		return nil, faults.NewStateError(faults.ErrCodeNotFound, "nothing to undo")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if !entry.Reversible() {
		return nil, faults.NewStateError(faults.ErrCodeIrreversible, "entry %d cannot be undone", entry.Seq).
			WithAddress(entry.Address).
			WithOperation(entry.Operation)
	}

	var req protocol.InvocationRequest
	if err := json.Unmarshal([]byte(*entry.Compensation), &req); err != nil {
		return nil, faults.NewInternalError(fmt.Sprintf("journal entry %s has a malformed compensation", entry.ID), err)
	}
	req.ID = uuid.NewString()
	inv, err := protocol.DecodeInvocation(&req, e.model.Signature)
	if err != nil {
		return nil, fmt.Errorf("failed to decode compensation of entry %d: %w", entry.Seq, err)
	}

	scope := e.telemetry.StartInvocation(ctx, SpanUndo, req.ID, inv)
	before := e.model.Snapshot()
	if _, err := e.model.Apply(inv); err != nil {
		scope.Rejected(err)
		return nil, fmt.Errorf("failed to undo entry %d: %w", entry.Seq, err)
	}
	if err := e.journal.MarkUndone(ctx, entry.ID); err != nil {
		e.restore(before)
		e.telemetry.Metrics.RecordJournalError()
		scope.Rejected(err)
		return nil, fmt.Errorf("failed to mark entry %d undone: %w", entry.Seq, err)
	}
	scope.Undone(entry.ID)
	e.updateGauges(ctx)

	return e.journal.GetEntry(ctx, entry.ID)
}

// Replay applies the applied journal entries in sequence order. It returns
// the number of entries replayed.
func (e *Engine) Replay(ctx context.Context) (int, error) {
	if e.journal == nil {
		return 0, nil
	}
	entries, err := e.journal.ListEntries(ctx, stores.EntryFilter{Status: stores.EntryStatusApplied})
	if err != nil {
		return 0, fmt.Errorf("failed to list journal entries: %w", err)
	}
	return e.ReplayEntries(ctx, entries)
}

// ReplayEntries applies the applied entries among entries without recording
// them. Policies see the replay flag. When an entry fails the tree is put
// back as it was before the replay.
func (e *Engine) ReplayEntries(ctx context.Context, entries []*stores.Entry) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	timer := telemetry.NewTimer()
	before := e.model.Snapshot()
	n := 0
	for _, entry := range entries {
		if entry.Status != stores.EntryStatusApplied {
			continue
		}
		req, err := entryRequest(entry)
		if err == nil {
			_, err = e.apply(ctx, req, true)
		}
		if err != nil {
			e.restore(before)
			return 0, fmt.Errorf("failed to replay entry %d: %w", entry.Seq, err)
		}
		n++
	}

	duration := timer.Duration()
	if err := e.telemetry.Events.PublishJournalReplayed(n, duration); err != nil {
		e.logger.WithError(err).Warn("failed to publish event")
	}
	e.logger.WithField("entries", n).WithField("duration", duration).Info("journal replayed")
	e.updateGauges(ctx)
	return n, nil
}

// Export returns the tree as a JSON document.
func (e *Engine) Export() (*jsonvalue.EntityDocument, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return jsonvalue.EncodeResource(e.model.Root())
}

// ExportEntity returns the subtree at addr as a JSON document.
func (e *Engine) ExportEntity(addr resource.Address) (*jsonvalue.EntityDocument, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entity, err := e.model.Entity(addr)
	if err != nil {
		return nil, err
	}
	return jsonvalue.EncodeResource(entity)
}

// History lists journal entries.
func (e *Engine) History(ctx context.Context, filter stores.EntryFilter) ([]*stores.Entry, error) {
	if e.journal == nil {
		return []*stores.Entry{}, nil
	}
	return e.journal.ListEntries(ctx, filter)
}

// Stats counts the entities of the tree and the journal entries by status.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	e.mu.Lock()
	stats := &Stats{Entities: countEntities(e.model.Root())}
	e.mu.Unlock()

	if e.journal == nil {
		return stats, nil
	}
	for status, n := range map[stores.EntryStatus]*int{
		stores.EntryStatusApplied:  &stats.Applied,
		stores.EntryStatusUndone:   &stats.Undone,
		stores.EntryStatusRejected: &stats.Rejected,
	} {
		count, err := e.journal.CountEntries(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s entries: %w", status, err)
		}
		*n = count
	}
	return stats, nil
}

func (e *Engine) restore(before *resource.Mutable) {
	if err := e.model.Restore(before); err != nil {
		e.logger.WithError(err).Error("failed to restore tree")
	}
}

func (e *Engine) updateGauges(ctx context.Context) {
	e.telemetry.Metrics.SetTreeSize(countEntities(e.model.Root()))
	if e.journal == nil {
		return
	}
	n, err := e.journal.CountEntries(ctx, stores.EntryStatusApplied)
	if err != nil {
		e.logger.WithError(err).Warn("failed to count journal entries")
		return
	}
	e.telemetry.Metrics.SetJournalLength(n)
}

func countEntities(root *resource.ManagedResource) int {
	n := 0
	_ = root.Walk(func(*resource.ManagedResource) error {
		n++
		return nil
	})
	return n
}

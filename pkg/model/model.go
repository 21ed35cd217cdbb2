package model

import (
	"sort"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/resource"
)

// Model owns a resource tree and the handlers that change it.
type Model struct {
	root     *resource.Mutable
	handlers map[string]registration
}

type registration struct {
	id      resource.UpdateIdentifier
	handler Handler
}

// New creates a model with an empty root built from rootInfo.
func New(rootInfo *resource.Info) (*Model, error) {
	root, err := resource.NewRoot(rootInfo)
	if err != nil {
		return nil, err
	}
	return &Model{root: root, handlers: make(map[string]registration)}, nil
}

// Register binds h to the invocations matching id.
func (m *Model) Register(id resource.UpdateIdentifier, h Handler) error {
	if h == nil {
		return faults.NewSchemaError("null handler for %s", id)
	}
	if id.UpdateID == "" {
		return faults.NewSchemaError("handler registered without an operation id")
	}
	key := id.Key()
	if _, dup := m.handlers[key]; dup {
		return faults.NewSchemaError("handler for %s already registered", id).WithCode(faults.ErrCodeDuplicate)
	}
	m.handlers[key] = registration{id: id, handler: h}
	return nil
}

// Handler returns the handler registered for id.
func (m *Model) Handler(id resource.UpdateIdentifier) (Handler, bool) {
	r, ok := m.handlers[id.Key()]
	return r.handler, ok
}

// Identifiers returns the registered identifiers, sorted by key.
func (m *Model) Identifiers() []resource.UpdateIdentifier {
	keys := make([]string, 0, len(m.handlers))
	for k := range m.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]resource.UpdateIdentifier, len(keys))
	for i, k := range keys {
		out[i] = m.handlers[k].id
	}
	return out
}

// Signature returns the parameter signature of the handler that would serve
// operation at address.
func (m *Model) Signature(address resource.Address, operation string) ([]resource.ParameterInfo, error) {
	h, err := m.lookup(resource.NewUpdateIdentifier(address, operation))
	if err != nil {
		return nil, err.WithAddress(address.String()).WithOperation(operation)
	}
	return h.Signature(), nil
}

// Apply dispatches inv to its handler and returns the compensation, nil when
// the change cannot be undone. A failed invocation leaves the tree unchanged.
func (m *Model) Apply(inv *resource.ManagementInvocation) (*resource.ManagementInvocation, error) {
	if inv == nil {
		return nil, faults.NewValidationError("null invocation")
	}
	h, err := m.lookup(inv.Identifier())
	if err != nil {
		return nil, err.WithAddress(inv.Address.String()).WithOperation(inv.OperationID)
	}
	return h.Apply(m, inv)
}

func (m *Model) lookup(id resource.UpdateIdentifier) (Handler, *faults.Error) {
	r, ok := m.handlers[id.Key()]
	if !ok {
		return nil, faults.NewValidationError("no handler for %s", id).WithCode(faults.ErrCodeNoHandler)
	}
	return r.handler, nil
}

// MutableEntity implements Tree.
func (m *Model) MutableEntity(address resource.Address) (*resource.Mutable, error) {
	return m.root.MutableEntity(address)
}

// Entity returns the read-only entity at address.
func (m *Model) Entity(address resource.Address) (*resource.ManagedResource, error) {
	return m.root.ChildEntity(address)
}

// Root returns the read-only root.
func (m *Model) Root() *resource.ManagedResource { return m.root.Resource() }

// Snapshot returns a deep copy of the tree.
func (m *Model) Snapshot() *resource.Mutable { return m.root.Clone() }

// Restore replaces the tree with root, typically a Snapshot. The root must use
// the same schema.
func (m *Model) Restore(root *resource.Mutable) error {
	if root == nil || !root.IsRoot() {
		return faults.NewValidationError("restore needs a root entity")
	}
	if root.Info() != m.root.Info() {
		return faults.NewSchemaError("restored root uses a different schema")
	}
	m.root = root
	return nil
}

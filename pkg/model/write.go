package model

import (
	"github.com/openfroyo/detyped/pkg/metatype"
	"github.com/openfroyo/detyped/pkg/resource"
)

// WriteAttributeHandler sets every parameter of its operation as the attribute
// of the same name on the target entity.
type WriteAttributeHandler struct {
	op resource.OperationInfo
}

// NewWriteAttributeHandler creates a handler for op. Every parameter of op
// must name an attribute of the target.
func NewWriteAttributeHandler(op resource.OperationInfo) *WriteAttributeHandler {
	return &WriteAttributeHandler{op: op}
}

// Operation returns the bound operation.
func (h *WriteAttributeHandler) Operation() resource.OperationInfo { return h.op }

// Signature implements Handler.
func (h *WriteAttributeHandler) Signature() []resource.ParameterInfo { return h.op.Signature }

// Apply implements Handler. The compensation writes the previous values back
// with the same operation. It is nil when a previous value was unset and the
// parameter does not accept null.
func (h *WriteAttributeHandler) Apply(tree Tree, inv *resource.ManagementInvocation) (*resource.ManagementInvocation, error) {
	target, err := tree.MutableEntity(inv.Address)
	if err != nil {
		return nil, annotate(err, inv)
	}
	if err := resource.MatchSignature(h.op.Signature, inv.Params); err != nil {
		return nil, annotate(err, inv)
	}
	for name, v := range inv.Params {
		if err := target.CheckAttribute(name, v); err != nil {
			return nil, annotate(err, inv)
		}
	}

	previous := make(map[string]metatype.MetaValue, len(inv.Params))
	undoable := true
	for _, p := range h.op.Signature {
		old, err := target.Attribute(p.Name)
		if err != nil {
			return nil, annotate(err, inv)
		}
		if metatype.IsNil(old) && !p.Nillable {
			undoable = false
		}
		previous[p.Name] = metatype.CloneValue(old)
	}

	values := make(map[string]metatype.MetaValue, len(inv.Params))
	for name, v := range inv.Params {
		values[name] = metatype.CloneValue(v)
	}
	if err := target.SetAttributes(values); err != nil {
		return nil, annotate(err, inv)
	}

	if !undoable {
		return nil, nil
	}
	return resource.NewInvocation(inv.Address, inv.OperationID, previous)
}

// IsWriteOperation reports whether every parameter of op names an attribute of
// info with the same type, so that a WriteAttributeHandler can serve it.
func IsWriteOperation(info *resource.Info, op resource.OperationInfo) bool {
	if len(op.Signature) == 0 {
		return false
	}
	for _, p := range op.Signature {
		attr, ok := info.Attribute(p.Name)
		if !ok || !attr.Type.Equal(p.Type) {
			return false
		}
	}
	return true
}

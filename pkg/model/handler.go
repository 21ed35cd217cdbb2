package model

import (
	"errors"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/resource"
)

// RemoveOperation is the operation id of the generic remove handler.
const RemoveOperation = "remove"

// Tree resolves the mutable entity at an absolute address.
type Tree interface {
	MutableEntity(address resource.Address) (*resource.Mutable, error)
}

// Handler applies one kind of invocation to a tree.
//
// Apply resolves its target, checks the parameters against Signature and then
// changes the tree. It returns the invocation that undoes the change, or nil
// when the change cannot be undone. An error means the tree was not touched.
type Handler interface {
	Signature() []resource.ParameterInfo
	Apply(tree Tree, inv *resource.ManagementInvocation) (*resource.ManagementInvocation, error)
}

// OperationFunc implements a custom operation on an already resolved target
// whose parameters have been checked.
type OperationFunc func(target *resource.Mutable, inv *resource.ManagementInvocation) (*resource.ManagementInvocation, error)

// OperationHandler binds an OperationFunc to an operation signature.
type OperationHandler struct {
	op resource.OperationInfo
	fn OperationFunc
}

// NewOperationHandler creates a handler for a custom operation.
func NewOperationHandler(op resource.OperationInfo, fn OperationFunc) *OperationHandler {
	return &OperationHandler{op: op, fn: fn}
}

// Signature implements Handler.
func (h *OperationHandler) Signature() []resource.ParameterInfo { return h.op.Signature }

// Apply implements Handler.
func (h *OperationHandler) Apply(tree Tree, inv *resource.ManagementInvocation) (*resource.ManagementInvocation, error) {
	target, err := tree.MutableEntity(inv.Address)
	if err != nil {
		return nil, annotate(err, inv)
	}
	if err := resource.MatchSignature(h.op.Signature, inv.Params); err != nil {
		return nil, annotate(err, inv)
	}
	comp, err := h.fn(target, inv)
	if err != nil {
		return nil, annotate(err, inv)
	}
	return comp, nil
}

// annotate fills in the address and operation of a fault that has none.
func annotate(err error, inv *resource.ManagementInvocation) error {
	var fe *faults.Error
	if !errors.As(err, &fe) {
		return faults.NewInternalError("handler failed", err).
			WithAddress(inv.Address.String()).WithOperation(inv.OperationID)
	}
	if fe.Address == "" {
		fe.Address = inv.Address.String()
	}
	if fe.Operation == "" {
		fe.Operation = inv.OperationID
	}
	return err
}

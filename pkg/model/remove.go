package model

import (
	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
	"github.com/openfroyo/detyped/pkg/resource"
)

// RemoveHandler detaches the entity the invocation addresses, together with
// its subtree.
type RemoveHandler struct {
	adder    resource.AdderInfo
	hasAdder bool
}

// NewRemoveHandler creates a remove handler whose compensation re-adds the
// entity through adder.
func NewRemoveHandler(adder resource.AdderInfo) *RemoveHandler {
	return &RemoveHandler{adder: adder, hasAdder: true}
}

// NewIrreversibleRemoveHandler creates a remove handler that never returns a
// compensation.
func NewIrreversibleRemoveHandler() *RemoveHandler {
	return &RemoveHandler{}
}

// Signature implements Handler. Remove takes no parameters.
func (h *RemoveHandler) Signature() []resource.ParameterInfo { return nil }

// Apply implements Handler. The compensation is nil when the removed entity
// had children, an attribute the adder requires was unset, or an attribute
// was set that the adder cannot restore.
func (h *RemoveHandler) Apply(tree Tree, inv *resource.ManagementInvocation) (*resource.ManagementInvocation, error) {
	id, ok := inv.Address.LastElement()
	if !ok {
		return nil, annotate(faults.NewStateError(faults.ErrCodeRootImmutable, "cannot remove the root entity"), inv)
	}
	parent, err := tree.MutableEntity(inv.Address.Parent())
	if err != nil {
		return nil, annotate(err, inv)
	}
	if err := resource.MatchSignature(nil, inv.Params); err != nil {
		return nil, annotate(err, inv)
	}
	removed, err := parent.RemoveChild(id)
	if err != nil {
		return nil, annotate(err, inv)
	}
	return h.compensation(inv.Address, removed.Resource()), nil
}

func (h *RemoveHandler) compensation(address resource.Address, removed *resource.ManagedResource) *resource.ManagementInvocation {
	if !h.hasAdder || removed.IsIDOnly() || len(removed.ChildTypes()) > 0 {
		return nil
	}
	params := make(map[string]metatype.MetaValue, len(h.adder.Signature))
	for _, p := range h.adder.Signature {
		v, err := removed.Attribute(p.Name)
		if err != nil {
			return nil
		}
		if metatype.IsNil(v) && !p.Nillable {
			return nil
		}
		params[p.Name] = v
	}
	if !restorable(address, removed, params) {
		return nil
	}
	comp, err := resource.NewInvocation(address, h.adder.Name, params)
	if err != nil {
		return nil
	}
	return comp
}

// restorable reports whether re-adding with params recreates every attribute
// of removed. Attributes outside the adder signature are only restored when
// they are the discriminator filled in from the address.
func restorable(address resource.Address, removed *resource.ManagedResource, params map[string]metatype.MetaValue) bool {
	values, err := removed.AttributeValues()
	if err != nil {
		return false
	}
	id, _ := address.LastElement()
	filled, err := childAttributes(removed.Info(), id, params)
	if err != nil {
		return false
	}
	for name, v := range values {
		if !metatype.IsNil(v) && !metatype.ValuesEqual(v, filled[name]) {
			return false
		}
	}
	return true
}

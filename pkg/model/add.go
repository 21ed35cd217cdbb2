package model

import (
	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
	"github.com/openfroyo/detyped/pkg/resource"
)

// AddHandler creates a child entity. The invocation addresses the new child;
// its parent must exist and declare the child type.
type AddHandler struct {
	adder resource.AdderInfo
}

// NewAddHandler creates a handler for adder.
func NewAddHandler(adder resource.AdderInfo) *AddHandler {
	return &AddHandler{adder: adder}
}

// Adder returns the bound adder.
func (h *AddHandler) Adder() resource.AdderInfo { return h.adder }

// Signature implements Handler.
func (h *AddHandler) Signature() []resource.ParameterInfo { return h.adder.Signature }

// Apply implements Handler. The parameters become the attributes of the new
// child. When the child type has a discriminator attribute that is also a
// string attribute of the child, it is set from the address. The
// compensation removes the child, and is nil when the child type's minimum
// cardinality forbids removing it again.
func (h *AddHandler) Apply(tree Tree, inv *resource.ManagementInvocation) (*resource.ManagementInvocation, error) {
	id, ok := inv.Address.LastElement()
	if !ok {
		return nil, annotate(faults.NewStateError(faults.ErrCodeRootImmutable, "cannot add the root entity"), inv)
	}
	parent, err := tree.MutableEntity(inv.Address.Parent())
	if err != nil {
		return nil, annotate(err, inv)
	}
	if err := resource.MatchSignature(h.adder.Signature, inv.Params); err != nil {
		return nil, annotate(err, inv)
	}
	decl, ok := parent.Info().Child(id.Type())
	if !ok {
		return nil, annotate(faults.NewValidationError("no child type %s declared for %s",
			id.Type(), parent.Info().IdentifierType()).WithCode(faults.ErrCodeNotFound), inv)
	}

	child, err := resource.NewManagedResource(inv.Address, decl.Info)
	if err != nil {
		return nil, annotate(err, inv)
	}
	values, err := childAttributes(decl.Info, id, inv.Params)
	if err != nil {
		return nil, annotate(err, inv)
	}
	if err := child.SetAttributes(values); err != nil {
		return nil, annotate(err, inv)
	}
	if err := parent.AddChild(child); err != nil {
		return nil, annotate(err, inv)
	}
	if !decl.Cardinality.AllowsRemove(parent.ChildCount(id.Type())) {
		return nil, nil
	}
	return resource.NewInvocation(inv.Address, RemoveOperation, nil)
}

func childAttributes(info *resource.Info, id resource.EntityID, params map[string]metatype.MetaValue) (map[string]metatype.MetaValue, error) {
	values := make(map[string]metatype.MetaValue, len(params)+1)
	for name, v := range params {
		values[name] = metatype.CloneValue(v)
	}
	if !id.HasAttribute() {
		return values, nil
	}
	attr, ok := info.Attribute(id.AttributeName)
	if !ok || !attr.Type.Equal(metatype.String) {
		return values, nil
	}
	discriminator := metatype.StringValue(id.AttributeValue)
	given, present := values[id.AttributeName]
	if metatype.IsNil(given) {
		values[id.AttributeName] = discriminator
		return values, nil
	}
	if present && !given.Equal(discriminator) {
		return nil, faults.NewValidationError("parameter %s is %s but the address names %s",
			id.AttributeName, given, id.AttributeValue).WithDetail("parameter", id.AttributeName)
	}
	return values, nil
}

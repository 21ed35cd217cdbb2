package resource

import (
	"sort"
	"strings"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
)

// ManagementInvocation is a request to perform a named operation, with typed
// parameters, at an address.
type ManagementInvocation struct {
	// Address is the target of the invocation.
	Address Address

	// OperationID names the operation or adder.
	OperationID string

	// Params holds the named parameter values. A present key with a nil value
	// is an explicit null.
	Params map[string]metatype.MetaValue
}

// NewInvocation creates an invocation. The params map is copied.
func NewInvocation(address Address, operationID string, params map[string]metatype.MetaValue) (*ManagementInvocation, error) {
	if operationID == "" {
		return nil, faults.NewValidationError("null operation id").WithAddress(address.String())
	}
	cp := make(map[string]metatype.MetaValue, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return &ManagementInvocation{Address: address, OperationID: operationID, Params: cp}, nil
}

// Param returns the named parameter, nil when absent.
func (inv *ManagementInvocation) Param(name string) metatype.MetaValue {
	return inv.Params[name]
}

// ParameterNames returns the parameter names, sorted.
func (inv *ManagementInvocation) ParameterNames() []string {
	out := make([]string, 0, len(inv.Params))
	for k := range inv.Params {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Identifier returns the dispatch key of the invocation.
func (inv *ManagementInvocation) Identifier() UpdateIdentifier {
	return UpdateIdentifier{AddressType: inv.Address.EntityIDTypes(), UpdateID: inv.OperationID}
}

func (inv *ManagementInvocation) String() string {
	return inv.OperationID + "@" + inv.Address.String() + "(" + strings.Join(inv.ParameterNames(), ",") + ")"
}

// UpdateIdentifier keys handlers by the type path of the target address and the
// operation id.
type UpdateIdentifier struct {
	AddressType []EntityIDType
	UpdateID    string
}

// NewUpdateIdentifier creates an identifier from the types of a sample
// address.
func NewUpdateIdentifier(address Address, updateID string) UpdateIdentifier {
	return UpdateIdentifier{AddressType: address.EntityIDTypes(), UpdateID: updateID}
}

// Equal compares address types and update id.
func (u UpdateIdentifier) Equal(o UpdateIdentifier) bool {
	if u.UpdateID != o.UpdateID || len(u.AddressType) != len(o.AddressType) {
		return false
	}
	for i := range u.AddressType {
		if u.AddressType[i] != o.AddressType[i] {
			return false
		}
	}
	return true
}

// Key returns a string usable as a map key; equal identifiers have equal keys.
func (u UpdateIdentifier) Key() string {
	return u.String()
}

// String returns "/type/type#update".
func (u UpdateIdentifier) String() string {
	return u.TypePath() + "#" + u.UpdateID
}

// TypePath returns the address type alone, "/type/type", or "/" for the root.
func (u UpdateIdentifier) TypePath() string {
	if len(u.AddressType) == 0 {
		return Separator
	}
	var b strings.Builder
	for _, t := range u.AddressType {
		b.WriteString(Separator)
		b.WriteString(t.String())
	}
	return b.String()
}

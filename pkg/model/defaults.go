package model

import (
	"github.com/openfroyo/detyped/pkg/resource"
)

// RegisterDefaults walks the schema from the root and registers the generic
// handlers at every type path:
//   - a WriteAttributeHandler for each operation that IsWriteOperation accepts
//   - an AddHandler for each adder of a child type
//   - a RemoveHandler for each child type, unless it declares its own remove
//
// Operations that need custom logic are left for Register.
func (m *Model) RegisterDefaults() error {
	return m.registerDefaults(nil, m.root.Info())
}

func (m *Model) registerDefaults(path []resource.EntityIDType, info *resource.Info) error {
	for _, op := range info.Operations() {
		if !IsWriteOperation(info, op) {
			continue
		}
		id := resource.UpdateIdentifier{AddressType: path, UpdateID: op.Name}
		if err := m.Register(id, NewWriteAttributeHandler(op)); err != nil {
			return err
		}
	}
	for _, t := range info.ChildTypes() {
		decl, _ := info.Child(t)
		childPath := append(append([]resource.EntityIDType(nil), path...), t)

		adders := decl.Info.Adders()
		for _, adder := range adders {
			id := resource.UpdateIdentifier{AddressType: childPath, UpdateID: adder.Name}
			if err := m.Register(id, NewAddHandler(adder)); err != nil {
				return err
			}
		}
		if _, custom := decl.Info.Operation(RemoveOperation); !custom {
			remove := NewIrreversibleRemoveHandler()
			if len(adders) > 0 {
				remove = NewRemoveHandler(adders[0])
			}
			id := resource.UpdateIdentifier{AddressType: childPath, UpdateID: RemoveOperation}
			if err := m.Register(id, remove); err != nil {
				return err
			}
		}
		if err := m.registerDefaults(childPath, decl.Info); err != nil {
			return err
		}
	}
	return nil
}

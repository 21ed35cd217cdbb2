package resource

import (
	"fmt"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
)

// ManagedResource is one node of the resource tree. Its methods are read-only;
// mutation is only available through the Mutable handle returned by the
// constructors, which the owner of the tree hands to handlers.
type ManagedResource struct {
	address    Address
	info       *Info
	idOnly     bool
	root       bool
	attributes map[string]metatype.MetaValue
	children   map[EntityIDType]*childGroup
}

// childGroup holds the children of one type in insertion order.
type childGroup struct {
	child    ChildInfo
	order    []EntityID
	entities map[EntityID]*ManagedResource
}

func newChildGroup(c ChildInfo) *childGroup {
	return &childGroup{child: c, entities: make(map[EntityID]*ManagedResource)}
}

func (g *childGroup) clone() *childGroup {
	out := &childGroup{
		child:    g.child,
		order:    make([]EntityID, len(g.order)),
		entities: make(map[EntityID]*ManagedResource, len(g.entities)),
	}
	copy(out.order, g.order)
	for id, e := range g.entities {
		out.entities[id] = e.clone()
	}
	return out
}

func (g *childGroup) remove(id EntityID) {
	delete(g.entities, id)
	for i, o := range g.order {
		if o == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			return
		}
	}
}

// NewManagedResource creates a detached node at address. The identifier type
// of info must match the type of the last address element.
func NewManagedResource(address Address, info *Info) (*Mutable, error) {
	r, err := newResource(address, info, false)
	if err != nil {
		return nil, err
	}
	return &Mutable{r}, nil
}

// NewIDOnly creates a placeholder node that carries only its identity. Its
// attributes and children cannot be accessed.
func NewIDOnly(address Address, info *Info) (*Mutable, error) {
	r, err := newResource(address, info, true)
	if err != nil {
		return nil, err
	}
	return &Mutable{r}, nil
}

// NewRoot creates the root of a tree. info must be a root info.
func NewRoot(info *Info) (*Mutable, error) {
	if info == nil {
		return nil, faults.NewSchemaError("null root info")
	}
	if info.identifierType.ElementName != "" {
		return nil, faults.NewSchemaError("info for %s is not a root info", info.identifierType)
	}
	return &Mutable{&ManagedResource{
		address:    Root,
		info:       info,
		root:       true,
		attributes: make(map[string]metatype.MetaValue),
		children:   make(map[EntityIDType]*childGroup),
	}}, nil
}

func newResource(address Address, info *Info, idOnly bool) (*ManagedResource, error) {
	if info == nil {
		return nil, faults.NewSchemaError("null resource info").WithAddress(address.String())
	}
	last, ok := address.LastElement()
	if !ok {
		return nil, faults.NewValidationError("resource needs a non-root address, use NewRoot").WithAddress(address.String())
	}
	if last.Type() != info.identifierType {
		return nil, faults.NewSchemaError("invalid identifier type %s, should be %s", info.identifierType, last.Type()).
			WithAddress(address.String())
	}
	return &ManagedResource{
		address:    address,
		info:       info,
		idOnly:     idOnly,
		attributes: make(map[string]metatype.MetaValue),
		children:   make(map[EntityIDType]*childGroup),
	}, nil
}

// Address returns the node's address.
func (r *ManagedResource) Address() Address { return r.address }

// ID returns the last address element; the zero id for the root.
func (r *ManagedResource) ID() EntityID {
	id, _ := r.address.LastElement()
	return id
}

// Info returns the node's schema.
func (r *ManagedResource) Info() *Info { return r.info }

// IsRoot reports whether the node is the tree root.
func (r *ManagedResource) IsRoot() bool { return r.root }

// IsIDOnly reports whether the node is a content-less placeholder.
func (r *ManagedResource) IsIDOnly() bool { return r.idOnly }

func (r *ManagedResource) checkIDOnly() error {
	if r.idOnly {
		return faults.NewStateError(faults.ErrCodeIDOnly, "entity is id-only, content cannot be accessed").
			WithAddress(r.address.String())
	}
	return nil
}

// AttributeNames returns the declared attribute names.
func (r *ManagedResource) AttributeNames() []string { return r.info.AttributeNames() }

// Attribute returns a copy of the value of a declared attribute, nil when
// unset. Changing the copy does not change the entity.
func (r *ManagedResource) Attribute(name string) (metatype.MetaValue, error) {
	if err := r.checkIDOnly(); err != nil {
		return nil, err
	}
	if _, ok := r.info.Attribute(name); !ok {
		return nil, faults.NewValidationError("attribute %q not declared", name).
			WithCode(faults.ErrCodeUnknownItem).WithAddress(r.address.String())
	}
	return metatype.CloneValue(r.attributes[name]), nil
}

// AttributeValues returns copies of the set attributes.
func (r *ManagedResource) AttributeValues() (map[string]metatype.MetaValue, error) {
	if err := r.checkIDOnly(); err != nil {
		return nil, err
	}
	out := make(map[string]metatype.MetaValue, len(r.attributes))
	for k, v := range r.attributes {
		out[k] = metatype.CloneValue(v)
	}
	return out, nil
}

// ChildTypes returns the child types that currently have children, in
// declaration order.
func (r *ManagedResource) ChildTypes() []EntityIDType {
	var out []EntityIDType
	for _, t := range r.info.childOrder {
		if g, ok := r.children[t]; ok && len(g.order) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Children returns the children of type t in insertion order.
func (r *ManagedResource) Children(t EntityIDType) ([]*ManagedResource, error) {
	if err := r.checkIDOnly(); err != nil {
		return nil, err
	}
	g, ok := r.children[t]
	if !ok {
		return nil, nil
	}
	out := make([]*ManagedResource, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.entities[id])
	}
	return out, nil
}

// ChildCount returns the number of children of type t.
func (r *ManagedResource) ChildCount(t EntityIDType) int {
	if g, ok := r.children[t]; ok {
		return len(g.order)
	}
	return 0
}

// Child returns the direct child with the given id.
func (r *ManagedResource) Child(id EntityID) (*ManagedResource, error) {
	if err := r.checkIDOnly(); err != nil {
		return nil, err
	}
	if g, ok := r.children[id.Type()]; ok {
		if e, ok := g.entities[id]; ok {
			return e, nil
		}
	}
	return nil, faults.NewAddressError("no entity at address %s", r.address.Child(id)).
		WithAddress(r.address.Child(id).String())
}

// ChildEntity walks a relative address down from r.
func (r *ManagedResource) ChildEntity(relative Address) (*ManagedResource, error) {
	e := r
	for i := 0; i < relative.Len(); i++ {
		next, err := e.Child(relative.Element(i))
		if err != nil {
			return nil, err
		}
		e = next
	}
	return e, nil
}

// Walk visits r and every descendant depth first, parents before children.
func (r *ManagedResource) Walk(fn func(*ManagedResource) error) error {
	if err := fn(r); err != nil {
		return err
	}
	if r.idOnly {
		return nil
	}
	for _, t := range r.ChildTypes() {
		g := r.children[t]
		for _, id := range g.order {
			if err := g.entities[id].Walk(fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clone returns a fully independent deep copy.
func (r *ManagedResource) Clone() *ManagedResource { return r.clone() }

func (r *ManagedResource) clone() *ManagedResource {
	out := &ManagedResource{
		address:    r.address,
		info:       r.info,
		idOnly:     r.idOnly,
		root:       r.root,
		attributes: make(map[string]metatype.MetaValue, len(r.attributes)),
		children:   make(map[EntityIDType]*childGroup, len(r.children)),
	}
	if r.idOnly {
		return out
	}
	for k, v := range r.attributes {
		out.attributes[k] = metatype.CloneValue(v)
	}
	for t, g := range r.children {
		out.children[t] = g.clone()
	}
	return out
}

// Equal reports structural equality: address, schema, attribute values and
// children, recursively. Child insertion order is not significant.
func (r *ManagedResource) Equal(o *ManagedResource) bool {
	if r == o {
		return true
	}
	if o == nil || r.info != o.info || r.idOnly != o.idOnly || r.root != o.root || !r.address.Equal(o.address) {
		return false
	}
	if len(r.attributes) != len(o.attributes) {
		return false
	}
	for k, v := range r.attributes {
		if !metatype.ValuesEqual(v, o.attributes[k]) {
			return false
		}
	}
	for _, t := range r.info.childOrder {
		if r.ChildCount(t) != o.ChildCount(t) {
			return false
		}
		g, ok := r.children[t]
		if !ok {
			continue
		}
		og := o.children[t]
		for id, e := range g.entities {
			oe, ok := og.entities[id]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
	}
	return true
}

func (r *ManagedResource) String() string {
	return fmt.Sprintf("resource[%s]", r.address)
}

// Mutable is the capability to change a node. Read-only accessors are
// available through the embedded ManagedResource.
type Mutable struct {
	*ManagedResource
}

// Resource returns the read-only view.
func (m *Mutable) Resource() *ManagedResource { return m.ManagedResource }

// Clone returns a deep copy with its own mutation capability.
func (m *Mutable) Clone() *Mutable { return &Mutable{m.clone()} }

// CheckAttribute reports the error SetAttribute would return, without
// changing anything.
func (m *Mutable) CheckAttribute(name string, v metatype.MetaValue) error {
	if err := m.checkIDOnly(); err != nil {
		return err
	}
	if m.root {
		return faults.NewStateError(faults.ErrCodeRootImmutable, "cannot mutate content of the root entity").
			WithAddress(m.address.String())
	}
	attr, ok := m.info.Attribute(name)
	if !ok {
		return faults.NewValidationError("attribute %q not declared", name).
			WithCode(faults.ErrCodeUnknownItem).WithAddress(m.address.String())
	}
	if metatype.IsNil(v) {
		return nil
	}
	if !attr.Type.IsValue(v) {
		return faults.NewValidationError("invalid value %s for attribute %s, should be %s", v, name, attr.Type.TypeName()).
			WithAddress(m.address.String()).WithDetail("attribute", name)
	}
	return nil
}

// SetAttribute validates and stores an attribute value. Use RemoveAttribute
// to unset.
func (m *Mutable) SetAttribute(name string, v metatype.MetaValue) error {
	if metatype.IsNil(v) {
		return faults.NewValidationError("null value for attribute %s, use RemoveAttribute", name).
			WithAddress(m.address.String()).WithDetail("attribute", name)
	}
	if err := m.CheckAttribute(name, v); err != nil {
		return err
	}
	m.attributes[name] = metatype.CloneValue(v)
	return nil
}

// SetAttributes applies all values or none. A nil value unsets the attribute.
func (m *Mutable) SetAttributes(values map[string]metatype.MetaValue) error {
	for name, v := range values {
		if err := m.CheckAttribute(name, v); err != nil {
			return err
		}
	}
	for name, v := range values {
		if metatype.IsNil(v) {
			delete(m.attributes, name)
		} else {
			m.attributes[name] = metatype.CloneValue(v)
		}
	}
	return nil
}

// RemoveAttribute unsets an attribute and returns its previous value.
func (m *Mutable) RemoveAttribute(name string) (metatype.MetaValue, error) {
	if err := m.CheckAttribute(name, nil); err != nil {
		return nil, err
	}
	old := m.attributes[name]
	delete(m.attributes, name)
	return old, nil
}

// CheckAddChild reports the error AddChild would return, without changing
// anything.
func (m *Mutable) CheckAddChild(child *Mutable) error {
	if child == nil {
		return faults.NewValidationError("null child entity").WithAddress(m.address.String())
	}
	if err := m.checkIDOnly(); err != nil {
		return err
	}
	if !child.address.IsDirectChildOf(m.address) {
		return faults.NewValidationError("%s is not a direct child address of %s", child.address, m.address).
			WithAddress(m.address.String())
	}
	id, _ := child.address.LastElement()
	t := id.Type()
	decl, ok := m.info.Child(t)
	if !ok {
		return faults.NewValidationError("no child type %s declared for %s", t, m.info.identifierType).
			WithCode(faults.ErrCodeNotFound).WithAddress(m.address.String())
	}
	if decl.Info != child.info {
		return faults.NewSchemaError("child %s does not use the declared info of %s", id, t).
			WithAddress(m.address.String())
	}
	size := m.ChildCount(t)
	if g, ok := m.children[t]; ok {
		if _, dup := g.entities[id]; dup {
			return faults.NewValidationError("entity %s already exists", child.address).
				WithCode(faults.ErrCodeDuplicate).WithAddress(child.address.String())
		}
	}
	if !decl.Cardinality.AllowsAdd(size) {
		return faults.NewCardinalityError("max number of (%d) %s children reached", decl.Cardinality.Max, t).
			WithAddress(m.address.String()).WithDetail("cardinality", decl.Cardinality.String())
	}
	return nil
}

// AddChild attaches child below m. Cardinality and identity are checked
// before the group changes.
func (m *Mutable) AddChild(child *Mutable) error {
	if err := m.CheckAddChild(child); err != nil {
		return err
	}
	id, _ := child.address.LastElement()
	t := id.Type()
	g, ok := m.children[t]
	if !ok {
		decl, _ := m.info.Child(t)
		g = newChildGroup(decl)
		m.children[t] = g
	}
	g.entities[id] = child.ManagedResource
	g.order = append(g.order, id)
	return nil
}

// CheckRemoveChild reports the error RemoveChild would return, without
// changing anything.
func (m *Mutable) CheckRemoveChild(id EntityID) error {
	if err := m.checkIDOnly(); err != nil {
		return err
	}
	g, ok := m.children[id.Type()]
	if !ok || g.entities[id] == nil {
		return faults.NewAddressError("no entity at address %s", m.address.Child(id)).
			WithAddress(m.address.Child(id).String())
	}
	if !g.child.Cardinality.AllowsRemove(len(g.order)) {
		return faults.NewCardinalityError("min number of (%d) %s children reached", g.child.Cardinality.Min, id.Type()).
			WithAddress(m.address.String()).WithDetail("cardinality", g.child.Cardinality.String())
	}
	return nil
}

// RemoveChild detaches and returns the child with the given id.
func (m *Mutable) RemoveChild(id EntityID) (*Mutable, error) {
	if err := m.CheckRemoveChild(id); err != nil {
		return nil, err
	}
	t := id.Type()
	g := m.children[t]
	e := g.entities[id]
	g.remove(id)
	if len(g.order) == 0 {
		delete(m.children, t)
	}
	return &Mutable{e}, nil
}

// MutableChild returns the capability for a direct child.
func (m *Mutable) MutableChild(id EntityID) (*Mutable, error) {
	e, err := m.Child(id)
	if err != nil {
		return nil, err
	}
	return &Mutable{e}, nil
}

// MutableEntity walks a relative address down from m.
func (m *Mutable) MutableEntity(relative Address) (*Mutable, error) {
	e, err := m.ChildEntity(relative)
	if err != nil {
		return nil, err
	}
	return &Mutable{e}, nil
}

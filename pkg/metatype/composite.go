package metatype

import (
	"sort"
	"strings"

	"github.com/openfroyo/detyped/pkg/faults"
)

// Item declares one named item of a composite type.
type Item struct {
	Name        string
	Description string
	Type        MetaType
}

// CompositeType is an ordered mapping of item name to item type. It is either
// immutable from construction (NewCompositeType) or built with AddItem and
// then frozen (NewMutableCompositeType).
type CompositeType struct {
	baseType
	items   []Item
	byName  map[string]int
	keys    []string
	mutable bool
	frozen  bool
}

// NewCompositeType creates an immutable composite type with at least one item.
func NewCompositeType(typeName, description string, items ...Item) (*CompositeType, error) {
	t, err := newComposite(typeName, description)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, faults.NewSchemaError("composite %s has no items", typeName).WithDetail("field", "items")
	}
	for _, it := range items {
		if err := t.addItem(it); err != nil {
			return nil, err
		}
	}
	t.frozen = true
	return t, nil
}

// NewMutableCompositeType creates a composite type that accepts AddItem until
// Freeze is called.
func NewMutableCompositeType(typeName, description string) (*CompositeType, error) {
	t, err := newComposite(typeName, description)
	if err != nil {
		return nil, err
	}
	t.mutable = true
	return t, nil
}

func newComposite(typeName, description string) (*CompositeType, error) {
	if typeName == "" {
		return nil, faults.NewSchemaError("composite type name is empty").WithDetail("field", "typeName")
	}
	return &CompositeType{
		baseType: baseType{
			className:   ClassComposite,
			typeName:    typeName,
			description: description,
			kind:        KindComposite,
		},
		byName: make(map[string]int),
	}, nil
}

// AddItem declares an item on a mutable, unfrozen composite type.
func (t *CompositeType) AddItem(name, description string, itemType MetaType) error {
	if !t.mutable {
		return faults.NewStateError(faults.ErrCodeInvalidType, "composite %s is immutable", t.typeName)
	}
	if t.frozen {
		return faults.NewStateError(faults.ErrCodeInvalidType, "composite %s is frozen", t.typeName)
	}
	return t.addItem(Item{Name: name, Description: description, Type: itemType})
}

func (t *CompositeType) addItem(it Item) error {
	if it.Name == "" {
		return faults.NewSchemaError("composite %s has an item with an empty name", t.typeName).WithDetail("field", "items")
	}
	if isNilType(it.Type) {
		return faults.NewSchemaError("composite %s item %s has no type", t.typeName, it.Name).WithDetail("field", it.Name)
	}
	if _, dup := t.byName[it.Name]; dup {
		return faults.NewSchemaError("composite %s has duplicate item %s", t.typeName, it.Name).
			WithCode(faults.ErrCodeDuplicate).WithDetail("field", it.Name)
	}
	t.byName[it.Name] = len(t.items)
	t.items = append(t.items, it)
	t.keys = append(t.keys, it.Name)
	sort.Strings(t.keys)
	return nil
}

// Freeze fixes the item set. Freezing an empty composite fails.
func (t *CompositeType) Freeze() error {
	if t.frozen {
		return nil
	}
	if len(t.items) == 0 {
		return faults.NewSchemaError("composite %s has no items", t.typeName).WithDetail("field", "items")
	}
	t.frozen = true
	return nil
}

// IsFrozen reports whether the item set is fixed.
func (t *CompositeType) IsFrozen() bool { return t.frozen }

// Items returns the item declarations in declaration order.
func (t *CompositeType) Items() []Item {
	out := make([]Item, len(t.items))
	copy(out, t.items)
	return out
}

// Keys returns the item names in canonical (sorted) order.
func (t *CompositeType) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Len returns the number of items.
func (t *CompositeType) Len() int { return len(t.items) }

// HasItem reports whether name is a declared item.
func (t *CompositeType) HasItem(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// ItemType returns the type of the named item.
func (t *CompositeType) ItemType(name string) (MetaType, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.items[i].Type, true
}

// ItemDescription returns the description of the named item.
func (t *CompositeType) ItemDescription(name string) string {
	if i, ok := t.byName[name]; ok {
		return t.items[i].Description
	}
	return ""
}

// IsValue accepts a *CompositeValue of an equal type whose items are valid.
func (t *CompositeType) IsValue(v interface{}) bool {
	cv, ok := v.(*CompositeValue)
	if !ok || cv == nil {
		return false
	}
	if !t.Equal(cv.metaType) {
		return false
	}
	for _, it := range t.items {
		item := cv.items[it.Name]
		if !IsNil(item) && !it.Type.IsValue(item) {
			return false
		}
	}
	return true
}

// Equal compares type name and the item name to item type mapping.
func (t *CompositeType) Equal(other MetaType) bool {
	o, ok := other.(*CompositeType)
	if !ok || o == nil {
		return false
	}
	if t == o {
		return true
	}
	if t.typeName != o.typeName || len(t.items) != len(o.items) {
		return false
	}
	for _, it := range t.items {
		ot, ok := o.ItemType(it.Name)
		if !ok || !it.Type.Equal(ot) {
			return false
		}
	}
	return true
}

// Hash implements MetaType.
func (t *CompositeType) Hash() int32 {
	h := hashString(t.typeName)
	for _, k := range t.keys {
		it, _ := t.ItemType(k)
		h += hashString(k) ^ hashType(it)
	}
	return h
}

func (t *CompositeType) String() string {
	var b strings.Builder
	b.WriteString(t.typeName)
	b.WriteString("{")
	for i, k := range t.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		it, _ := t.ItemType(k)
		b.WriteString(k)
		b.WriteString(":")
		b.WriteString(it.TypeName())
	}
	b.WriteString("}")
	return b.String()
}

// CompositeValue maps every item of its type to a value or nil.
type CompositeValue struct {
	metaType *CompositeType
	items    map[string]MetaValue
}

// NewCompositeValue creates a composite value from a partial item map. Unknown
// items and invalid values are rejected; declared items absent from the map
// are nil.
func NewCompositeValue(t *CompositeType, items map[string]MetaValue) (*CompositeValue, error) {
	if t == nil {
		return nil, faults.NewSchemaError("null composite meta type")
	}
	if len(items) > len(t.items) {
		return nil, faults.NewValidationError("%d items given but composite %s has %d", len(items), t.typeName, len(t.items))
	}
	cv := &CompositeValue{metaType: t, items: make(map[string]MetaValue, len(t.items))}
	for name, v := range items {
		itemType, err := cv.validateKey(name)
		if err != nil {
			return nil, err
		}
		if !IsNil(v) && !itemType.IsValue(v) {
			return nil, faults.NewValidationError("item value %s for %s is not a %s", v, name, itemType.TypeName()).
				WithDetail("item", name)
		}
		if !IsNil(v) {
			cv.items[name] = v
		}
	}
	return cv, nil
}

func (c *CompositeValue) validateKey(name string) (MetaType, error) {
	if name == "" {
		return nil, faults.NewValidationError("null or empty item name").WithCode(faults.ErrCodeUnknownItem)
	}
	itemType, ok := c.metaType.ItemType(name)
	if !ok {
		return nil, faults.NewValidationError("no such item %s in composite %s", name, c.metaType.typeName).
			WithCode(faults.ErrCodeUnknownItem).WithDetail("item", name)
	}
	return itemType, nil
}

// MetaType implements MetaValue.
func (c *CompositeValue) MetaType() MetaType { return c.metaType }

// CompositeType returns the bound type.
func (c *CompositeValue) CompositeType() *CompositeType { return c.metaType }

// Get returns the item value, nil when unset. Unknown names are an error.
func (c *CompositeValue) Get(name string) (MetaValue, error) {
	if _, err := c.validateKey(name); err != nil {
		return nil, err
	}
	return c.items[name], nil
}

// Set validates and stores an item value; nil unsets the item.
func (c *CompositeValue) Set(name string, v MetaValue) error {
	itemType, err := c.validateKey(name)
	if err != nil {
		return err
	}
	if IsNil(v) {
		delete(c.items, name)
		return nil
	}
	if !itemType.IsValue(v) {
		return faults.NewValidationError("item value %s for %s is not a %s", v, name, itemType.TypeName()).
			WithDetail("item", name)
	}
	c.items[name] = v
	return nil
}

// ContainsKey reports whether name is a declared item.
func (c *CompositeValue) ContainsKey(name string) bool {
	return name != "" && c.metaType.HasItem(name)
}

// Values returns item values in canonical key order.
func (c *CompositeValue) Values() []MetaValue {
	out := make([]MetaValue, 0, len(c.metaType.keys))
	for _, k := range c.metaType.keys {
		out = append(out, c.items[k])
	}
	return out
}

// Equal implements MetaValue.
func (c *CompositeValue) Equal(other MetaValue) bool {
	o, ok := other.(*CompositeValue)
	if !ok || o == nil {
		return false
	}
	if !c.metaType.Equal(o.metaType) {
		return false
	}
	for _, k := range c.metaType.keys {
		if !ValuesEqual(c.items[k], o.items[k]) {
			return false
		}
	}
	return true
}

// Hash iterates items in canonical key order.
func (c *CompositeValue) Hash() int32 {
	h := c.metaType.Hash()
	for _, k := range c.metaType.keys {
		h = 31*h + hashValue(c.items[k])
	}
	return h
}

// Clone implements MetaValue.
func (c *CompositeValue) Clone() MetaValue {
	cp := &CompositeValue{metaType: c.metaType, items: make(map[string]MetaValue, len(c.items))}
	for k, v := range c.items {
		cp.items[k] = CloneValue(v)
	}
	return cp
}

func (c *CompositeValue) String() string {
	var b strings.Builder
	b.WriteString(c.metaType.typeName)
	b.WriteString("[")
	for i, k := range c.metaType.keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(valueString(c.items[k]))
	}
	b.WriteString("]")
	return b.String()
}

func (c *CompositeValue) sealedValue() {}

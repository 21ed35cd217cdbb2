package metatype

import (
	"fmt"

	"github.com/openfroyo/detyped/pkg/faults"
)

// CompositeMapType is a map of composite entries keyed by one designated index
// item of the entry type.
type CompositeMapType struct {
	baseType
	entryType *CompositeType
	indexName string
	indexType MetaType
}

// NewCompositeMapType fails if indexName is not an item of entryType.
func NewCompositeMapType(typeName, description string, entryType *CompositeType, indexName string) (*CompositeMapType, error) {
	if typeName == "" {
		return nil, faults.NewSchemaError("composite map type name is empty").WithDetail("field", "typeName")
	}
	if entryType == nil {
		return nil, faults.NewSchemaError("composite map %s has no entry type", typeName).WithDetail("field", "entryType")
	}
	indexType, ok := entryType.ItemType(indexName)
	if !ok {
		return nil, faults.NewSchemaError("composite map %s index %q is not an item of %s", typeName, indexName, entryType.TypeName()).
			WithDetail("field", "indexName")
	}
	return &CompositeMapType{
		baseType: baseType{
			className:   ClassCompositeMap,
			typeName:    typeName,
			description: description,
			kind:        KindCompositeMap,
		},
		entryType: entryType,
		indexName: indexName,
		indexType: indexType,
	}, nil
}

// EntryType returns the composite type of entries.
func (t *CompositeMapType) EntryType() *CompositeType { return t.entryType }

// IndexName returns the name of the index item.
func (t *CompositeMapType) IndexName() string { return t.indexName }

// IndexType returns the key type, the type of the index item.
func (t *CompositeMapType) IndexType() MetaType { return t.indexType }

// IsValue accepts a *CompositeMapValue of an equal type whose entries are valid
// and keyed by their own index item.
func (t *CompositeMapType) IsValue(v interface{}) bool {
	mv, ok := v.(*CompositeMapValue)
	if !ok || mv == nil {
		return false
	}
	if !t.Equal(mv.metaType) {
		return false
	}
	for _, e := range mv.index.entries {
		entry, ok := e.value.(*CompositeValue)
		if !ok || !t.entryType.IsValue(entry) || !t.indexType.IsValue(e.key[0]) {
			return false
		}
		if !ValuesEqual(entry.items[t.indexName], e.key[0]) {
			return false
		}
	}
	return true
}

// Equal compares type name, entry type and index name.
func (t *CompositeMapType) Equal(other MetaType) bool {
	o, ok := other.(*CompositeMapType)
	if !ok || o == nil {
		return false
	}
	if t == o {
		return true
	}
	return t.typeName == o.typeName && t.indexName == o.indexName && t.entryType.Equal(o.entryType)
}

// Hash implements MetaType.
func (t *CompositeMapType) Hash() int32 {
	return hashString(t.typeName) + 31*t.entryType.Hash() + hashString(t.indexName)
}

func (t *CompositeMapType) String() string {
	return fmt.Sprintf("%s<%s by %s>", t.typeName, t.entryType.TypeName(), t.indexName)
}

// CompositeMapValue maps index values to composite entries.
type CompositeMapValue struct {
	metaType *CompositeMapType
	index    *valueIndex
}

// NewCompositeMapValue creates an empty composite map and puts entries into it.
func NewCompositeMapValue(t *CompositeMapType, entries ...*CompositeValue) (*CompositeMapValue, error) {
	if t == nil {
		return nil, faults.NewSchemaError("null composite map meta type")
	}
	mv := &CompositeMapValue{metaType: t, index: newValueIndex()}
	for _, e := range entries {
		if _, err := mv.Put(e); err != nil {
			return nil, err
		}
	}
	return mv, nil
}

// MetaType implements MetaValue.
func (m *CompositeMapValue) MetaType() MetaType { return m.metaType }

// CompositeMapType returns the bound type.
func (m *CompositeMapValue) CompositeMapType() *CompositeMapType { return m.metaType }

// Put stores a copy of entry under the value of its index item and returns
// the entry it replaced, if any. The index item must be set.
func (m *CompositeMapValue) Put(entry *CompositeValue) (*CompositeValue, error) {
	if entry == nil {
		return nil, faults.NewValidationError("null composite map entry")
	}
	if !m.metaType.entryType.IsValue(entry) {
		return nil, faults.NewValidationError("entry %s is not a %s", entry, m.metaType.entryType.TypeName())
	}
	key := entry.items[m.metaType.indexName]
	if IsNil(key) {
		return nil, faults.NewValidationError("entry has no value for index item %s", m.metaType.indexName).
			WithDetail("item", m.metaType.indexName)
	}
	old, _ := m.index.put([]MetaValue{CloneValue(key)}, entry.Clone())
	if IsNil(old) {
		return nil, nil
	}
	return old.(*CompositeValue), nil
}

// PutKey stores entry under an explicit key. The key must be a value of the
// index type and equal to the entry's index item.
func (m *CompositeMapValue) PutKey(key MetaValue, entry *CompositeValue) (*CompositeValue, error) {
	if IsNil(key) || !m.metaType.indexType.IsValue(key) {
		return nil, faults.NewValidationError("key %s is not a %s", valueString(key), m.metaType.indexType.TypeName())
	}
	if entry != nil && !ValuesEqual(entry.items[m.metaType.indexName], key) {
		return nil, faults.NewValidationError("key %s does not match index item %s of entry", key, m.metaType.indexName).
			WithDetail("item", m.metaType.indexName)
	}
	return m.Put(entry)
}

// Get returns a copy of the entry for key, nil if absent.
func (m *CompositeMapValue) Get(key MetaValue) *CompositeValue {
	v, ok := m.index.get([]MetaValue{key})
	if !ok {
		return nil
	}
	return v.Clone().(*CompositeValue)
}

// ContainsKey reports whether key is present.
func (m *CompositeMapValue) ContainsKey(key MetaValue) bool {
	return m.index.find([]MetaValue{key}) >= 0
}

// Remove deletes and returns the entry for key.
func (m *CompositeMapValue) Remove(key MetaValue) *CompositeValue {
	v, ok := m.index.remove([]MetaValue{key})
	if !ok {
		return nil
	}
	return v.(*CompositeValue)
}

// Len returns the number of entries.
func (m *CompositeMapValue) Len() int { return m.index.len() }

// Keys returns the keys in insertion order.
func (m *CompositeMapValue) Keys() []MetaValue {
	out := make([]MetaValue, 0, m.index.len())
	for _, e := range m.index.entries {
		out = append(out, e.key[0])
	}
	return out
}

// Entries returns copies of the entries in insertion order.
func (m *CompositeMapValue) Entries() []*CompositeValue {
	out := make([]*CompositeValue, 0, m.index.len())
	for _, e := range m.index.entries {
		out = append(out, e.value.Clone().(*CompositeValue))
	}
	return out
}

// Equal implements MetaValue.
func (m *CompositeMapValue) Equal(other MetaValue) bool {
	o, ok := other.(*CompositeMapValue)
	if !ok || o == nil {
		return false
	}
	return m.metaType.Equal(o.metaType) && m.index.equal(o.index)
}

// Hash implements MetaValue.
func (m *CompositeMapValue) Hash() int32 {
	return m.metaType.Hash() + m.index.hash()
}

// Clone implements MetaValue.
func (m *CompositeMapValue) Clone() MetaValue {
	return &CompositeMapValue{metaType: m.metaType, index: m.index.clone()}
}

func (m *CompositeMapValue) String() string {
	return m.metaType.typeName + ":" + m.index.String()
}

func (m *CompositeMapValue) sealedValue() {}

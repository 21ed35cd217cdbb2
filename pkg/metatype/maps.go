package metatype

import (
	"github.com/openfroyo/detyped/pkg/faults"
)

// Item names of the synthetic map entry composite.
const (
	MapKeyItem   = "KEY"
	MapValueItem = "VALUE"
)

// MapType is a generic key/value map. Key and value types are held directly;
// EntryType derives the {KEY, VALUE} composite that describes one entry, so
// both views always agree.
type MapType struct {
	baseType
	keyType   MetaType
	valueType MetaType
	entryType *CompositeType
}

// NewMapType creates a map type.
func NewMapType(keyType, valueType MetaType) (*MapType, error) {
	if isNilType(keyType) {
		return nil, faults.NewSchemaError("map has no key type").WithDetail("field", "keyType")
	}
	if isNilType(valueType) {
		return nil, faults.NewSchemaError("map has no value type").WithDetail("field", "valueType")
	}
	typeName := "map<" + keyType.TypeName() + "," + valueType.TypeName() + ">"
	entry, err := NewCompositeType(typeName+".entry", "map entry",
		Item{Name: MapKeyItem, Description: "entry key", Type: keyType},
		Item{Name: MapValueItem, Description: "entry value", Type: valueType},
	)
	if err != nil {
		return nil, err
	}
	return &MapType{
		baseType: baseType{
			className:   ClassMap,
			typeName:    typeName,
			description: "map of " + keyType.TypeName() + " to " + valueType.TypeName(),
			kind:        KindMap,
		},
		keyType:   keyType,
		valueType: valueType,
		entryType: entry,
	}, nil
}

// KeyType returns the key type.
func (t *MapType) KeyType() MetaType { return t.keyType }

// ValueType returns the value type.
func (t *MapType) ValueType() MetaType { return t.valueType }

// EntryType returns the synthetic {KEY, VALUE} composite.
func (t *MapType) EntryType() *CompositeType { return t.entryType }

// IsValue accepts a *MapValue of an equal type whose keys and values are valid.
func (t *MapType) IsValue(v interface{}) bool {
	mv, ok := v.(*MapValue)
	if !ok || mv == nil {
		return false
	}
	if !t.Equal(mv.metaType) {
		return false
	}
	for _, e := range mv.index.entries {
		if !t.keyType.IsValue(e.key[0]) {
			return false
		}
		if !IsNil(e.value) && !t.valueType.IsValue(e.value) {
			return false
		}
	}
	return true
}

// Equal compares key and value types.
func (t *MapType) Equal(other MetaType) bool {
	o, ok := other.(*MapType)
	if !ok || o == nil {
		return false
	}
	return t == o || (t.keyType.Equal(o.keyType) && t.valueType.Equal(o.valueType))
}

// Hash implements MetaType.
func (t *MapType) Hash() int32 {
	return hashString(ClassMap) + 31*t.keyType.Hash() + t.valueType.Hash()
}

func (t *MapType) String() string { return t.typeName }

// MapValue maps non-nil keys to possibly nil values.
type MapValue struct {
	metaType *MapType
	index    *valueIndex
}

// MapEntry is one key/value pair of a MapValue.
type MapEntry struct {
	Key   MetaValue
	Value MetaValue
}

// NewMapValue creates an empty map.
func NewMapValue(t *MapType) (*MapValue, error) {
	if t == nil {
		return nil, faults.NewSchemaError("null map meta type")
	}
	return &MapValue{metaType: t, index: newValueIndex()}, nil
}

// MetaType implements MetaValue.
func (m *MapValue) MetaType() MetaType { return m.metaType }

// MapType returns the bound type.
func (m *MapValue) MapType() *MapType { return m.metaType }

// Put validates key and value and stores the pair, returning the replaced value.
func (m *MapValue) Put(key, value MetaValue) (MetaValue, error) {
	if IsNil(key) {
		return nil, faults.NewValidationError("null map key")
	}
	if !m.metaType.keyType.IsValue(key) {
		return nil, faults.NewValidationError("key %s is not a %s", key, m.metaType.keyType.TypeName())
	}
	if !IsNil(value) && !m.metaType.valueType.IsValue(value) {
		return nil, faults.NewValidationError("value %s is not a %s", value, m.metaType.valueType.TypeName())
	}
	old, _ := m.index.put([]MetaValue{CloneValue(key)}, value)
	return old, nil
}

// Get returns the value for key; nil if absent or unset.
func (m *MapValue) Get(key MetaValue) MetaValue {
	v, _ := m.index.get([]MetaValue{key})
	return v
}

// ContainsKey reports whether key is present.
func (m *MapValue) ContainsKey(key MetaValue) bool {
	return m.index.find([]MetaValue{key}) >= 0
}

// Remove deletes key and returns its value.
func (m *MapValue) Remove(key MetaValue) MetaValue {
	v, _ := m.index.remove([]MetaValue{key})
	return v
}

// Len returns the number of pairs.
func (m *MapValue) Len() int { return m.index.len() }

// Keys returns the keys in insertion order.
func (m *MapValue) Keys() []MetaValue {
	out := make([]MetaValue, 0, m.index.len())
	for _, e := range m.index.entries {
		out = append(out, e.key[0])
	}
	return out
}

// Entries returns the pairs in insertion order.
func (m *MapValue) Entries() []MapEntry {
	out := make([]MapEntry, 0, m.index.len())
	for _, e := range m.index.entries {
		out = append(out, MapEntry{Key: e.key[0], Value: e.value})
	}
	return out
}

// Equal implements MetaValue.
func (m *MapValue) Equal(other MetaValue) bool {
	o, ok := other.(*MapValue)
	if !ok || o == nil {
		return false
	}
	return m.metaType.Equal(o.metaType) && m.index.equal(o.index)
}

// Hash implements MetaValue.
func (m *MapValue) Hash() int32 {
	return m.metaType.Hash() + m.index.hash()
}

// Clone implements MetaValue.
func (m *MapValue) Clone() MetaValue {
	return &MapValue{metaType: m.metaType, index: m.index.clone()}
}

func (m *MapValue) String() string {
	return m.metaType.typeName + ":" + m.index.String()
}

func (m *MapValue) sealedValue() {}

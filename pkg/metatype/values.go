package metatype

import (
	"strings"
)

// MetaValue is a mutable value bound to exactly one MetaType. Every mutation
// is validated against that type before any state changes.
type MetaValue interface {
	// MetaType returns the bound type.
	MetaType() MetaType
	// Equal reports deep structural equality.
	Equal(other MetaValue) bool
	// Hash is consistent with Equal.
	Hash() int32
	// Clone returns a deep copy.
	Clone() MetaValue

	String() string

	sealedValue()
}

// IsNil reports whether v is nil, including typed nil pointers.
func IsNil(v MetaValue) bool {
	if v == nil {
		return true
	}
	switch x := v.(type) {
	case *SimpleValue:
		return x == nil
	case *EnumValue:
		return x == nil
	case *CompositeValue:
		return x == nil
	case *CompositeMapValue:
		return x == nil
	case *TableValue:
		return x == nil
	case *ArrayValue:
		return x == nil
	case *CollectionValue:
		return x == nil
	case *MapValue:
		return x == nil
	}
	return false
}

// ValuesEqual compares two possibly nil values.
func ValuesEqual(a, b MetaValue) bool {
	if IsNil(a) || IsNil(b) {
		return IsNil(a) && IsNil(b)
	}
	return a.Equal(b)
}

// CloneValue deep copies a possibly nil value.
func CloneValue(v MetaValue) MetaValue {
	if IsNil(v) {
		return nil
	}
	return v.Clone()
}

func hashValue(v MetaValue) int32 {
	if IsNil(v) {
		return 0
	}
	return v.Hash()
}

func valueString(v MetaValue) string {
	if IsNil(v) {
		return "null"
	}
	return v.String()
}

// indexEntry pairs a (possibly composite) key with a value.
type indexEntry struct {
	key   []MetaValue
	value MetaValue
}

// valueIndex is an insertion-ordered hash index keyed by tuples of values.
type valueIndex struct {
	entries []indexEntry
	buckets map[int32][]int
}

func newValueIndex() *valueIndex {
	return &valueIndex{buckets: make(map[int32][]int)}
}

func hashKey(key []MetaValue) int32 {
	h := int32(17)
	for _, k := range key {
		h = 31*h + hashValue(k)
	}
	return h
}

func keysEqual(a, b []MetaValue) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ValuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (x *valueIndex) find(key []MetaValue) int {
	for _, pos := range x.buckets[hashKey(key)] {
		if keysEqual(x.entries[pos].key, key) {
			return pos
		}
	}
	return -1
}

func (x *valueIndex) get(key []MetaValue) (MetaValue, bool) {
	pos := x.find(key)
	if pos < 0 {
		return nil, false
	}
	return x.entries[pos].value, true
}

// put stores value under key and returns the replaced value, if any.
func (x *valueIndex) put(key []MetaValue, value MetaValue) (MetaValue, bool) {
	if pos := x.find(key); pos >= 0 {
		old := x.entries[pos].value
		x.entries[pos].value = value
		return old, true
	}
	h := hashKey(key)
	x.buckets[h] = append(x.buckets[h], len(x.entries))
	x.entries = append(x.entries, indexEntry{key: key, value: value})
	return nil, false
}

func (x *valueIndex) remove(key []MetaValue) (MetaValue, bool) {
	pos := x.find(key)
	if pos < 0 {
		return nil, false
	}
	old := x.entries[pos].value
	x.entries = append(x.entries[:pos], x.entries[pos+1:]...)
	x.reindex()
	return old, true
}

func (x *valueIndex) reindex() {
	x.buckets = make(map[int32][]int, len(x.entries))
	for i, e := range x.entries {
		h := hashKey(e.key)
		x.buckets[h] = append(x.buckets[h], i)
	}
}

func (x *valueIndex) len() int {
	return len(x.entries)
}

func (x *valueIndex) clone() *valueIndex {
	c := &valueIndex{entries: make([]indexEntry, len(x.entries))}
	for i, e := range x.entries {
		key := make([]MetaValue, len(e.key))
		for j, k := range e.key {
			key[j] = CloneValue(k)
		}
		c.entries[i] = indexEntry{key: key, value: CloneValue(e.value)}
	}
	c.reindex()
	return c
}

// equal compares two indexes as unordered maps.
func (x *valueIndex) equal(o *valueIndex) bool {
	if x.len() != o.len() {
		return false
	}
	for _, e := range x.entries {
		v, ok := o.get(e.key)
		if !ok || !ValuesEqual(e.value, v) {
			return false
		}
	}
	return true
}

// hash is independent of insertion order.
func (x *valueIndex) hash() int32 {
	var h int32
	for _, e := range x.entries {
		h += hashKey(e.key) ^ hashValue(e.value)
	}
	return h
}

func (x *valueIndex) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, e := range x.entries {
		if i > 0 {
			b.WriteString(", ")
		}
		if len(e.key) == 1 {
			b.WriteString(valueString(e.key[0]))
		} else {
			b.WriteString("(")
			for j, k := range e.key {
				if j > 0 {
					b.WriteString(",")
				}
				b.WriteString(valueString(k))
			}
			b.WriteString(")")
		}
		b.WriteString("=")
		b.WriteString(valueString(e.value))
	}
	b.WriteString("}")
	return b.String()
}

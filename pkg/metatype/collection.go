package metatype

import (
	"strings"

	"github.com/openfroyo/detyped/pkg/faults"
)

// CollectionType is an unordered, unindexed homogeneous sequence.
type CollectionType struct {
	baseType
	elementType MetaType
}

// NewCollectionType creates a collection of elementType.
func NewCollectionType(elementType MetaType) (*CollectionType, error) {
	if isNilType(elementType) {
		return nil, faults.NewSchemaError("collection has no element type").WithDetail("field", "elementType")
	}
	return &CollectionType{
		baseType: baseType{
			className:   ClassCollection,
			typeName:    "collection<" + elementType.TypeName() + ">",
			description: "collection of " + elementType.TypeName(),
			kind:        KindCollection,
		},
		elementType: elementType,
	}, nil
}

// ElementType returns the element type.
func (t *CollectionType) ElementType() MetaType { return t.elementType }

// IsValue accepts a *CollectionValue of an equal type whose elements are valid.
func (t *CollectionType) IsValue(v interface{}) bool {
	cv, ok := v.(*CollectionValue)
	if !ok || cv == nil {
		return false
	}
	if !t.Equal(cv.metaType) {
		return false
	}
	for _, e := range cv.elements {
		if !t.elementType.IsValue(e) {
			return false
		}
	}
	return true
}

// Equal compares element types.
func (t *CollectionType) Equal(other MetaType) bool {
	o, ok := other.(*CollectionType)
	if !ok || o == nil {
		return false
	}
	return t == o || t.elementType.Equal(o.elementType)
}

// Hash implements MetaType.
func (t *CollectionType) Hash() int32 {
	return hashString(ClassCollection) + 31*t.elementType.Hash()
}

func (t *CollectionType) String() string { return t.typeName }

// CollectionValue is a bag of non-nil elements. Equality ignores order.
type CollectionValue struct {
	metaType *CollectionType
	elements []MetaValue
}

// NewCollectionValue creates a collection and adds elements to it.
func NewCollectionValue(t *CollectionType, elements ...MetaValue) (*CollectionValue, error) {
	if t == nil {
		return nil, faults.NewSchemaError("null collection meta type")
	}
	cv := &CollectionValue{metaType: t, elements: make([]MetaValue, 0, len(elements))}
	for _, e := range elements {
		if err := cv.Add(e); err != nil {
			return nil, err
		}
	}
	return cv, nil
}

// MetaType implements MetaValue.
func (c *CollectionValue) MetaType() MetaType { return c.metaType }

// CollectionType returns the bound type.
func (c *CollectionValue) CollectionType() *CollectionType { return c.metaType }

// Add validates and appends an element.
func (c *CollectionValue) Add(v MetaValue) error {
	if IsNil(v) {
		return faults.NewValidationError("null collection element")
	}
	if !c.metaType.elementType.IsValue(v) {
		return faults.NewValidationError("value %s is not a %s", v, c.metaType.elementType.TypeName())
	}
	c.elements = append(c.elements, v)
	return nil
}

// Remove deletes the first element equal to v.
func (c *CollectionValue) Remove(v MetaValue) bool {
	for i, e := range c.elements {
		if ValuesEqual(e, v) {
			c.elements = append(c.elements[:i], c.elements[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether an element equal to v is present.
func (c *CollectionValue) Contains(v MetaValue) bool {
	for _, e := range c.elements {
		if ValuesEqual(e, v) {
			return true
		}
	}
	return false
}

// Len returns the number of elements.
func (c *CollectionValue) Len() int { return len(c.elements) }

// Values returns the elements in insertion order.
func (c *CollectionValue) Values() []MetaValue {
	out := make([]MetaValue, len(c.elements))
	copy(out, c.elements)
	return out
}

// Equal compares as multisets.
func (c *CollectionValue) Equal(other MetaValue) bool {
	o, ok := other.(*CollectionValue)
	if !ok || o == nil {
		return false
	}
	if !c.metaType.Equal(o.metaType) || len(c.elements) != len(o.elements) {
		return false
	}
	used := make([]bool, len(o.elements))
	for _, e := range c.elements {
		found := false
		for j, oe := range o.elements {
			if !used[j] && ValuesEqual(e, oe) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Hash is independent of element order.
func (c *CollectionValue) Hash() int32 {
	h := 17 + 31*c.metaType.Hash()
	for _, e := range c.elements {
		h += hashValue(e)
	}
	return h
}

// Clone implements MetaValue.
func (c *CollectionValue) Clone() MetaValue {
	out := make([]MetaValue, len(c.elements))
	for i, e := range c.elements {
		out[i] = CloneValue(e)
	}
	return &CollectionValue{metaType: c.metaType, elements: out}
}

func (c *CollectionValue) String() string {
	parts := make([]string, len(c.elements))
	for i, e := range c.elements {
		parts[i] = valueString(e)
	}
	return c.metaType.typeName + "[" + strings.Join(parts, ",") + "]"
}

func (c *CollectionValue) sealedValue() {}

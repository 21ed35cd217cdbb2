package metatype

import (
	"strings"

	"github.com/openfroyo/detyped/pkg/faults"
)

// ArrayType is a fixed-length sequence of elements. With a dimension greater
// than one the elements are themselves arrays of dimension-1.
type ArrayType struct {
	baseType
	dimension   int
	elementType MetaType
}

// NewArrayType creates an array type. An array element type is folded into
// the dimension so the element type is never itself an array.
func NewArrayType(dimension int, elementType MetaType) (*ArrayType, error) {
	if dimension < 1 {
		return nil, faults.NewSchemaError("array dimension %d must be at least 1", dimension).WithDetail("field", "dimension")
	}
	if isNilType(elementType) {
		return nil, faults.NewSchemaError("array has no element type").WithDetail("field", "elementType")
	}
	if inner, ok := elementType.(*ArrayType); ok {
		dimension += inner.dimension
		elementType = inner.elementType
	}
	className := strings.Repeat("[]", dimension) + elementType.ClassName()
	return &ArrayType{
		baseType: baseType{
			className:   className,
			typeName:    className,
			description: strings.Repeat("[]", dimension) + elementType.TypeName(),
			kind:        KindArray,
		},
		dimension:   dimension,
		elementType: elementType,
	}, nil
}

// Dimension returns the number of nested array levels.
func (t *ArrayType) Dimension() int { return t.dimension }

// ElementType returns the innermost, non-array element type.
func (t *ArrayType) ElementType() MetaType { return t.elementType }

// ComponentType returns the type of direct elements: an array of one less
// dimension, or the element type.
func (t *ArrayType) ComponentType() MetaType {
	if t.dimension == 1 {
		return t.elementType
	}
	return &ArrayType{
		baseType: baseType{
			className:   t.className[2:],
			typeName:    t.typeName[2:],
			description: t.description[2:],
			kind:        KindArray,
		},
		dimension:   t.dimension - 1,
		elementType: t.elementType,
	}
}

// IsValue accepts an *ArrayValue of an equal type whose elements are valid.
func (t *ArrayType) IsValue(v interface{}) bool {
	av, ok := v.(*ArrayValue)
	if !ok || av == nil {
		return false
	}
	if !t.Equal(av.metaType) {
		return false
	}
	component := t.ComponentType()
	for _, e := range av.elements {
		if !IsNil(e) && !component.IsValue(e) {
			return false
		}
	}
	return true
}

// Equal compares dimension and element type.
func (t *ArrayType) Equal(other MetaType) bool {
	o, ok := other.(*ArrayType)
	if !ok || o == nil {
		return false
	}
	if t == o {
		return true
	}
	return t.dimension == o.dimension && t.elementType.Equal(o.elementType)
}

// Hash implements MetaType.
func (t *ArrayType) Hash() int32 {
	return int32(t.dimension) + 31*t.elementType.Hash()
}

func (t *ArrayType) String() string { return t.className }

// ArrayValue holds a fixed number of elements, each nil or a component value.
type ArrayValue struct {
	metaType *ArrayType
	elements []MetaValue
}

// NewArrayValue creates an array holding elements.
func NewArrayValue(t *ArrayType, elements ...MetaValue) (*ArrayValue, error) {
	if t == nil {
		return nil, faults.NewSchemaError("null array meta type")
	}
	component := t.ComponentType()
	for i, e := range elements {
		if !IsNil(e) && !component.IsValue(e) {
			return nil, faults.NewValidationError("array element %d (%s) is not a %s", i, e, component.TypeName()).
				WithDetail("index", i)
		}
	}
	out := make([]MetaValue, len(elements))
	copy(out, elements)
	return &ArrayValue{metaType: t, elements: out}, nil
}

// NewEmptyArrayValue creates an array of length nil elements.
func NewEmptyArrayValue(t *ArrayType, length int) (*ArrayValue, error) {
	if t == nil {
		return nil, faults.NewSchemaError("null array meta type")
	}
	if length < 0 {
		return nil, faults.NewValidationError("negative array length %d", length)
	}
	return &ArrayValue{metaType: t, elements: make([]MetaValue, length)}, nil
}

// MetaType implements MetaValue.
func (a *ArrayValue) MetaType() MetaType { return a.metaType }

// ArrayType returns the bound type.
func (a *ArrayValue) ArrayType() *ArrayType { return a.metaType }

// Len returns the array length.
func (a *ArrayValue) Len() int { return len(a.elements) }

// Get returns element i.
func (a *ArrayValue) Get(i int) (MetaValue, error) {
	if i < 0 || i >= len(a.elements) {
		return nil, faults.NewValidationError("array index %d out of range [0,%d)", i, len(a.elements))
	}
	return a.elements[i], nil
}

// Set validates and stores element i; nil clears it.
func (a *ArrayValue) Set(i int, v MetaValue) error {
	if i < 0 || i >= len(a.elements) {
		return faults.NewValidationError("array index %d out of range [0,%d)", i, len(a.elements))
	}
	component := a.metaType.ComponentType()
	if !IsNil(v) && !component.IsValue(v) {
		return faults.NewValidationError("array element %s is not a %s", v, component.TypeName()).WithDetail("index", i)
	}
	a.elements[i] = v
	return nil
}

// Values returns a copy of the element slice.
func (a *ArrayValue) Values() []MetaValue {
	out := make([]MetaValue, len(a.elements))
	copy(out, a.elements)
	return out
}

// Equal compares elements positionally.
func (a *ArrayValue) Equal(other MetaValue) bool {
	o, ok := other.(*ArrayValue)
	if !ok || o == nil {
		return false
	}
	if !a.metaType.Equal(o.metaType) || len(a.elements) != len(o.elements) {
		return false
	}
	for i := range a.elements {
		if !ValuesEqual(a.elements[i], o.elements[i]) {
			return false
		}
	}
	return true
}

// Hash implements MetaValue.
func (a *ArrayValue) Hash() int32 {
	h := a.metaType.Hash()
	for _, e := range a.elements {
		h = 31*h + hashValue(e)
	}
	return h
}

// Clone implements MetaValue.
func (a *ArrayValue) Clone() MetaValue {
	out := make([]MetaValue, len(a.elements))
	for i, e := range a.elements {
		out[i] = CloneValue(e)
	}
	return &ArrayValue{metaType: a.metaType, elements: out}
}

func (a *ArrayValue) String() string {
	parts := make([]string, len(a.elements))
	for i, e := range a.elements {
		parts[i] = valueString(e)
	}
	return a.metaType.className + "[" + strings.Join(parts, ",") + "]"
}

func (a *ArrayValue) sealedValue() {}

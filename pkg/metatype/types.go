package metatype

import (
	"fmt"
)

// Kind identifies the variant of a MetaType.
type Kind int

const (
	// KindSimple is a scalar type.
	KindSimple Kind = iota
	// KindEnum is a closed set of string tokens.
	KindEnum
	// KindComposite is a fixed set of named, typed items.
	KindComposite
	// KindCompositeMap is a map of composite entries keyed by one index item.
	KindCompositeMap
	// KindTable is a set of composite rows keyed by one or more index columns.
	KindTable
	// KindArray is a fixed-length, possibly multi-dimensional sequence.
	KindArray
	// KindCollection is an unordered homogeneous sequence.
	KindCollection
	// KindMap is a generic key/value map.
	KindMap
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindEnum:
		return "enum"
	case KindComposite:
		return "composite"
	case KindCompositeMap:
		return "composite-map"
	case KindTable:
		return "table"
	case KindArray:
		return "array"
	case KindCollection:
		return "collection"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Class names of the non-simple variants.
const (
	ClassEnum         = "EnumValue"
	ClassComposite    = "CompositeValue"
	ClassCompositeMap = "CompositeMapValue"
	ClassTable        = "TableValue"
	ClassCollection   = "CollectionValue"
	ClassMap          = "MapValue"
)

// MetaType is an immutable descriptor for one value shape.
//
// The set of implementations is closed: SimpleType, EnumType, CompositeType,
// CompositeMapType, TableType, ArrayType, CollectionType and MapType.
type MetaType interface {
	// ClassName is the class of values described by the type.
	ClassName() string
	// TypeName is the name of the type.
	TypeName() string
	// Description is a human readable description.
	Description() string
	// Kind returns the variant.
	Kind() Kind

	IsSimple() bool
	IsEnum() bool
	IsComposite() bool
	IsCompositeMap() bool
	IsTable() bool
	IsArray() bool
	IsCollection() bool
	IsMap() bool

	// IsValue reports whether v is a value of this type. It never panics.
	IsValue(v interface{}) bool
	// Equal reports structural equality.
	Equal(other MetaType) bool
	// Hash is consistent with Equal.
	Hash() int32

	String() string

	sealed()
}

type baseType struct {
	className   string
	typeName    string
	description string
	kind        Kind
}

func (b *baseType) ClassName() string    { return b.className }
func (b *baseType) TypeName() string     { return b.typeName }
func (b *baseType) Description() string  { return b.description }
func (b *baseType) Kind() Kind           { return b.kind }
func (b *baseType) IsSimple() bool       { return b.kind == KindSimple }
func (b *baseType) IsEnum() bool         { return b.kind == KindEnum }
func (b *baseType) IsComposite() bool    { return b.kind == KindComposite }
func (b *baseType) IsCompositeMap() bool { return b.kind == KindCompositeMap }
func (b *baseType) IsTable() bool        { return b.kind == KindTable }
func (b *baseType) IsArray() bool        { return b.kind == KindArray }
func (b *baseType) IsCollection() bool   { return b.kind == KindCollection }
func (b *baseType) IsMap() bool          { return b.kind == KindMap }
func (b *baseType) sealed()              {}

// TypesEqual compares two possibly nil types.
func TypesEqual(a, b MetaType) bool {
	if isNilType(a) || isNilType(b) {
		return isNilType(a) && isNilType(b)
	}
	return a.Equal(b)
}

func isNilType(t MetaType) bool {
	if t == nil {
		return true
	}
	switch v := t.(type) {
	case *SimpleType:
		return v == nil
	case *EnumType:
		return v == nil
	case *CompositeType:
		return v == nil
	case *CompositeMapType:
		return v == nil
	case *TableType:
		return v == nil
	case *ArrayType:
		return v == nil
	case *CollectionType:
		return v == nil
	case *MapType:
		return v == nil
	}
	return false
}

// hashString is the classic 31-multiplier string hash over runes.
func hashString(s string) int32 {
	var h int32
	for _, r := range s {
		h = 31*h + int32(r)
	}
	return h
}

func hashType(t MetaType) int32 {
	if isNilType(t) {
		return 0
	}
	return t.Hash()
}

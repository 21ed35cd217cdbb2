package metatype

import (
	"cmp"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Char is the Go representation of a character scalar.
type Char rune

// ObjectName is the Go representation of a named-object scalar.
type ObjectName string

// Scalar identifies the scalar kind of a SimpleType. The boxed and primitive
// forms of one kind share a Scalar, which acts as the primitive discriminator.
type Scalar int

const (
	ScalarBoolean Scalar = iota + 1
	ScalarByte
	ScalarCharacter
	ScalarShort
	ScalarInteger
	ScalarLong
	ScalarFloat
	ScalarDouble
	ScalarString
	ScalarDate
	ScalarBigInteger
	ScalarBigDecimal
	ScalarNamedObject
	ScalarVoid
)

// IsNumeric reports whether values of the scalar take part in numeric promotion.
func (s Scalar) IsNumeric() bool {
	switch s {
	case ScalarByte, ScalarShort, ScalarInteger, ScalarLong,
		ScalarFloat, ScalarDouble, ScalarBigInteger, ScalarBigDecimal:
		return true
	}
	return false
}

func (s Scalar) isFloating() bool {
	return s == ScalarFloat || s == ScalarDouble
}

// SimpleType is a singleton scalar type. Instances are only ever obtained from
// the package variables or ResolveSimple, so pointer identity is equality.
type SimpleType struct {
	baseType
	scalar    Scalar
	primitive bool
}

// Simple type singletons.
var (
	Boolean            = newSimple(ScalarBoolean, false, "*bool", "boolean, nillable")
	BooleanPrimitive   = newSimple(ScalarBoolean, true, "bool", "boolean")
	Byte               = newSimple(ScalarByte, false, "*int8", "8-bit signed integer, nillable")
	BytePrimitive      = newSimple(ScalarByte, true, "int8", "8-bit signed integer")
	Character          = newSimple(ScalarCharacter, false, "*metatype.Char", "character, nillable")
	CharacterPrimitive = newSimple(ScalarCharacter, true, "metatype.Char", "character")
	Short              = newSimple(ScalarShort, false, "*int16", "16-bit signed integer, nillable")
	ShortPrimitive     = newSimple(ScalarShort, true, "int16", "16-bit signed integer")
	Integer            = newSimple(ScalarInteger, false, "*int32", "32-bit signed integer, nillable")
	IntegerPrimitive   = newSimple(ScalarInteger, true, "int32", "32-bit signed integer")
	Long               = newSimple(ScalarLong, false, "*int64", "64-bit signed integer, nillable")
	LongPrimitive      = newSimple(ScalarLong, true, "int64", "64-bit signed integer")
	Float              = newSimple(ScalarFloat, false, "*float32", "32-bit floating point, nillable")
	FloatPrimitive     = newSimple(ScalarFloat, true, "float32", "32-bit floating point")
	Double             = newSimple(ScalarDouble, false, "*float64", "64-bit floating point, nillable")
	DoublePrimitive    = newSimple(ScalarDouble, true, "float64", "64-bit floating point")
	String             = newSimple(ScalarString, false, "string", "string")
	Date               = newSimple(ScalarDate, false, "time.Time", "point in time")
	BigInteger         = newSimple(ScalarBigInteger, false, "*big.Int", "arbitrary precision integer")
	BigDecimal         = newSimple(ScalarBigDecimal, false, "*apd.Decimal", "arbitrary precision decimal")
	NamedObject        = newSimple(ScalarNamedObject, false, "metatype.ObjectName", "object name")
	Void               = newSimple(ScalarVoid, false, "void", "no value")
)

var simpleRegistry = map[string]*SimpleType{}

func init() {
	for _, t := range []*SimpleType{
		Boolean, BooleanPrimitive, Byte, BytePrimitive, Character, CharacterPrimitive,
		Short, ShortPrimitive, Integer, IntegerPrimitive, Long, LongPrimitive,
		Float, FloatPrimitive, Double, DoublePrimitive, String, Date,
		BigInteger, BigDecimal, NamedObject, Void,
	} {
		simpleRegistry[t.className] = t
	}
}

func newSimple(s Scalar, primitive bool, className, description string) *SimpleType {
	return &SimpleType{
		baseType: baseType{
			className:   className,
			typeName:    className,
			description: description,
			kind:        KindSimple,
		},
		scalar:    s,
		primitive: primitive,
	}
}

// ResolveSimple returns the canonical singleton for a class name. Every decode
// boundary goes through here so identity equality holds after a round trip.
func ResolveSimple(className string) (*SimpleType, bool) {
	t, ok := simpleRegistry[className]
	return t, ok
}

// SimpleTypes returns all simple type singletons.
func SimpleTypes() []*SimpleType {
	out := make([]*SimpleType, 0, len(simpleRegistry))
	for _, t := range simpleRegistry {
		out = append(out, t)
	}
	return out
}

// Scalar returns the primitive discriminator.
func (t *SimpleType) Scalar() Scalar { return t.scalar }

// IsPrimitive reports whether the type is the non-nillable form.
func (t *SimpleType) IsPrimitive() bool { return t.primitive }

// IsNumeric reports whether values take part in cross-type numeric comparison.
func (t *SimpleType) IsNumeric() bool { return t.scalar.IsNumeric() }

// IsValue reports whether v is a *SimpleValue bound to exactly this type.
func (t *SimpleType) IsValue(v interface{}) bool {
	sv, ok := v.(*SimpleValue)
	if !ok || sv == nil {
		return false
	}
	return sv.metaType == t
}

// Equal is identity: simple types are singletons.
func (t *SimpleType) Equal(other MetaType) bool {
	o, ok := other.(*SimpleType)
	return ok && o == t
}

// EqualIgnorePrimitive reports whether both types share a scalar kind.
func (t *SimpleType) EqualIgnorePrimitive(other MetaType) bool {
	o, ok := other.(*SimpleType)
	return ok && o != nil && o.scalar == t.scalar
}

// Hash implements MetaType.
func (t *SimpleType) Hash() int32 { return hashString(t.className) }

func (t *SimpleType) String() string { return t.className }

// accepts reports whether a Go value has the representation of this type.
func (t *SimpleType) accepts(v interface{}) bool {
	if v == nil {
		return t.scalar == ScalarVoid || !t.primitive
	}
	switch t.scalar {
	case ScalarBoolean:
		_, ok := v.(bool)
		return ok
	case ScalarByte:
		_, ok := v.(int8)
		return ok
	case ScalarCharacter:
		_, ok := v.(Char)
		return ok
	case ScalarShort:
		_, ok := v.(int16)
		return ok
	case ScalarInteger:
		_, ok := v.(int32)
		return ok
	case ScalarLong:
		_, ok := v.(int64)
		return ok
	case ScalarFloat:
		_, ok := v.(float32)
		return ok
	case ScalarDouble:
		_, ok := v.(float64)
		return ok
	case ScalarString:
		_, ok := v.(string)
		return ok
	case ScalarDate:
		_, ok := v.(time.Time)
		return ok
	case ScalarBigInteger:
		b, ok := v.(*big.Int)
		return ok && b != nil
	case ScalarBigDecimal:
		d, ok := v.(*apd.Decimal)
		return ok && d != nil
	case ScalarNamedObject:
		_, ok := v.(ObjectName)
		return ok
	}
	return false
}

// compareScalar orders two non-nil values of the same scalar kind.
func compareScalar(s Scalar, a, b interface{}) int {
	switch s {
	case ScalarBoolean:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case ScalarByte:
		return cmp.Compare(a.(int8), b.(int8))
	case ScalarCharacter:
		return cmp.Compare(a.(Char), b.(Char))
	case ScalarShort:
		return cmp.Compare(a.(int16), b.(int16))
	case ScalarInteger:
		return cmp.Compare(a.(int32), b.(int32))
	case ScalarLong:
		return cmp.Compare(a.(int64), b.(int64))
	case ScalarFloat:
		return cmp.Compare(a.(float32), b.(float32))
	case ScalarDouble:
		return cmp.Compare(a.(float64), b.(float64))
	case ScalarString:
		return strings.Compare(a.(string), b.(string))
	case ScalarDate:
		return a.(time.Time).Compare(b.(time.Time))
	case ScalarBigInteger:
		return a.(*big.Int).Cmp(b.(*big.Int))
	case ScalarBigDecimal:
		return a.(*apd.Decimal).Cmp(b.(*apd.Decimal))
	case ScalarNamedObject:
		return strings.Compare(string(a.(ObjectName)), string(b.(ObjectName)))
	}
	return 0
}

// hashScalar is consistent with compareScalar(...) == 0.
func hashScalar(s Scalar, v interface{}) int32 {
	if v == nil {
		return 0
	}
	switch s {
	case ScalarBoolean:
		if v.(bool) {
			return 1231
		}
		return 1237
	case ScalarByte:
		return int32(v.(int8))
	case ScalarCharacter:
		return int32(v.(Char))
	case ScalarShort:
		return int32(v.(int16))
	case ScalarInteger:
		return v.(int32)
	case ScalarLong:
		return foldInt64(v.(int64))
	case ScalarFloat:
		f := v.(float32)
		if f == 0 || math.IsNaN(float64(f)) {
			return 0
		}
		return int32(math.Float32bits(f))
	case ScalarDouble:
		f := v.(float64)
		if f == 0 || math.IsNaN(f) {
			return 0
		}
		return foldInt64(int64(math.Float64bits(f)))
	case ScalarString:
		return hashString(v.(string))
	case ScalarDate:
		return foldInt64(v.(time.Time).UnixNano())
	case ScalarBigInteger:
		return hashString(v.(*big.Int).String())
	case ScalarBigDecimal:
		d := v.(*apd.Decimal)
		if d.IsZero() {
			return 0
		}
		var reduced apd.Decimal
		reduced.Reduce(d)
		return hashString(reduced.String())
	case ScalarNamedObject:
		return hashString(string(v.(ObjectName)))
	}
	return 0
}

func foldInt64(v int64) int32 {
	u := uint64(v)
	return int32(u ^ (u >> 32))
}

// cloneScalar copies values with reference semantics.
func cloneScalar(v interface{}) interface{} {
	switch x := v.(type) {
	case *big.Int:
		return new(big.Int).Set(x)
	case *apd.Decimal:
		return new(apd.Decimal).Set(x)
	}
	return v
}

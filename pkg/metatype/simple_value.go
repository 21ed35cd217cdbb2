package metatype

import (
	"cmp"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/openfroyo/detyped/pkg/faults"
)

// SimpleValue holds one scalar of a SimpleType.
type SimpleValue struct {
	metaType *SimpleType
	value    interface{}
}

// NewSimpleValue creates a value of t. The Go representation of v must match
// the type; nil is only accepted by nillable (boxed) types and Void.
func NewSimpleValue(t *SimpleType, v interface{}) (*SimpleValue, error) {
	if t == nil {
		return nil, faults.NewSchemaError("null simple meta type")
	}
	if !t.accepts(v) {
		return nil, faults.NewValidationError("value %v (%T) is not a %s", v, v, t)
	}
	return &SimpleValue{metaType: t, value: v}, nil
}

// Wrap creates a value of the nillable simple type matching the Go type of v.
// Plain int is widened to Long.
func Wrap(v interface{}) (*SimpleValue, error) {
	switch x := v.(type) {
	case nil:
		return &SimpleValue{metaType: Void}, nil
	case bool:
		return &SimpleValue{metaType: Boolean, value: x}, nil
	case int8:
		return &SimpleValue{metaType: Byte, value: x}, nil
	case Char:
		return &SimpleValue{metaType: Character, value: x}, nil
	case int16:
		return &SimpleValue{metaType: Short, value: x}, nil
	case int32:
		return &SimpleValue{metaType: Integer, value: x}, nil
	case int:
		return &SimpleValue{metaType: Long, value: int64(x)}, nil
	case int64:
		return &SimpleValue{metaType: Long, value: x}, nil
	case float32:
		return &SimpleValue{metaType: Float, value: x}, nil
	case float64:
		return &SimpleValue{metaType: Double, value: x}, nil
	case string:
		return &SimpleValue{metaType: String, value: x}, nil
	case time.Time:
		return &SimpleValue{metaType: Date, value: x}, nil
	case *big.Int:
		if x == nil {
			return nil, faults.NewValidationError("nil big integer")
		}
		return &SimpleValue{metaType: BigInteger, value: x}, nil
	case *apd.Decimal:
		if x == nil {
			return nil, faults.NewValidationError("nil big decimal")
		}
		return &SimpleValue{metaType: BigDecimal, value: x}, nil
	case ObjectName:
		return &SimpleValue{metaType: NamedObject, value: x}, nil
	}
	return nil, faults.NewValidationError("no simple type for %T", v)
}

// StringValue wraps a string.
func StringValue(s string) *SimpleValue { return &SimpleValue{metaType: String, value: s} }

// IntValue wraps an int32 as Integer.
func IntValue(i int32) *SimpleValue { return &SimpleValue{metaType: Integer, value: i} }

// LongValue wraps an int64 as Long.
func LongValue(i int64) *SimpleValue { return &SimpleValue{metaType: Long, value: i} }

// BoolValue wraps a bool as Boolean.
func BoolValue(b bool) *SimpleValue { return &SimpleValue{metaType: Boolean, value: b} }

// DoubleValue wraps a float64 as Double.
func DoubleValue(f float64) *SimpleValue { return &SimpleValue{metaType: Double, value: f} }

// MetaType implements MetaValue.
func (v *SimpleValue) MetaType() MetaType { return v.metaType }

// SimpleType returns the bound type.
func (v *SimpleValue) SimpleType() *SimpleType { return v.metaType }

// Value returns the Go scalar, nil when unset.
func (v *SimpleValue) Value() interface{} { return v.value }

// SetValue replaces the scalar after checking its representation.
func (v *SimpleValue) SetValue(x interface{}) error {
	if !v.metaType.accepts(x) {
		return faults.NewValidationError("value %v (%T) is not a %s", x, x, v.metaType)
	}
	v.value = x
	return nil
}

// Equal compares values ignoring the boxed and primitive distinction.
func (v *SimpleValue) Equal(other MetaValue) bool {
	o, ok := other.(*SimpleValue)
	if !ok || o == nil {
		return false
	}
	if v == o {
		return true
	}
	if !v.metaType.EqualIgnorePrimitive(o.metaType) {
		return false
	}
	if v.value == nil || o.value == nil {
		return v.value == nil && o.value == nil
	}
	return compareScalar(v.metaType.scalar, v.value, o.value) == 0
}

// Hash implements MetaValue.
func (v *SimpleValue) Hash() int32 {
	return hashScalar(v.metaType.scalar, v.value)
}

// Clone implements MetaValue.
func (v *SimpleValue) Clone() MetaValue {
	return &SimpleValue{metaType: v.metaType, value: cloneScalar(v.value)}
}

func (v *SimpleValue) String() string {
	return fmt.Sprintf("%s:%v", v.metaType, v.value)
}

func (v *SimpleValue) sealedValue() {}

// Compare orders two simple values. Values of the same scalar kind use that
// kind's ordering, with unset values first. Two numeric values of different
// kinds are promoted to decimal if either is a decimal, otherwise to floating
// point if either is floating, otherwise to integer. Any other combination
// returns -1 in both directions, so Compare is not antisymmetric across
// incompatible kinds and must not back a sort over mixed kinds.
func (v *SimpleValue) Compare(other *SimpleValue) int {
	if other == nil {
		return -1
	}
	if v.metaType.scalar == other.metaType.scalar {
		switch {
		case v.value == nil && other.value == nil:
			return 0
		case v.value == nil:
			return -1
		case other.value == nil:
			return 1
		}
		return compareScalar(v.metaType.scalar, v.value, other.value)
	}
	a, b := v.metaType.scalar, other.metaType.scalar
	if !a.IsNumeric() || !b.IsNumeric() || v.value == nil || other.value == nil {
		return -1
	}
	switch {
	case a == ScalarBigDecimal || b == ScalarBigDecimal:
		x, errX := toDecimal(v.value)
		y, errY := toDecimal(other.value)
		if errX != nil || errY != nil {
			return cmp.Compare(toFloat64(v.value), toFloat64(other.value))
		}
		return x.Cmp(y)
	case a.isFloating() || b.isFloating():
		return cmp.Compare(toFloat64(v.value), toFloat64(other.value))
	default:
		return toBigInt(v.value).Cmp(toBigInt(other.value))
	}
}

func toFloat64(v interface{}) float64 {
	switch x := v.(type) {
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case *apd.Decimal:
		f, _ := x.Float64()
		return f
	}
	return 0
}

func toBigInt(v interface{}) *big.Int {
	switch x := v.(type) {
	case int8:
		return big.NewInt(int64(x))
	case int16:
		return big.NewInt(int64(x))
	case int32:
		return big.NewInt(int64(x))
	case int64:
		return big.NewInt(x)
	case *big.Int:
		return x
	}
	return new(big.Int)
}

// toDecimal converts a numeric scalar; floats use their shortest decimal form.
func toDecimal(v interface{}) (*apd.Decimal, error) {
	switch x := v.(type) {
	case int8:
		return apd.New(int64(x), 0), nil
	case int16:
		return apd.New(int64(x), 0), nil
	case int32:
		return apd.New(int64(x), 0), nil
	case int64:
		return apd.New(x, 0), nil
	case float32:
		d, _, err := apd.NewFromString(strconv.FormatFloat(float64(x), 'g', -1, 32))
		return d, err
	case float64:
		d, _, err := apd.NewFromString(strconv.FormatFloat(x, 'g', -1, 64))
		return d, err
	case *big.Int:
		return apd.NewWithBigInt(new(apd.BigInt).SetMathBigInt(x), 0), nil
	case *apd.Decimal:
		return x, nil
	}
	return nil, fmt.Errorf("not numeric: %T", v)
}

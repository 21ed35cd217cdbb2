package metatype

import (
	"fmt"
	"strings"

	"github.com/openfroyo/detyped/pkg/faults"
)

// EnumType is an ordered set of valid string tokens.
type EnumType struct {
	baseType
	values []string
	valid  map[string]struct{}
}

// NewEnumType creates an enum type. Tokens must be non-empty and unique.
func NewEnumType(typeName, description string, values ...string) (*EnumType, error) {
	if typeName == "" {
		return nil, faults.NewSchemaError("enum type name is empty")
	}
	if len(values) == 0 {
		return nil, faults.NewSchemaError("enum %s has no values", typeName).WithDetail("field", "values")
	}
	t := &EnumType{
		baseType: baseType{
			className:   ClassEnum,
			typeName:    typeName,
			description: description,
			kind:        KindEnum,
		},
		values: make([]string, 0, len(values)),
		valid:  make(map[string]struct{}, len(values)),
	}
	for _, v := range values {
		if v == "" {
			return nil, faults.NewSchemaError("enum %s has an empty value", typeName).WithDetail("field", "values")
		}
		if _, dup := t.valid[v]; dup {
			return nil, faults.NewSchemaError("enum %s has duplicate value %q", typeName, v).WithDetail("field", "values")
		}
		t.valid[v] = struct{}{}
		t.values = append(t.values, v)
	}
	return t, nil
}

// ValidValues returns the tokens in declaration order.
func (t *EnumType) ValidValues() []string {
	out := make([]string, len(t.values))
	copy(out, t.values)
	return out
}

// IsValid reports whether token is one of the valid values.
func (t *EnumType) IsValid(token string) bool {
	_, ok := t.valid[token]
	return ok
}

// IsValue accepts a valid raw string token or an *EnumValue of an equal type
// holding a valid token.
func (t *EnumType) IsValue(v interface{}) bool {
	switch x := v.(type) {
	case string:
		return t.IsValid(x)
	case *EnumValue:
		if x == nil {
			return false
		}
		return t.Equal(x.metaType) && t.IsValid(x.value)
	}
	return false
}

// Equal compares type name and the ordered token list.
func (t *EnumType) Equal(other MetaType) bool {
	o, ok := other.(*EnumType)
	if !ok || o == nil {
		return false
	}
	if t == o {
		return true
	}
	if t.typeName != o.typeName || len(t.values) != len(o.values) {
		return false
	}
	for i := range t.values {
		if t.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// Hash implements MetaType.
func (t *EnumType) Hash() int32 {
	h := hashString(t.typeName)
	for _, v := range t.values {
		h = 31*h + hashString(v)
	}
	return h
}

func (t *EnumType) String() string {
	return fmt.Sprintf("%s{%s}", t.typeName, strings.Join(t.values, ","))
}

// EnumValue holds a token of an EnumType. The token is checked by Validate and
// by the type's IsValue, not at construction.
type EnumValue struct {
	metaType *EnumType
	value    string
}

// NewEnumValue binds token to t.
func NewEnumValue(t *EnumType, token string) (*EnumValue, error) {
	if t == nil {
		return nil, faults.NewSchemaError("null enum meta type")
	}
	return &EnumValue{metaType: t, value: token}, nil
}

// MetaType implements MetaValue.
func (v *EnumValue) MetaType() MetaType { return v.metaType }

// EnumType returns the bound type.
func (v *EnumValue) EnumType() *EnumType { return v.metaType }

// Value returns the token.
func (v *EnumValue) Value() string { return v.value }

// SetValue replaces the token.
func (v *EnumValue) SetValue(token string) { v.value = token }

// Validate checks the token against the bound type.
func (v *EnumValue) Validate() error {
	if !v.metaType.IsValid(v.value) {
		return faults.NewValidationError("%q is not a valid value of %s", v.value, v.metaType.typeName)
	}
	return nil
}

// Equal implements MetaValue.
func (v *EnumValue) Equal(other MetaValue) bool {
	o, ok := other.(*EnumValue)
	if !ok || o == nil {
		return false
	}
	return v.metaType.Equal(o.metaType) && v.value == o.value
}

// Hash implements MetaValue.
func (v *EnumValue) Hash() int32 { return hashString(v.value) }

// Clone implements MetaValue.
func (v *EnumValue) Clone() MetaValue {
	return &EnumValue{metaType: v.metaType, value: v.value}
}

func (v *EnumValue) String() string {
	return v.metaType.typeName + ":" + v.value
}

func (v *EnumValue) sealedValue() {}

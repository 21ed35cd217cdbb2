package jsonvalue

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
)

// FromJSON builds a value of t from a decoded JSON tree. Objects must be
// map[string]interface{}, arrays []interface{}, and numbers json.Number or a
// Go numeric type. JSON null yields a nil value. Input of the wrong shape is
// rejected, never coerced.
func FromJSON(in interface{}, t metatype.MetaType) (metatype.MetaValue, error) {
	if t == nil {
		return nil, faults.NewSchemaError("null meta type")
	}
	return decodeValue(path{}, in, t)
}

type path []string

func (p path) field(name string) path {
	return append(append(path(nil), p...), name)
}

func (p path) index(i int) path {
	return append(append(path(nil), p...), "["+strconv.Itoa(i)+"]")
}

func (p path) String() string {
	var b strings.Builder
	for i, s := range p {
		if i > 0 && !strings.HasPrefix(s, "[") {
			b.WriteByte('.')
		}
		b.WriteString(s)
	}
	return b.String()
}

func decodeErrorf(p path, format string, args ...interface{}) *faults.Error {
	msg := fmt.Sprintf(format, args...)
	if len(p) > 0 {
		msg = p.String() + ": " + msg
	}
	e := faults.NewValidationError("%s", msg).WithCode(faults.ErrCodeDecode)
	if len(p) > 0 {
		e = e.WithDetail("path", p.String())
	}
	return e
}

func decodeValue(p path, in interface{}, t metatype.MetaType) (metatype.MetaValue, error) {
	if in == nil {
		return nil, nil
	}
	var (
		v   metatype.MetaValue
		err error
	)
	switch mt := t.(type) {
	case *metatype.SimpleType:
		v, err = decodeSimple(p, in, mt)
	case *metatype.EnumType:
		v, err = decodeEnum(p, in, mt)
	case *metatype.CompositeType:
		v, err = decodeComposite(p, in, mt)
	case *metatype.CompositeMapType:
		v, err = decodeCompositeMap(p, in, mt)
	case *metatype.TableType:
		v, err = decodeTable(p, in, mt)
	case *metatype.ArrayType:
		v, err = decodeArray(p, in, mt)
	case *metatype.CollectionType:
		v, err = decodeCollection(p, in, mt)
	case *metatype.MapType:
		v, err = decodeMap(p, in, mt)
	default:
		return nil, decodeErrorf(p, "unsupported meta type %T", t)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func decodeEnum(p path, in interface{}, t *metatype.EnumType) (*metatype.EnumValue, error) {
	s, ok := in.(string)
	if !ok {
		return nil, decodeErrorf(p, "expected a string for enum %s, got %s", t.TypeName(), jsonKind(in))
	}
	if !t.IsValid(s) {
		return nil, decodeErrorf(p, "%q is not one of %s", s, strings.Join(t.ValidValues(), ","))
	}
	return metatype.NewEnumValue(t, s)
}

func decodeComposite(p path, in interface{}, t *metatype.CompositeType) (*metatype.CompositeValue, error) {
	obj, ok := in.(map[string]interface{})
	if !ok {
		return nil, decodeErrorf(p, "expected an object for %s, got %s", t.TypeName(), jsonKind(in))
	}
	items := make(map[string]metatype.MetaValue, len(obj))
	for name, raw := range obj {
		itemType, ok := t.ItemType(name)
		if !ok {
			return nil, decodeErrorf(p, "no item %s in composite %s", name, t.TypeName()).
				WithCode(faults.ErrCodeUnknownItem)
		}
		v, err := decodeValue(p.field(name), raw, itemType)
		if err != nil {
			return nil, err
		}
		items[name] = v
	}
	cv, err := metatype.NewCompositeValue(t, items)
	if err != nil {
		return nil, wrapDecode(p, err)
	}
	return cv, nil
}

func decodeCompositeMap(p path, in interface{}, t *metatype.CompositeMapType) (*metatype.CompositeMapValue, error) {
	list, ok := in.([]interface{})
	if !ok {
		return nil, decodeErrorf(p, "expected an array for %s, got %s", t.TypeName(), jsonKind(in))
	}
	mv, err := metatype.NewCompositeMapValue(t)
	if err != nil {
		return nil, err
	}
	for i, raw := range list {
		ep := p.index(i)
		entry, err := decodeComposite(ep, raw, t.EntryType())
		if err != nil {
			return nil, err
		}
		key, _ := entry.Get(t.IndexName())
		if !metatype.IsNil(key) && mv.ContainsKey(key) {
			return nil, decodeErrorf(ep, "duplicate key %s", key).WithCode(faults.ErrCodeDuplicate)
		}
		if _, err := mv.Put(entry); err != nil {
			return nil, wrapDecode(ep, err)
		}
	}
	return mv, nil
}

func decodeTable(p path, in interface{}, t *metatype.TableType) (*metatype.TableValue, error) {
	list, ok := in.([]interface{})
	if !ok {
		return nil, decodeErrorf(p, "expected an array for %s, got %s", t.TypeName(), jsonKind(in))
	}
	tv, err := metatype.NewTableValue(t)
	if err != nil {
		return nil, err
	}
	for i, raw := range list {
		rp := p.index(i)
		row, err := decodeComposite(rp, raw, t.RowType())
		if err != nil {
			return nil, err
		}
		if err := tv.Put(row); err != nil {
			return nil, wrapDecode(rp, err)
		}
	}
	return tv, nil
}

func decodeArray(p path, in interface{}, t *metatype.ArrayType) (*metatype.ArrayValue, error) {
	list, ok := in.([]interface{})
	if !ok {
		return nil, decodeErrorf(p, "expected an array for %s, got %s", t.TypeName(), jsonKind(in))
	}
	component := t.ComponentType()
	elements := make([]metatype.MetaValue, len(list))
	for i, raw := range list {
		v, err := decodeValue(p.index(i), raw, component)
		if err != nil {
			return nil, err
		}
		elements[i] = v
	}
	av, err := metatype.NewArrayValue(t, elements...)
	if err != nil {
		return nil, wrapDecode(p, err)
	}
	return av, nil
}

func decodeCollection(p path, in interface{}, t *metatype.CollectionType) (*metatype.CollectionValue, error) {
	list, ok := in.([]interface{})
	if !ok {
		return nil, decodeErrorf(p, "expected an array for %s, got %s", t.TypeName(), jsonKind(in))
	}
	cv, err := metatype.NewCollectionValue(t)
	if err != nil {
		return nil, err
	}
	for i, raw := range list {
		ep := p.index(i)
		if raw == nil {
			return nil, decodeErrorf(ep, "null collection element")
		}
		v, err := decodeValue(ep, raw, t.ElementType())
		if err != nil {
			return nil, err
		}
		if err := cv.Add(v); err != nil {
			return nil, wrapDecode(ep, err)
		}
	}
	return cv, nil
}

func decodeMap(p path, in interface{}, t *metatype.MapType) (*metatype.MapValue, error) {
	list, ok := in.([]interface{})
	if !ok {
		return nil, decodeErrorf(p, "expected an array of %s/%s objects for %s, got %s",
			metatype.MapKeyItem, metatype.MapValueItem, t.TypeName(), jsonKind(in))
	}
	mv, err := metatype.NewMapValue(t)
	if err != nil {
		return nil, err
	}
	for i, raw := range list {
		ep := p.index(i)
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return nil, decodeErrorf(ep, "expected a map entry object, got %s", jsonKind(raw))
		}
		for name := range obj {
			if name != metatype.MapKeyItem && name != metatype.MapValueItem {
				return nil, decodeErrorf(ep, "unknown map entry field %s", name).WithCode(faults.ErrCodeUnknownItem)
			}
		}
		rawKey, ok := obj[metatype.MapKeyItem]
		if !ok || rawKey == nil {
			return nil, decodeErrorf(ep, "map entry has no %s", metatype.MapKeyItem)
		}
		key, err := decodeValue(ep.field(metatype.MapKeyItem), rawKey, t.KeyType())
		if err != nil {
			return nil, err
		}
		if mv.ContainsKey(key) {
			return nil, decodeErrorf(ep, "duplicate key %s", key).WithCode(faults.ErrCodeDuplicate)
		}
		value, err := decodeValue(ep.field(metatype.MapValueItem), obj[metatype.MapValueItem], t.ValueType())
		if err != nil {
			return nil, err
		}
		if _, err := mv.Put(key, value); err != nil {
			return nil, wrapDecode(ep, err)
		}
	}
	return mv, nil
}

func decodeSimple(p path, in interface{}, t *metatype.SimpleType) (*metatype.SimpleValue, error) {
	var (
		v   interface{}
		err error
	)
	switch t.Scalar() {
	case metatype.ScalarBoolean:
		b, ok := in.(bool)
		if !ok {
			return nil, decodeErrorf(p, "expected a boolean, got %s", jsonKind(in))
		}
		v = b
	case metatype.ScalarByte:
		v, err = decodeInt(p, in, 8)
	case metatype.ScalarShort:
		v, err = decodeInt(p, in, 16)
	case metatype.ScalarInteger:
		v, err = decodeInt(p, in, 32)
	case metatype.ScalarLong:
		v, err = decodeInt(p, in, 64)
	case metatype.ScalarFloat:
		v, err = decodeFloat(p, in, 32)
	case metatype.ScalarDouble:
		v, err = decodeFloat(p, in, 64)
	case metatype.ScalarString:
		v, err = decodeString(p, in)
	case metatype.ScalarNamedObject:
		var s string
		s, err = decodeString(p, in)
		v = metatype.ObjectName(s)
	case metatype.ScalarCharacter:
		var s string
		if s, err = decodeString(p, in); err == nil {
			if utf8.RuneCountInString(s) != 1 {
				return nil, decodeErrorf(p, "expected a single character, got %q", s)
			}
			r, _ := utf8.DecodeRuneInString(s)
			v = metatype.Char(r)
		}
	case metatype.ScalarDate:
		var s string
		if s, err = decodeString(p, in); err == nil {
			ts, perr := time.Parse(time.RFC3339Nano, s)
			if perr != nil {
				return nil, decodeErrorf(p, "invalid RFC 3339 date %q", s)
			}
			v = ts
		}
	case metatype.ScalarBigInteger:
		var text string
		if text, err = numberOrString(p, in); err == nil {
			b, ok := new(big.Int).SetString(text, 10)
			if !ok {
				return nil, decodeErrorf(p, "invalid big integer %q", text)
			}
			v = b
		}
	case metatype.ScalarBigDecimal:
		var text string
		if text, err = numberOrString(p, in); err == nil {
			d, _, perr := apd.NewFromString(text)
			if perr != nil || d.Form != apd.Finite {
				return nil, decodeErrorf(p, "invalid big decimal %q", text)
			}
			v = d
		}
	case metatype.ScalarVoid:
		return nil, decodeErrorf(p, "void accepts only null, got %s", jsonKind(in))
	default:
		return nil, decodeErrorf(p, "unsupported simple type %s", t)
	}
	if err != nil {
		return nil, err
	}
	sv, err := metatype.NewSimpleValue(t, v)
	if err != nil {
		return nil, wrapDecode(p, err)
	}
	return sv, nil
}

func decodeInt(p path, in interface{}, bits int) (interface{}, error) {
	text, ok := numberText(in)
	if !ok {
		return nil, decodeErrorf(p, "expected a number, got %s", jsonKind(in))
	}
	n, err := strconv.ParseInt(text, 10, bits)
	if err != nil {
		return nil, decodeErrorf(p, "%s is not a %d-bit integer", text, bits)
	}
	switch bits {
	case 8:
		return int8(n), nil
	case 16:
		return int16(n), nil
	case 32:
		return int32(n), nil
	}
	return n, nil
}

func decodeFloat(p path, in interface{}, bits int) (interface{}, error) {
	text, ok := numberText(in)
	if !ok {
		return nil, decodeErrorf(p, "expected a number, got %s", jsonKind(in))
	}
	f, err := strconv.ParseFloat(text, bits)
	if err != nil || math.IsInf(f, 0) {
		return nil, decodeErrorf(p, "%s is not a %d-bit float", text, bits)
	}
	if bits == 32 {
		return float32(f), nil
	}
	return f, nil
}

func decodeString(p path, in interface{}) (string, error) {
	s, ok := in.(string)
	if !ok {
		return "", decodeErrorf(p, "expected a string, got %s", jsonKind(in))
	}
	return s, nil
}

// numberOrString accepts big numbers both as JSON numbers and as strings.
func numberOrString(p path, in interface{}) (string, error) {
	if s, ok := in.(string); ok {
		return s, nil
	}
	if text, ok := numberText(in); ok {
		return text, nil
	}
	return "", decodeErrorf(p, "expected a number or a numeric string, got %s", jsonKind(in))
}

// numberText returns the literal text of a JSON or Go number.
func numberText(in interface{}) (string, bool) {
	switch n := in.(type) {
	case json.Number:
		return n.String(), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case int:
		return strconv.Itoa(n), true
	case int8:
		return strconv.FormatInt(int64(n), 10), true
	case int16:
		return strconv.FormatInt(int64(n), 10), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint:
		return strconv.FormatUint(uint64(n), 10), true
	case uint32:
		return strconv.FormatUint(uint64(n), 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	}
	return "", false
}

func jsonKind(in interface{}) string {
	switch in.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	if _, ok := numberText(in); ok {
		return "number"
	}
	return fmt.Sprintf("%T", in)
}

// wrapDecode converts a value construction failure into a decode error at p.
func wrapDecode(p path, err error) error {
	return decodeErrorf(p, "%s", faultMessage(err)).WithCause(err)
}

func faultMessage(err error) string {
	if fe, ok := err.(*faults.Error); ok {
		return fe.Message
	}
	return err.Error()
}

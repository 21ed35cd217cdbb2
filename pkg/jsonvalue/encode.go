package jsonvalue

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
)

// ToJSON converts v to a JSON tree of nil, bool, string, json.Number,
// []interface{} and map[string]interface{}. A nil t uses the value's own type.
// Dates are RFC 3339 strings, characters one-rune strings, and map entries
// {"KEY": k, "VALUE": v} objects.
func ToJSON(v metatype.MetaValue, t metatype.MetaType) (interface{}, error) {
	if metatype.IsNil(v) {
		return nil, nil
	}
	if t == nil {
		t = v.MetaType()
	}
	if !t.IsValue(v) {
		return nil, faults.NewValidationError("%s is not a %s", v, t.TypeName())
	}
	return encodeValue(v)
}

func encodeValue(v metatype.MetaValue) (interface{}, error) {
	if metatype.IsNil(v) {
		return nil, nil
	}
	switch x := v.(type) {
	case *metatype.SimpleValue:
		return encodeScalar(x)
	case *metatype.EnumValue:
		return x.Value(), nil
	case *metatype.CompositeValue:
		return encodeComposite(x)
	case *metatype.CompositeMapValue:
		return encodeRows(x.Entries())
	case *metatype.TableValue:
		return encodeRows(x.Rows())
	case *metatype.ArrayValue:
		return encodeList(x.Values())
	case *metatype.CollectionValue:
		return encodeList(x.Values())
	case *metatype.MapValue:
		entries := x.Entries()
		out := make([]interface{}, 0, len(entries))
		for _, e := range entries {
			key, err := encodeValue(e.Key)
			if err != nil {
				return nil, err
			}
			value, err := encodeValue(e.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, map[string]interface{}{
				metatype.MapKeyItem:   key,
				metatype.MapValueItem: value,
			})
		}
		return out, nil
	}
	return nil, faults.NewValidationError("unsupported value %T", v)
}

func encodeComposite(c *metatype.CompositeValue) (map[string]interface{}, error) {
	keys := c.CompositeType().Keys()
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		item, _ := c.Get(k)
		enc, err := encodeValue(item)
		if err != nil {
			return nil, faults.NewValidationError("item %s: %v", k, err).WithCause(err)
		}
		out[k] = enc
	}
	return out, nil
}

func encodeRows(rows []*metatype.CompositeValue) ([]interface{}, error) {
	out := make([]interface{}, 0, len(rows))
	for _, r := range rows {
		enc, err := encodeComposite(r)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

func encodeList(values []metatype.MetaValue) ([]interface{}, error) {
	out := make([]interface{}, 0, len(values))
	for _, e := range values {
		enc, err := encodeValue(e)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

func encodeScalar(v *metatype.SimpleValue) (interface{}, error) {
	switch x := v.Value().(type) {
	case nil:
		return nil, nil
	case bool:
		return x, nil
	case int8:
		return json.Number(strconv.FormatInt(int64(x), 10)), nil
	case int16:
		return json.Number(strconv.FormatInt(int64(x), 10)), nil
	case int32:
		return json.Number(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return json.Number(strconv.FormatInt(x, 10)), nil
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, faults.NewValidationError("%v has no JSON representation", x)
		}
		return json.Number(strconv.FormatFloat(float64(x), 'g', -1, 32)), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, faults.NewValidationError("%v has no JSON representation", x)
		}
		return json.Number(strconv.FormatFloat(x, 'g', -1, 64)), nil
	case string:
		return x, nil
	case metatype.Char:
		return string(rune(x)), nil
	case metatype.ObjectName:
		return string(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case *big.Int:
		return json.Number(x.String()), nil
	case *apd.Decimal:
		if x.Form != apd.Finite {
			return nil, faults.NewValidationError("%s has no JSON representation", x)
		}
		return json.Number(x.Text('f')), nil
	}
	return nil, faults.NewValidationError("unsupported scalar %T", v.Value())
}

package jsonvalue

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
	"github.com/openfroyo/detyped/pkg/resource"
)

// Marshal encodes v as JSON text.
func Marshal(v metatype.MetaValue, t metatype.MetaType) ([]byte, error) {
	tree, err := ToJSON(v, t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// Unmarshal decodes JSON text into a value of t. Numbers keep their literal
// text so that big and exact values survive.
func Unmarshal(data []byte, t metatype.MetaType) (metatype.MetaValue, error) {
	tree, err := decodeTree(data)
	if err != nil {
		return nil, err
	}
	return FromJSON(tree, t)
}

func decodeTree(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree interface{}
	if err := dec.Decode(&tree); err != nil {
		return nil, faults.NewValidationError("invalid JSON: %v", err).WithCode(faults.ErrCodeDecode).WithCause(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, faults.NewValidationError("invalid JSON: trailing data").WithCode(faults.ErrCodeDecode)
	}
	return tree, nil
}

// DecodeParams decodes raw invocation parameters against sig. Parameters
// absent from raw stay absent; names outside sig are a signature error.
func DecodeParams(raw map[string]json.RawMessage, sig []resource.ParameterInfo) (map[string]metatype.MetaValue, error) {
	byName := make(map[string]resource.ParameterInfo, len(sig))
	for _, p := range sig {
		byName[p.Name] = p
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]metatype.MetaValue, len(raw))
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return nil, faults.NewSignatureError("unknown parameter %s, signature is (%s)", name, formatNames(sig)).
				WithDetail("parameter", name)
		}
		v, err := Unmarshal(raw[name], p.Type)
		if err != nil {
			if fe, ok := err.(*faults.Error); ok {
				return nil, fe.WithDetail("parameter", name)
			}
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// EncodeParams encodes invocation parameters for transport. Parameters whose
// name is in sig use the declared type; others use their own.
func EncodeParams(params map[string]metatype.MetaValue, sig []resource.ParameterInfo) (map[string]json.RawMessage, error) {
	types := make(map[string]metatype.MetaType, len(sig))
	for _, p := range sig {
		types[p.Name] = p.Type
	}
	out := make(map[string]json.RawMessage, len(params))
	for name, v := range params {
		data, err := Marshal(v, types[name])
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}

func formatNames(sig []resource.ParameterInfo) string {
	var b bytes.Buffer
	for i, p := range sig {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Name)
	}
	return b.String()
}

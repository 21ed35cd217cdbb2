package resource

import (
	"strings"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
)

// MatchSignature checks that params has exactly the parameters of sig and
// that each value is acceptable for its parameter.
func MatchSignature(sig []ParameterInfo, params map[string]metatype.MetaValue) error {
	if len(sig) != len(params) {
		return faults.NewSignatureError("got %d parameters (%s), signature has %d (%s)",
			len(params), strings.Join(paramNames(params), ","), len(sig), formatSignature(sig))
	}
	for _, p := range sig {
		v, ok := params[p.Name]
		if !ok {
			return faults.NewSignatureError("missing parameter %s, signature is (%s)", p.Name, formatSignature(sig)).
				WithDetail("parameter", p.Name)
		}
		if !p.IsValue(v) {
			return faults.NewSignatureError("parameter %s: %s is not a %s", p.Name, valueOrNull(v), p.Type.TypeName()).
				WithDetail("parameter", p.Name)
		}
	}
	return nil
}

// Matches reports whether params satisfy sig.
func Matches(sig []ParameterInfo, params map[string]metatype.MetaValue) bool {
	return MatchSignature(sig, params) == nil
}

// ResolveOperationInfo returns the operation named name whose signature params
// satisfy. An empty name matches any operation.
func ResolveOperationInfo(info *Info, name string, params map[string]metatype.MetaValue) (OperationInfo, bool) {
	if info == nil {
		return OperationInfo{}, false
	}
	for _, op := range info.operations {
		if (name == "" || op.Name == name) && Matches(op.Signature, params) {
			return op, true
		}
	}
	return OperationInfo{}, false
}

// ResolveAdderInfo returns the adder named name whose signature params
// satisfy. An empty name matches any adder.
func ResolveAdderInfo(info *Info, name string, params map[string]metatype.MetaValue) (AdderInfo, bool) {
	if info == nil {
		return AdderInfo{}, false
	}
	for _, a := range info.adders {
		if (name == "" || a.Name == name) && Matches(a.Signature, params) {
			return a, true
		}
	}
	return AdderInfo{}, false
}

func formatSignature(sig []ParameterInfo) string {
	parts := make([]string, len(sig))
	for i, p := range sig {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}

func paramNames(params map[string]metatype.MetaValue) []string {
	inv := ManagementInvocation{Params: params}
	return inv.ParameterNames()
}

func valueOrNull(v metatype.MetaValue) string {
	if metatype.IsNil(v) {
		return "null"
	}
	return v.String()
}

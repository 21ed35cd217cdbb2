package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
	"github.com/openfroyo/detyped/pkg/resource"
)

// simpleNames maps the short type names of schema documents to simple types.
// Class names such as "int32" or "*int64" resolve through
// metatype.ResolveSimple.
var simpleNames = map[string]metatype.MetaType{
	"bool":       metatype.Boolean,
	"boolean":    metatype.Boolean,
	"byte":       metatype.Byte,
	"char":       metatype.Character,
	"short":      metatype.Short,
	"int":        metatype.Integer,
	"integer":    metatype.Integer,
	"long":       metatype.Long,
	"float":      metatype.Float,
	"double":     metatype.Double,
	"string":     metatype.String,
	"date":       metatype.Date,
	"bigint":     metatype.BigInteger,
	"biginteger": metatype.BigInteger,
	"bigdecimal": metatype.BigDecimal,
	"decimal":    metatype.BigDecimal,
	"objectname": metatype.NamedObject,
	"void":       metatype.Void,
}

// Build resolves the named types and resource types of doc into frozen
// metatypes and resource infos.
func Build(doc *SchemaDocument) (*Catalog, error) {
	if doc == nil {
		return nil, faults.NewSchemaError("no schema document")
	}
	b := &builder{
		doc:   doc,
		types: make(map[string]metatype.MetaType, len(doc.Types)),
		infos: make(map[string]*resource.Info, len(doc.Resources)),
	}

	names := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := b.named(name, "types."+name); err != nil {
			return nil, err
		}
	}

	rootName := doc.RootName()
	if _, ok := doc.Resources[rootName]; !ok {
		return nil, faults.NewSchemaError("root resource %q is not declared", rootName).
			WithCode(faults.ErrCodeNotFound).WithDetail("path", "resources")
	}
	root, err := b.resourceInfo(rootName)
	if err != nil {
		return nil, err
	}

	for _, name := range sortedKeys(doc.Resources) {
		if _, reached := b.infos[name]; !reached {
			return nil, faults.NewSchemaError("resource %s is not reachable from %s", name, rootName).
				WithDetail("path", "resources."+name)
		}
	}

	return &Catalog{
		Types:    b.types,
		Infos:    b.infos,
		Root:     root,
		Document: doc,
	}, nil
}

type builder struct {
	doc   *SchemaDocument
	types map[string]metatype.MetaType
	infos map[string]*resource.Info

	typeStack     []string
	resourceStack []string
}

// named resolves a declared type, memoized.
func (b *builder) named(name, path string) (metatype.MetaType, error) {
	if t, ok := b.types[name]; ok {
		return t, nil
	}
	if i := indexOf(b.typeStack, name); i >= 0 {
		chain := append(append([]string(nil), b.typeStack[i:]...), name)
		return nil, faults.NewSchemaError("type %s refers to itself: %s", name, strings.Join(chain, " -> ")).
			WithDetail("path", path)
	}
	spec, ok := b.doc.Types[name]
	if !ok {
		return nil, faults.NewSchemaError("unknown type %q", name).
			WithCode(faults.ErrCodeNotFound).WithDetail("path", path)
	}

	b.typeStack = append(b.typeStack, name)
	t, err := b.resolve(spec, name, "types."+name)
	b.typeStack = b.typeStack[:len(b.typeStack)-1]
	if err != nil {
		return nil, err
	}
	b.types[name] = t
	return t, nil
}

// resolve builds the type described by spec. name is used for inline
// enum, composite, table and composite map types.
func (b *builder) resolve(spec TypeSpec, name, path string) (metatype.MetaType, error) {
	if spec.Nillable {
		return nil, faults.NewSchemaError("only signature parameters may be nillable").WithDetail("path", path)
	}
	return b.resolveKind(spec, name, path)
}

func (b *builder) resolveKind(spec TypeSpec, name, path string) (metatype.MetaType, error) {
	switch {
	case spec.Ref != "":
		return b.resolveRef(spec.Ref, path)

	case spec.Enum != nil:
		t, err := metatype.NewEnumType(name, spec.Description, spec.Enum...)
		return t, withPath(err, path)

	case spec.Composite != nil:
		t, err := b.composite(name, spec.Description, spec.Composite, path+".composite")
		if err != nil {
			return nil, err
		}
		return t, nil

	case spec.Array != nil:
		elem, err := b.resolve(spec.Array.Of, name+"Element", path+".array.of")
		if err != nil {
			return nil, err
		}
		dim := spec.Array.Dimension
		if dim == 0 {
			dim = 1
		}
		t, err := metatype.NewArrayType(dim, elem)
		return t, withPath(err, path)

	case spec.Collection != nil:
		elem, err := b.resolve(*spec.Collection, name+"Element", path+".collection")
		if err != nil {
			return nil, err
		}
		t, err := metatype.NewCollectionType(elem)
		return t, withPath(err, path)

	case spec.Map != nil:
		key, err := b.resolve(spec.Map.Key, name+"Key", path+".map.key")
		if err != nil {
			return nil, err
		}
		value, err := b.resolve(spec.Map.Value, name+"Value", path+".map.value")
		if err != nil {
			return nil, err
		}
		t, err := metatype.NewMapType(key, value)
		return t, withPath(err, path)

	case spec.Table != nil:
		row, err := b.composite(name+"Row", "", spec.Table.Row, path+".table.row")
		if err != nil {
			return nil, err
		}
		t, err := metatype.NewTableType(name, spec.Description, row, spec.Table.Index...)
		return t, withPath(err, path)

	case spec.CompositeMap != nil:
		entry, err := b.composite(name+"Entry", "", spec.CompositeMap.Entry, path+".compositeMap.entry")
		if err != nil {
			return nil, err
		}
		t, err := metatype.NewCompositeMapType(name, spec.Description, entry, spec.CompositeMap.Index)
		return t, withPath(err, path)

	default:
		return nil, faults.NewSchemaError("empty type declaration").WithDetail("path", path)
	}
}

func (b *builder) resolveRef(ref, path string) (metatype.MetaType, error) {
	if t, ok := simpleNames[ref]; ok {
		return t, nil
	}
	if t, ok := metatype.ResolveSimple(ref); ok {
		return t, nil
	}
	return b.named(ref, path)
}

func (b *builder) composite(name, description string, items ItemList, path string) (*metatype.CompositeType, error) {
	out := make([]metatype.Item, 0, len(items))
	for _, it := range items {
		t, err := b.resolve(it.Type, name+title(it.Name), path+"."+it.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, metatype.Item{Name: it.Name, Description: it.Type.Description, Type: t})
	}
	t, err := metatype.NewCompositeType(name, description, out...)
	if err != nil {
		return nil, withPath(err, path)
	}
	return t, nil
}

func (b *builder) signature(owner string, items ItemList, path string) ([]resource.ParameterInfo, error) {
	out := make([]resource.ParameterInfo, 0, len(items))
	for _, it := range items {
		t, err := b.resolveKind(it.Type, owner+title(it.Name), path+"."+it.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, resource.ParameterInfo{
			Name:        it.Name,
			Type:        t,
			Description: it.Type.Description,
			Nillable:    it.Type.Nillable,
		})
	}
	return out, nil
}

// resourceInfo builds the info of a resource and, recursively, of its
// children. Infos are shared between parents that declare the same child.
func (b *builder) resourceInfo(name string) (*resource.Info, error) {
	if info, ok := b.infos[name]; ok {
		return info, nil
	}
	path := "resources." + name
	if i := indexOf(b.resourceStack, name); i >= 0 {
		chain := append(append([]string(nil), b.resourceStack[i:]...), name)
		return nil, faults.NewSchemaError("resource %s contains itself: %s", name, strings.Join(chain, " -> ")).
			WithDetail("path", path)
	}
	spec, ok := b.doc.Resources[name]
	if !ok {
		return nil, faults.NewSchemaError("unknown resource %q", name).
			WithCode(faults.ErrCodeNotFound).WithDetail("path", path)
	}

	b.resourceStack = append(b.resourceStack, name)
	defer func() { b.resourceStack = b.resourceStack[:len(b.resourceStack)-1] }()

	var ib *resource.InfoBuilder
	if name == b.doc.RootName() {
		if spec.Identifier != "" {
			return nil, faults.NewSchemaError("root resource %s has an identifier", name).
				WithDetail("path", path+".identifier")
		}
		ib = resource.NewRootInfoBuilder(spec.Description)
	} else {
		if spec.Identifier == "" {
			return nil, faults.NewSchemaError("resource %s has no identifier", name).
				WithDetail("path", path+".identifier")
		}
		idType, err := parseIdentifier(spec.Identifier)
		if err != nil {
			return nil, withPath(err, path+".identifier")
		}
		ib = resource.NewInfoBuilder(idType, spec.Description)
	}

	for _, it := range spec.Attributes {
		t, err := b.resolve(it.Type, name+title(it.Name), path+".attributes."+it.Name)
		if err != nil {
			return nil, err
		}
		ib.Attribute(it.Name, t, it.Type.Description)
	}

	for i, op := range spec.Operations {
		opPath := fmt.Sprintf("%s.operations[%d]", path, i)
		sig, err := b.signature(name+title(op.Name), op.Signature, opPath+".signature")
		if err != nil {
			return nil, err
		}
		var ret metatype.MetaType
		if op.Returns != nil {
			if ret, err = b.resolve(*op.Returns, name+title(op.Name)+"Result", opPath+".returns"); err != nil {
				return nil, err
			}
		}
		ib.Operation(resource.OperationInfo{
			Name:          op.Name,
			Description:   op.Description,
			Signature:     sig,
			ReturnType:    ret,
			Usage:         resource.Usage(op.Usage),
			Impact:        resource.Impact(op.Impact),
			RestartPolicy: resource.RestartPolicy(op.Restart),
			Fields:        resource.Fields(op.Fields),
		})
	}

	for i, adder := range spec.Adders {
		adderPath := fmt.Sprintf("%s.adders[%d]", path, i)
		sig, err := b.signature(name+title(adder.Name), adder.Signature, adderPath+".signature")
		if err != nil {
			return nil, err
		}
		ib.Adder(resource.AdderInfo{
			Name:          adder.Name,
			Description:   adder.Description,
			Signature:     sig,
			RestartPolicy: resource.RestartPolicy(adder.Restart),
			Fields:        resource.Fields(adder.Fields),
		})
	}

	for i, child := range spec.Children {
		childPath := fmt.Sprintf("%s.children[%d]", path, i)
		card, err := parseCardinality(child.Cardinality)
		if err != nil {
			return nil, withPath(err, childPath+".cardinality")
		}
		info, err := b.resourceInfo(child.Resource)
		if err != nil {
			return nil, err
		}
		ib.Child(info, card)
	}

	for _, k := range sortedKeys(spec.Fields) {
		ib.Field(k, spec.Fields[k])
	}

	info, err := ib.Build()
	if err != nil {
		return nil, withPath(err, path)
	}
	b.infos[name] = info
	return info, nil
}

// parseIdentifier parses "element" or "element[@attribute]".
func parseIdentifier(s string) (resource.EntityIDType, error) {
	elem, attr := s, ""
	if i := strings.IndexByte(s, '['); i >= 0 {
		if !strings.HasSuffix(s, "]") || !strings.HasPrefix(s[i:], "[@") {
			return resource.EntityIDType{}, faults.NewSchemaError("identifier %q is not of the form element[@attribute]", s)
		}
		elem, attr = s[:i], s[i+2:len(s)-1]
		if attr == "" {
			return resource.EntityIDType{}, faults.NewSchemaError("identifier %q has an empty attribute", s)
		}
	}
	return resource.NewEntityIDType(elem, attr)
}

// parseCardinality parses "min..max", "n" or "*". An empty string and "*"
// are 0..unbounded; "*" as max is unbounded.
func parseCardinality(s string) (resource.Cardinality, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return resource.ZeroUnbounded, nil
	}
	lo, hi, ranged := strings.Cut(s, "..")
	minCount, err := cardinalityBound(lo)
	if err != nil || minCount == resource.Unbounded {
		return resource.Cardinality{}, faults.NewSchemaError("cardinality %q has an invalid minimum", s)
	}
	maxCount := minCount
	if ranged {
		if maxCount, err = cardinalityBound(hi); err != nil {
			return resource.Cardinality{}, faults.NewSchemaError("cardinality %q has an invalid maximum", s)
		}
	}
	return resource.NewCardinality(minCount, maxCount)
}

func cardinalityBound(s string) (int, error) {
	if s == "*" {
		return resource.Unbounded, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid bound %q", s)
	}
	return n, nil
}

func withPath(err error, path string) error {
	if err == nil {
		return nil
	}
	if fe, ok := faults.As(err); ok {
		if _, set := fe.Details["path"]; !set {
			fe.WithDetail("path", path)
		}
		return fe
	}
	return faults.NewSchemaError("%s: %v", path, err).WithCause(err).WithDetail("path", path)
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

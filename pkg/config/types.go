package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SchemaDocument is the declarative form of a model schema: named types and
// the resource types of the tree.
type SchemaDocument struct {
	// Version is the document format version.
	Version string `yaml:"version" validate:"required,oneof=1"`

	// Root names the resource that describes the tree root. It defaults to
	// "root".
	Root string `yaml:"root,omitempty"`

	// Types are named types that attributes and signatures may refer to.
	Types map[string]TypeSpec `yaml:"types,omitempty" validate:"dive,keys,required,typename,endkeys"`

	// Resources are the resource types, keyed by name.
	Resources map[string]ResourceSpec `yaml:"resources" validate:"required,min=1,dive,keys,required,endkeys"`
}

// RootName returns the name of the root resource.
func (d *SchemaDocument) RootName() string {
	if d.Root == "" {
		return "root"
	}
	return d.Root
}

// ResourceSpec declares one resource type.
type ResourceSpec struct {
	// Identifier is the element name, optionally followed by the identifying
	// attribute: "server[@name]". The root resource has none.
	Identifier string `yaml:"identifier,omitempty" validate:"omitempty,identifier"`

	Description string `yaml:"description,omitempty"`

	// Fields is free-form metadata, such as protected: true.
	Fields map[string]interface{} `yaml:"fields,omitempty"`

	Attributes ItemList        `yaml:"attributes,omitempty"`
	Operations []OperationSpec `yaml:"operations,omitempty" validate:"dive"`
	Adders     []AdderSpec     `yaml:"adders,omitempty" validate:"dive"`
	Children   []ChildSpec     `yaml:"children,omitempty" validate:"dive"`
}

// OperationSpec declares an operation.
type OperationSpec struct {
	Name        string    `yaml:"name" validate:"required"`
	Description string    `yaml:"description,omitempty"`
	Signature   ItemList  `yaml:"signature,omitempty"`
	Returns     *TypeSpec `yaml:"returns,omitempty"`

	Usage   string `yaml:"usage,omitempty" validate:"omitempty,oneof=configuration metric management unknown"`
	Impact  string `yaml:"impact,omitempty" validate:"omitempty,oneof=read-only write-only read-write unknown"`
	Restart string `yaml:"restart,omitempty" validate:"omitempty,oneof=cold-start-required warm-start-required not-required unknown"`

	Fields map[string]interface{} `yaml:"fields,omitempty"`
}

// AdderSpec declares a create-child operation of the resource it belongs to.
type AdderSpec struct {
	Name        string   `yaml:"name" validate:"required"`
	Description string   `yaml:"description,omitempty"`
	Signature   ItemList `yaml:"signature,omitempty"`
	Restart     string   `yaml:"restart,omitempty" validate:"omitempty,oneof=cold-start-required warm-start-required not-required unknown"`

	Fields map[string]interface{} `yaml:"fields,omitempty"`
}

// ChildSpec declares a child type by resource name.
type ChildSpec struct {
	Resource string `yaml:"resource" validate:"required"`

	// Cardinality is "min..max", "n" or "*"; max may be "*". It defaults to
	// "0..*".
	Cardinality string `yaml:"cardinality,omitempty" validate:"omitempty,cardinality"`
}

// TypeSpec is either a reference to a simple or named type, written as a
// scalar such as "string", "int?" or "Port", or an inline type declaration.
// A trailing "?" marks a nillable parameter.
type TypeSpec struct {
	Ref         string
	Nillable    bool
	Description string

	Enum         []string
	Composite    ItemList
	Array        *ArraySpec
	Collection   *TypeSpec
	Map          *MapSpec
	Table        *TableSpec
	CompositeMap *CompositeMapSpec
}

// ArraySpec declares an array type. Dimension defaults to 1.
type ArraySpec struct {
	Dimension int      `yaml:"dimension,omitempty"`
	Of        TypeSpec `yaml:"of"`
}

// MapSpec declares a map type.
type MapSpec struct {
	Key   TypeSpec `yaml:"key"`
	Value TypeSpec `yaml:"value"`
}

// TableSpec declares a table type with its row items and index items.
type TableSpec struct {
	Row   ItemList `yaml:"row"`
	Index []string `yaml:"index"`
}

// CompositeMapSpec declares a composite map type keyed by one entry item.
type CompositeMapSpec struct {
	Entry ItemList `yaml:"entry"`
	Index string   `yaml:"index"`
}

type typeSpecFields struct {
	Type         string            `yaml:"type"`
	Description  string            `yaml:"description"`
	Enum         []string          `yaml:"enum"`
	Composite    ItemList          `yaml:"composite"`
	Array        *ArraySpec        `yaml:"array"`
	Collection   *TypeSpec         `yaml:"collection"`
	Map          *MapSpec          `yaml:"map"`
	Table        *TableSpec        `yaml:"table"`
	CompositeMap *CompositeMapSpec `yaml:"compositeMap"`
}

// UnmarshalYAML accepts the scalar shorthand or the mapping form.
func (t *TypeSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t.Ref, t.Nillable = splitNillable(node.Value)
		if t.Ref == "" {
			return fmt.Errorf("line %d: empty type reference", node.Line)
		}
		return nil
	case yaml.MappingNode:
		var f typeSpecFields
		if err := node.Decode(&f); err != nil {
			return err
		}
		*t = TypeSpec{
			Description:  f.Description,
			Enum:         f.Enum,
			Composite:    f.Composite,
			Array:        f.Array,
			Collection:   f.Collection,
			Map:          f.Map,
			Table:        f.Table,
			CompositeMap: f.CompositeMap,
		}
		t.Ref, t.Nillable = splitNillable(f.Type)
		if n := t.kinds(); n != 1 {
			return fmt.Errorf("line %d: a type declares exactly one of type, enum, composite, array, collection, map, table or compositeMap, got %d", node.Line, n)
		}
		return nil
	default:
		return fmt.Errorf("line %d: a type is a name or a mapping", node.Line)
	}
}

func (t *TypeSpec) kinds() int {
	n := 0
	for _, set := range []bool{
		t.Ref != "",
		t.Enum != nil,
		t.Composite != nil,
		t.Array != nil,
		t.Collection != nil,
		t.Map != nil,
		t.Table != nil,
		t.CompositeMap != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func splitNillable(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if strings.HasSuffix(ref, "?") {
		return strings.TrimSpace(strings.TrimSuffix(ref, "?")), true
	}
	return ref, false
}

// Item is one named entry of an ItemList.
type Item struct {
	Name string
	Type TypeSpec
}

// ItemList is an ordered mapping of names to types, written as a YAML
// mapping. Attribute, signature and composite item order follows the
// document.
type ItemList []Item

// UnmarshalYAML decodes a mapping node in document order.
func (l *ItemList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of names to types", node.Line)
	}
	out := make(ItemList, 0, len(node.Content)/2)
	seen := make(map[string]struct{}, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if _, dup := seen[key.Value]; dup {
			return fmt.Errorf("line %d: %s is declared twice", key.Line, key.Value)
		}
		seen[key.Value] = struct{}{}

		var spec TypeSpec
		if err := value.Decode(&spec); err != nil {
			return fmt.Errorf("%s: %w", key.Value, err)
		}
		out = append(out, Item{Name: key.Value, Type: spec})
	}
	*l = out
	return nil
}

// Names returns the item names in order.
func (l ItemList) Names() []string {
	out := make([]string, len(l))
	for i, it := range l {
		out[i] = it.Name
	}
	return out
}

// ValidationError represents a document error with location information.
type ValidationError struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`

	// Path is the document path of the error (e.g., "resources.server.attributes").
	Path string `json:"path,omitempty"`

	Message string `json:"message"`
}

func (e ValidationError) String() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

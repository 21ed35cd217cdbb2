package resource

import (
	"fmt"
	"sort"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
)

// Usage classifies what an operation is for.
type Usage string

const (
	// UsageConfiguration marks operations that change configuration.
	UsageConfiguration Usage = "configuration"

	// UsageMetric marks operations that read runtime metrics.
	UsageMetric Usage = "metric"

	// UsageManagement marks management actions such as restart.
	UsageManagement Usage = "management"

	// UsageUnknown is the default when no usage is declared.
	UsageUnknown Usage = "unknown"
)

// RestartPolicy states what an update requires before it takes effect.
type RestartPolicy string

const (
	// RestartColdStartRequired requires a full restart.
	RestartColdStartRequired RestartPolicy = "cold-start-required"

	// RestartWarmStartRequired requires a service reload.
	RestartWarmStartRequired RestartPolicy = "warm-start-required"

	// RestartNotRequired takes effect immediately.
	RestartNotRequired RestartPolicy = "not-required"

	// RestartUnknown is the default when no policy is declared.
	RestartUnknown RestartPolicy = "unknown"
)

// Impact states whether an operation reads or writes state.
type Impact string

const (
	// ImpactReadOnly operations do not change state.
	ImpactReadOnly Impact = "read-only"

	// ImpactWriteOnly operations change state without returning it.
	ImpactWriteOnly Impact = "write-only"

	// ImpactReadWrite operations change and return state.
	ImpactReadWrite Impact = "read-write"

	// ImpactUnknown is the default when no impact is declared.
	ImpactUnknown Impact = "unknown"
)

// Fields is free-form metadata attached to schema declarations.
type Fields map[string]interface{}

// Get returns the field value, nil when absent.
func (f Fields) Get(name string) interface{} {
	if f == nil {
		return nil
	}
	return f[name]
}

// Bool returns a boolean field, false when absent or not a bool.
func (f Fields) Bool(name string) bool {
	b, _ := f.Get(name).(bool)
	return b
}

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// AttributeInfo declares one attribute of a resource.
type AttributeInfo struct {
	Name        string
	Type        metatype.MetaType
	Description string
	Fields      Fields
}

// ParameterInfo declares one parameter of an operation or adder signature.
type ParameterInfo struct {
	Name        string
	Type        metatype.MetaType
	Description string
	Nillable    bool
	Fields      Fields
}

// IsValue reports whether v may be passed for the parameter. nil is only
// accepted for nillable parameters.
func (p ParameterInfo) IsValue(v metatype.MetaValue) bool {
	if metatype.IsNil(v) {
		return p.Nillable
	}
	return p.Type.IsValue(v)
}

func (p ParameterInfo) String() string {
	if p.Nillable {
		return p.Name + ":" + p.Type.TypeName() + "?"
	}
	return p.Name + ":" + p.Type.TypeName()
}

// OperationInfo declares an invocable operation.
type OperationInfo struct {
	Name          string
	Description   string
	Signature     []ParameterInfo
	ReturnType    metatype.MetaType
	Usage         Usage
	Impact        Impact
	RestartPolicy RestartPolicy
	Fields        Fields
}

// AdderInfo declares a create-child operation.
type AdderInfo struct {
	Name          string
	Description   string
	Signature     []ParameterInfo
	RestartPolicy RestartPolicy
	Fields        Fields
}

// ChildInfo is the schema and cardinality of one child type.
type ChildInfo struct {
	Info        *Info
	Cardinality Cardinality
}

// Info is the schema of one node type (ManagedResourceInfo). It is immutable
// once built.
type Info struct {
	identifierType EntityIDType
	description    string
	attributes     []AttributeInfo
	attributeIndex map[string]int
	operations     []OperationInfo
	adders         []AdderInfo
	children       map[EntityIDType]ChildInfo
	childOrder     []EntityIDType
	fields         Fields
}

// IdentifierType returns the identifier type of nodes described by the info.
func (i *Info) IdentifierType() EntityIDType { return i.identifierType }

// Description returns the schema description.
func (i *Info) Description() string { return i.description }

// Fields returns the schema metadata.
func (i *Info) Fields() Fields { return i.fields.Clone() }

// Attributes returns the attribute declarations in declaration order.
func (i *Info) Attributes() []AttributeInfo {
	out := make([]AttributeInfo, len(i.attributes))
	copy(out, i.attributes)
	return out
}

// AttributeNames returns the declared attribute names in declaration order.
func (i *Info) AttributeNames() []string {
	out := make([]string, len(i.attributes))
	for n, a := range i.attributes {
		out[n] = a.Name
	}
	return out
}

// Attribute returns the named attribute declaration.
func (i *Info) Attribute(name string) (AttributeInfo, bool) {
	n, ok := i.attributeIndex[name]
	if !ok {
		return AttributeInfo{}, false
	}
	return i.attributes[n], true
}

// Operations returns the operation declarations.
func (i *Info) Operations() []OperationInfo {
	out := make([]OperationInfo, len(i.operations))
	copy(out, i.operations)
	return out
}

// Operation returns the first operation declaration with the given name.
func (i *Info) Operation(name string) (OperationInfo, bool) {
	for _, op := range i.operations {
		if op.Name == name {
			return op, true
		}
	}
	return OperationInfo{}, false
}

// Adders returns the adder declarations.
func (i *Info) Adders() []AdderInfo {
	out := make([]AdderInfo, len(i.adders))
	copy(out, i.adders)
	return out
}

// Adder returns the first adder declaration with the given name.
func (i *Info) Adder(name string) (AdderInfo, bool) {
	for _, a := range i.adders {
		if a.Name == name {
			return a, true
		}
	}
	return AdderInfo{}, false
}

// ChildTypes returns the declared child types in declaration order.
func (i *Info) ChildTypes() []EntityIDType {
	out := make([]EntityIDType, len(i.childOrder))
	copy(out, i.childOrder)
	return out
}

// Child returns the child declaration for t.
func (i *Info) Child(t EntityIDType) (ChildInfo, bool) {
	c, ok := i.children[t]
	return c, ok
}

func (i *Info) String() string {
	return fmt.Sprintf("info[%s]", i.identifierType)
}

// InfoBuilder accumulates declarations and produces a frozen Info. The first
// error is kept and returned by Build.
type InfoBuilder struct {
	info *Info
	err  error
}

// NewInfoBuilder starts an Info for nodes of the given identifier type.
func NewInfoBuilder(identifierType EntityIDType, description string) *InfoBuilder {
	b := &InfoBuilder{info: &Info{
		identifierType: identifierType,
		description:    description,
		attributeIndex: make(map[string]int),
		children:       make(map[EntityIDType]ChildInfo),
	}}
	if identifierType.ElementName == "" {
		b.err = faults.NewSchemaError("resource info has no identifier type").WithDetail("field", "identifierType")
	}
	return b
}

// NewRootInfoBuilder starts the Info of a tree root.
func NewRootInfoBuilder(description string) *InfoBuilder {
	return &InfoBuilder{info: &Info{
		identifierType: EntityIDType{},
		description:    description,
		attributeIndex: make(map[string]int),
		children:       make(map[EntityIDType]ChildInfo),
	}}
}

// Attribute declares an attribute.
func (b *InfoBuilder) Attribute(name string, t metatype.MetaType, description string) *InfoBuilder {
	return b.AttributeWithFields(AttributeInfo{Name: name, Type: t, Description: description})
}

// AttributeWithFields declares an attribute with metadata.
func (b *InfoBuilder) AttributeWithFields(attr AttributeInfo) *InfoBuilder {
	if b.err != nil {
		return b
	}
	if attr.Name == "" {
		b.err = faults.NewSchemaError("%s has an attribute with an empty name", b.info.identifierType).WithDetail("field", "attributes")
		return b
	}
	if attr.Type == nil {
		b.err = faults.NewSchemaError("attribute %s of %s has no type", attr.Name, b.info.identifierType).WithDetail("field", attr.Name)
		return b
	}
	if _, dup := b.info.attributeIndex[attr.Name]; dup {
		b.err = faults.NewSchemaError("%s declares attribute %s twice", b.info.identifierType, attr.Name).
			WithCode(faults.ErrCodeDuplicate).WithDetail("field", attr.Name)
		return b
	}
	attr.Fields = attr.Fields.Clone()
	b.info.attributeIndex[attr.Name] = len(b.info.attributes)
	b.info.attributes = append(b.info.attributes, attr)
	return b
}

// Operation declares an operation.
func (b *InfoBuilder) Operation(op OperationInfo) *InfoBuilder {
	if b.err != nil {
		return b
	}
	if op.Name == "" {
		b.err = faults.NewSchemaError("%s has an operation with an empty name", b.info.identifierType).WithDetail("field", "operations")
		return b
	}
	sig, err := checkSignature(op.Name, op.Signature)
	if err != nil {
		b.err = err
		return b
	}
	op.Signature = sig
	if op.Usage == "" {
		op.Usage = UsageUnknown
	}
	if op.Impact == "" {
		op.Impact = ImpactUnknown
	}
	if op.RestartPolicy == "" {
		op.RestartPolicy = RestartUnknown
	}
	if op.ReturnType == nil {
		op.ReturnType = metatype.Void
	}
	op.Fields = op.Fields.Clone()
	b.info.operations = append(b.info.operations, op)
	return b
}

// Adder declares a create-child operation.
func (b *InfoBuilder) Adder(adder AdderInfo) *InfoBuilder {
	if b.err != nil {
		return b
	}
	if adder.Name == "" {
		b.err = faults.NewSchemaError("%s has an adder with an empty name", b.info.identifierType).WithDetail("field", "adders")
		return b
	}
	sig, err := checkSignature(adder.Name, adder.Signature)
	if err != nil {
		b.err = err
		return b
	}
	adder.Signature = sig
	if adder.RestartPolicy == "" {
		adder.RestartPolicy = RestartUnknown
	}
	adder.Fields = adder.Fields.Clone()
	b.info.adders = append(b.info.adders, adder)
	return b
}

// Child declares a child type. The child type is the identifier type of info.
func (b *InfoBuilder) Child(info *Info, c Cardinality) *InfoBuilder {
	if b.err != nil {
		return b
	}
	if info == nil {
		b.err = faults.NewSchemaError("%s declares a child without info", b.info.identifierType).WithDetail("field", "children")
		return b
	}
	if info.identifierType.ElementName == "" {
		b.err = faults.NewSchemaError("%s declares a root info as a child", b.info.identifierType).WithDetail("field", "children")
		return b
	}
	if err := c.Validate(); err != nil {
		b.err = err
		return b
	}
	t := info.identifierType
	if _, dup := b.info.children[t]; dup {
		b.err = faults.NewSchemaError("%s declares child type %s twice", b.info.identifierType, t).
			WithCode(faults.ErrCodeDuplicate).WithDetail("field", t.String())
		return b
	}
	b.info.children[t] = ChildInfo{Info: info, Cardinality: c}
	b.info.childOrder = append(b.info.childOrder, t)
	return b
}

// Field sets a metadata field on the info.
func (b *InfoBuilder) Field(name string, value interface{}) *InfoBuilder {
	if b.info == nil {
		return b
	}
	if b.info.fields == nil {
		b.info.fields = make(Fields)
	}
	b.info.fields[name] = value
	return b
}

// Build returns the frozen Info or the first declaration error.
func (b *InfoBuilder) Build() (*Info, error) {
	if b.err != nil {
		return nil, b.err
	}
	info := b.info
	b.info = nil
	b.err = faults.NewStateError(faults.ErrCodeInvalidType, "info builder already built")
	return info, nil
}

func checkSignature(owner string, sig []ParameterInfo) ([]ParameterInfo, error) {
	seen := make(map[string]struct{}, len(sig))
	out := make([]ParameterInfo, len(sig))
	for i, p := range sig {
		if p.Name == "" {
			return nil, faults.NewSchemaError("%s has a parameter with an empty name", owner).WithDetail("field", "signature")
		}
		if p.Type == nil {
			return nil, faults.NewSchemaError("parameter %s of %s has no type", p.Name, owner).WithDetail("field", p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, faults.NewSchemaError("%s declares parameter %s twice", owner, p.Name).
				WithCode(faults.ErrCodeDuplicate).WithDetail("field", p.Name)
		}
		seen[p.Name] = struct{}{}
		p.Fields = p.Fields.Clone()
		out[i] = p
	}
	return out, nil
}

// SignatureNames returns the parameter names of sig, sorted.
func SignatureNames(sig []ParameterInfo) []string {
	out := make([]string, len(sig))
	for i, p := range sig {
		out[i] = p.Name
	}
	sort.Strings(out)
	return out
}

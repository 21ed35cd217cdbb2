package config

import (
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry holds the CUE definitions that schema documents are checked
// against before they are decoded.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	for name, def := range builtinDefinitions {
		if err := sr.RegisterSchema(name, builtinDocumentSchema, def); err != nil {
			panic(fmt.Sprintf("built-in schema %s: %v", name, err))
		}
	}

	return sr
}

var builtinDefinitions = map[string]string{
	"document": "#SchemaDocument",
	"resource": "#Resource",
	"type":     "#TypeSpec",
}

// RegisterSchema compiles source and registers the definition def of it,
// such as "#Resource", under name.
func (sr *SchemaRegistry) RegisterSchema(name, source, def string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	schema := val.LookupPath(cue.ParsePath(def))
	if !schema.Exists() {
		return fmt.Errorf("schema %s has no definition %s", name, def)
	}
	if err := schema.Err(); err != nil {
		return fmt.Errorf("invalid definition %s in schema %s: %w", def, name, err)
	}

	sr.schemas[name] = schema
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Validate checks a CUE value against a named schema and returns the
// unified value. The value must come from Context.
func (sr *SchemaRegistry) Validate(schemaName string, val cue.Value) (cue.Value, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	return sr.validate(schemaName, val)
}

func (sr *SchemaRegistry) validate(schemaName string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.schemas[schemaName]
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", schemaName)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, err
	}
	return unified, nil
}

// ValidateAgainstSchema validates plain data, such as decoded YAML, against
// a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(schemaName string, data interface{}) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	_, err := sr.validate(schemaName, dataVal)
	return err
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile compiles CUE source in the registry's context.
func (sr *SchemaRegistry) Compile(source []byte, filename string) cue.Value {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	return sr.ctx.CompileBytes(source, cue.Filename(filename))
}

// Context returns the CUE context the schemas were compiled in. Values
// validated against them must come from the same context.
func (sr *SchemaRegistry) Context() *cue.Context { return sr.ctx }

const builtinDocumentSchema = `
// A reference to a simple type ("string", "int", "*int64"), or to a named
// type. A trailing "?" marks a nillable parameter.
#TypeRef: =~"^[A-Za-z_*][A-Za-z0-9_.*]*[?]?$"

#Nested: #TypeRef | {...}

#Items: {[string]: #Nested}

#TypeSpec: #TypeRef | {
	type?:        #TypeRef
	description?: string
	enum?: [string, ...string]
	composite?: #Items
	array?: {
		dimension?: int & >=1
		of:         #Nested
	}
	collection?: #Nested
	map?: {
		key:   #Nested
		value: #Nested
	}
	table?: {
		row: #Items
		index: [string, ...string]
	}
	compositeMap?: {
		entry: #Items
		index: string
	}
}

#Restart: "cold-start-required" | "warm-start-required" | "not-required" | "unknown"

#Operation: {
	name:         string & !=""
	description?: string
	signature?:   #Items
	returns?:     #TypeSpec
	usage?:       "configuration" | "metric" | "management" | "unknown"
	impact?:      "read-only" | "write-only" | "read-write" | "unknown"
	restart?:     #Restart
	fields?: {...}
}

#Adder: {
	name:         string & !=""
	description?: string
	signature?:   #Items
	restart?:     #Restart
	fields?: {...}
}

#Child: {
	resource:     string & !=""
	cardinality?: =~"^([0-9]+|[*])([.][.]([0-9]+|[*]))?$"
}

#Resource: {
	identifier?:  =~"^[A-Za-z_][A-Za-z0-9_.-]*(\\[@[A-Za-z_][A-Za-z0-9_.-]*\\])?$"
	description?: string
	fields?: {...}
	attributes?: #Items
	operations?: [...#Operation]
	adders?: [...#Adder]
	children?: [...#Child]
}

#SchemaDocument: {
	version: "1" | 1
	root?:   string & !=""
	types?: {[=~"^[A-Za-z_][A-Za-z0-9_]*$"]: #TypeSpec}
	resources: {[string]: #Resource}
}
`

package config

import (
	"strings"
	"testing"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
	"github.com/openfroyo/detyped/pkg/resource"
)

func buildTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := Build(loadTestSchema(t))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return catalog
}

func TestBuild(t *testing.T) {
	catalog := buildTestCatalog(t)

	port, ok := catalog.Type("Port")
	if !ok || port != metatype.Integer {
		t.Errorf("expected Port to resolve to the Integer singleton, got %v", port)
	}
	protocol, _ := catalog.Type("Protocol")
	if protocol == nil || !protocol.IsEnum() || protocol.TypeName() != "Protocol" {
		t.Errorf("expected enum Protocol, got %v", protocol)
	}
	endpoint, _ := catalog.Type("Endpoint")
	composite, ok := endpoint.(*metatype.CompositeType)
	if !ok {
		t.Fatalf("expected composite Endpoint, got %T", endpoint)
	}
	if got := strings.Join(composite.Keys(), ","); got != "host,port" {
		t.Errorf("expected items host,port, got %s", got)
	}
	if composite.Description() != "a host and port" {
		t.Errorf("unexpected description %q", composite.Description())
	}

	if catalog.Root.IdentifierType().ElementName != "" {
		t.Errorf("expected a root info, got %s", catalog.Root.IdentifierType())
	}
	serverType := resource.EntityIDType{ElementName: "server", AttributeName: "name"}
	decl, ok := catalog.Root.Child(serverType)
	if !ok {
		t.Fatalf("expected root to declare %s, got %v", serverType, catalog.Root.ChildTypes())
	}
	if decl.Cardinality != resource.ZeroUnbounded {
		t.Errorf("expected 0..*, got %s", decl.Cardinality)
	}

	server, _ := catalog.Info("server")
	if server != decl.Info {
		t.Error("expected the child declaration to share the catalog info")
	}
	if !server.Fields().Bool("protected") {
		t.Error("expected the protected field")
	}
	if got := strings.Join(server.AttributeNames(), ","); got != "name,port,protocol,upstream" {
		t.Errorf("unexpected attributes %s", got)
	}
	attr, _ := server.Attribute("upstream")
	if attr.Type != endpoint {
		t.Error("expected attributes to share named types")
	}

	restart, ok := server.Operation("restart")
	if !ok {
		t.Fatal("expected restart operation")
	}
	if restart.Usage != resource.UsageManagement || restart.Impact != resource.ImpactWriteOnly || restart.RestartPolicy != resource.RestartNotRequired {
		t.Errorf("unexpected restart metadata %+v", restart)
	}
	if restart.ReturnType != metatype.Void {
		t.Errorf("expected void return, got %v", restart.ReturnType)
	}
	write, _ := server.Operation("write-port")
	if write.Impact != resource.ImpactUnknown {
		t.Errorf("expected unknown impact by default, got %s", write.Impact)
	}

	add, ok := server.Adder("add")
	if !ok || len(add.Signature) != 1 || !add.Signature[0].Nillable || add.Signature[0].Type != metatype.Integer {
		t.Errorf("unexpected adder %+v", add)
	}

	diskDecl, ok := server.Child(resource.EntityIDType{ElementName: "disk", AttributeName: "id"})
	if !ok || diskDecl.Cardinality.Max != 4 {
		t.Errorf("expected disk child with max 4, got %+v", diskDecl)
	}
}

func TestBuildInlineTypes(t *testing.T) {
	doc, err := NewParser().LoadYAML([]byte(`version: "1"
resources:
  root:
    attributes:
      tags:
        collection: string
      matrix:
        array:
          dimension: 2
          of: double
      labels:
        map:
          key: string
          value: string
      routes:
        table:
          row:
            dest: string
            via: string
            metric: int
          index: [dest, via]
      users:
        compositeMap:
          entry:
            login: string
            uid: long
          index: login
      mode:
        enum: [active, passive]
      counter: "*int64"
`), "inline.yaml")
	if err != nil {
		t.Fatalf("LoadYAML failed: %v (%v)", err, ValidationErrors(err))
	}
	catalog, err := Build(doc)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	tests := []struct {
		attr     string
		kind     metatype.Kind
		typeName string
	}{
		{"tags", metatype.KindCollection, ""},
		{"matrix", metatype.KindArray, ""},
		{"labels", metatype.KindMap, ""},
		{"routes", metatype.KindTable, "rootRoutes"},
		{"users", metatype.KindCompositeMap, "rootUsers"},
		{"mode", metatype.KindEnum, "rootMode"},
		{"counter", metatype.KindSimple, "*int64"},
	}
	for _, tt := range tests {
		t.Run(tt.attr, func(t *testing.T) {
			attr, ok := catalog.Root.Attribute(tt.attr)
			if !ok {
				t.Fatalf("missing attribute %s", tt.attr)
			}
			if attr.Type.Kind() != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, attr.Type.Kind())
			}
			if tt.typeName != "" && attr.Type.TypeName() != tt.typeName {
				t.Errorf("expected type name %s, got %s", tt.typeName, attr.Type.TypeName())
			}
		})
	}

	matrix, _ := catalog.Root.Attribute("matrix")
	if array := matrix.Type.(*metatype.ArrayType); array.Dimension() != 2 || array.ElementType() != metatype.Double {
		t.Errorf("unexpected array %v", array)
	}
	routes, _ := catalog.Root.Attribute("routes")
	if table := routes.Type.(*metatype.TableType); strings.Join(table.IndexNames(), ",") != "dest,via" {
		t.Errorf("unexpected index %v", table.IndexNames())
	}
	counter, _ := catalog.Root.Attribute("counter")
	if counter.Type != metatype.Long {
		t.Errorf("expected the Long singleton, got %v", counter.Type)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		code    string
		message string
	}{
		{
			name:    "unknown type",
			doc:     "resources:\n  root:\n    attributes:\n      a: Missing\n",
			code:    faults.ErrCodeNotFound,
			message: "unknown type",
		},
		{
			name:    "type cycle",
			doc:     "types:\n  A:\n    composite:\n      b: B\n  B:\n    collection: A\nresources:\n  root: {}\n",
			message: "A -> B -> A",
		},
		{
			name:    "resource cycle",
			doc:     "resources:\n  root:\n    children:\n      - resource: a\n  a:\n    identifier: a[@n]\n    children:\n      - resource: a\n",
			message: "a -> a",
		},
		{
			name:    "unreachable resource",
			doc:     "resources:\n  root: {}\n  orphan:\n    identifier: orphan\n",
			message: "not reachable",
		},
		{
			name:    "missing root",
			doc:     "root: main\nresources:\n  root: {}\n",
			code:    faults.ErrCodeNotFound,
			message: "root resource",
		},
		{
			name:    "root with identifier",
			doc:     "resources:\n  root:\n    identifier: top\n",
			message: "has an identifier",
		},
		{
			name:    "child without identifier",
			doc:     "resources:\n  root:\n    children:\n      - resource: a\n  a: {}\n",
			message: "has no identifier",
		},
		{
			name:    "unknown child",
			doc:     "resources:\n  root:\n    children:\n      - resource: a\n",
			code:    faults.ErrCodeNotFound,
			message: "unknown resource",
		},
		{
			name:    "nillable attribute",
			doc:     "resources:\n  root:\n    attributes:\n      a: int?\n",
			message: "nillable",
		},
		{
			name:    "bad table index",
			doc:     "resources:\n  root:\n    attributes:\n      t:\n        table:\n          row:\n            a: int\n          index: [b]\n",
			message: "index column",
		},
		{
			name:    "child type declared twice",
			doc:     "resources:\n  root:\n    children:\n      - resource: a\n      - resource: a\n  a:\n    identifier: a\n",
			code:    faults.ErrCodeDuplicate,
			message: "twice",
		},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := p.LoadYAML([]byte("version: \"1\"\n"+tt.doc), "bad.yaml")
			if err != nil {
				t.Fatalf("LoadYAML failed: %v (%v)", err, ValidationErrors(err))
			}
			_, err = Build(doc)
			if err == nil {
				t.Fatal("expected error")
			}
			if !faults.IsSchema(err) {
				t.Errorf("expected schema fault, got %v", err)
			}
			if tt.code != "" && faults.CodeOf(err) != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, faults.CodeOf(err))
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("expected %q in %q", tt.message, err.Error())
			}
			fe, _ := faults.As(err)
			if fe.Details["path"] == nil {
				t.Errorf("expected a document path in %+v", fe.Details)
			}
		})
	}
}

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		in      string
		want    resource.EntityIDType
		wantErr bool
	}{
		{"server", resource.EntityIDType{ElementName: "server"}, false},
		{"server[@name]", resource.EntityIDType{ElementName: "server", AttributeName: "name"}, false},
		{"server[name]", resource.EntityIDType{}, true},
		{"server[@]", resource.EntityIDType{}, true},
		{"server[@name", resource.EntityIDType{}, true},
		{"[@name]", resource.EntityIDType{}, true},
		{"", resource.EntityIDType{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseIdentifier(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseCardinality(t *testing.T) {
	tests := []struct {
		in      string
		want    resource.Cardinality
		wantErr bool
	}{
		{"", resource.ZeroUnbounded, false},
		{"*", resource.ZeroUnbounded, false},
		{"1", resource.One, false},
		{"0..1", resource.ZeroOne, false},
		{"1..*", resource.OneUnbounded, false},
		{"2..5", resource.Cardinality{Min: 2, Max: 5}, false},
		{"5..2", resource.Cardinality{}, true},
		{"*..2", resource.Cardinality{}, true},
		{"-1", resource.Cardinality{}, true},
		{"a..b", resource.Cardinality{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseCardinality(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

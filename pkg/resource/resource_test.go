package resource

import (
	"testing"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
)

type testSchema struct {
	root    *Info
	servers *Info
	server  *Info
}

func newTestSchema(t *testing.T) testSchema {
	t.Helper()
	server, err := NewInfoBuilder(EntityIDType{ElementName: "server", AttributeName: "name"}, "a server").
		Attribute("name", metatype.String, "server name").
		Attribute("port", metatype.Integer, "listen port").
		Adder(AdderInfo{Name: "add", Signature: []ParameterInfo{
			{Name: "name", Type: metatype.String},
			{Name: "port", Type: metatype.Integer, Nillable: true},
		}}).
		Build()
	if err != nil {
		t.Fatalf("building server info failed: %v", err)
	}
	servers, err := NewInfoBuilder(EntityIDType{ElementName: "servers"}, "server group").
		Attribute("enabled", metatype.Boolean, "group enabled").
		Child(server, Cardinality{Min: 1, Max: 2}).
		Build()
	if err != nil {
		t.Fatalf("building servers info failed: %v", err)
	}
	root, err := NewRootInfoBuilder("root").
		Child(servers, ZeroOne).
		Build()
	if err != nil {
		t.Fatalf("building root info failed: %v", err)
	}
	return testSchema{root: root, servers: servers, server: server}
}

func newServer(t *testing.T, s testSchema, parent Address, name string) *Mutable {
	t.Helper()
	id := MustEntityID("server", "name", name)
	m, err := NewManagedResource(parent.Child(id), s.server)
	if err != nil {
		t.Fatalf("NewManagedResource failed: %v", err)
	}
	if err := m.SetAttribute("name", metatype.StringValue(name)); err != nil {
		t.Fatalf("SetAttribute failed: %v", err)
	}
	return m
}

func TestCardinalityEnforcement(t *testing.T) {
	s := newTestSchema(t)
	servers, err := NewManagedResource(MustAddress("/servers"), s.servers)
	if err != nil {
		t.Fatalf("NewManagedResource failed: %v", err)
	}
	serverType := s.server.IdentifierType()

	for _, name := range []string{"s1", "s2"} {
		if err := servers.AddChild(newServer(t, s, servers.Address(), name)); err != nil {
			t.Fatalf("AddChild(%s) failed: %v", name, err)
		}
	}

	err = servers.AddChild(newServer(t, s, servers.Address(), "s3"))
	if !faults.IsCardinality(err) {
		t.Fatalf("expected cardinality error, got %v", err)
	}
	if got := servers.ChildCount(serverType); got != 2 {
		t.Fatalf("expected 2 children after a rejected add, got %d", got)
	}

	if _, err := servers.RemoveChild(MustEntityID("server", "name", "s2")); err != nil {
		t.Fatalf("RemoveChild(s2) failed: %v", err)
	}
	_, err = servers.RemoveChild(MustEntityID("server", "name", "s1"))
	if !faults.IsCardinality(err) {
		t.Fatalf("expected cardinality error, got %v", err)
	}
	if got := servers.ChildCount(serverType); got != 1 {
		t.Errorf("expected 1 child after a rejected remove, got %d", got)
	}

	_, err = servers.RemoveChild(MustEntityID("server", "name", "nope"))
	if !faults.IsAddress(err) {
		t.Errorf("expected address error, got %v", err)
	}
}

func TestAddChildValidation(t *testing.T) {
	s := newTestSchema(t)
	servers, _ := NewManagedResource(MustAddress("/servers"), s.servers)

	if err := servers.AddChild(newServer(t, s, servers.Address(), "s1")); err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}
	err := servers.AddChild(newServer(t, s, servers.Address(), "s1"))
	if faults.CodeOf(err) != faults.ErrCodeDuplicate {
		t.Errorf("expected %s, got %v", faults.ErrCodeDuplicate, err)
	}

	elsewhere := newServer(t, s, MustAddress("/other"), "s2")
	if err := servers.AddChild(elsewhere); err == nil {
		t.Error("expected a child with a foreign address to be rejected")
	}

	undeclared, _ := NewManagedResource(MustAddress("/servers/servers"), s.servers)
	if err := servers.AddChild(undeclared); faults.CodeOf(err) != faults.ErrCodeNotFound {
		t.Errorf("expected %s, got %v", faults.ErrCodeNotFound, err)
	}
}

func TestSetAttributeFailures(t *testing.T) {
	s := newTestSchema(t)

	root, err := NewRoot(s.root)
	if err != nil {
		t.Fatalf("NewRoot failed: %v", err)
	}
	placeholder, err := NewIDOnly(MustAddress("/servers/server[@name='s1']"), s.server)
	if err != nil {
		t.Fatalf("NewIDOnly failed: %v", err)
	}
	server := newServer(t, s, MustAddress("/servers"), "s1")

	tests := []struct {
		name   string
		target *Mutable
		attr   string
		value  metatype.MetaValue
		check  func(error) bool
	}{
		{"root", root, "name", metatype.StringValue("x"), faults.IsState},
		{"id only", placeholder, "name", metatype.StringValue("x"), faults.IsState},
		{"undeclared", server, "address", metatype.StringValue("x"), faults.IsValidation},
		{"wrong type", server, "port", metatype.StringValue("not-a-number"), faults.IsValidation},
		{"nil value", server, "port", nil, faults.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.SetAttribute(tt.attr, tt.value)
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	if port, _ := server.Attribute("port"); port != nil {
		t.Errorf("expected port to stay unset, got %v", port)
	}
	if _, err := placeholder.Attribute("name"); !faults.IsState(err) {
		t.Errorf("expected id-only access to fail, got %v", err)
	}
}

func TestSetAttributesIsAtomic(t *testing.T) {
	s := newTestSchema(t)
	server := newServer(t, s, MustAddress("/servers"), "s1")
	_ = server.SetAttribute("port", metatype.IntValue(80))
	before := server.Resource().Clone()

	err := server.SetAttributes(map[string]metatype.MetaValue{
		"port": metatype.IntValue(81),
		"name": metatype.LongValue(1),
	})
	if err == nil {
		t.Fatal("expected batch with an invalid value to fail")
	}
	if !server.Resource().Equal(before) {
		t.Error("expected a rejected batch to leave the entity unchanged")
	}
}

func TestNewManagedResourceChecksIdentifierType(t *testing.T) {
	s := newTestSchema(t)
	if _, err := NewManagedResource(MustAddress("/servers/client[@name='c']"), s.server); !faults.IsSchema(err) {
		t.Errorf("expected schema error, got %v", err)
	}
	if _, err := NewManagedResource(Root, s.server); err == nil {
		t.Error("expected a root address to be rejected")
	}
	if _, err := NewRoot(s.server); err == nil {
		t.Error("expected a non-root info to be rejected for the root")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := newTestSchema(t)
	root, _ := NewRoot(s.root)
	servers, _ := NewManagedResource(MustAddress("/servers"), s.servers)
	if err := root.AddChild(servers); err != nil {
		t.Fatalf("AddChild(servers) failed: %v", err)
	}
	server := newServer(t, s, servers.Address(), "s1")
	_ = server.SetAttribute("port", metatype.IntValue(80))
	if err := servers.AddChild(server); err != nil {
		t.Fatalf("AddChild(server) failed: %v", err)
	}

	snapshot := root.Clone()
	if !snapshot.Resource().Equal(root.Resource()) {
		t.Fatal("expected clone to equal the original")
	}

	port, _ := server.Attribute("port")
	if err := port.(*metatype.SimpleValue).SetValue(int32(443)); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	cloned, err := snapshot.ChildEntity(MustAddress("/servers/server[@name='s1']"))
	if err != nil {
		t.Fatalf("ChildEntity failed: %v", err)
	}
	clonedPort, _ := cloned.Attribute("port")
	if !clonedPort.Equal(metatype.IntValue(80)) {
		t.Errorf("expected cloned port 80, got %v", clonedPort)
	}

	if err := servers.AddChild(newServer(t, s, servers.Address(), "s2")); err != nil {
		t.Fatalf("AddChild(s2) failed: %v", err)
	}
	clonedServers, _ := snapshot.Child(MustEntityID("servers", "", ""))
	if got := clonedServers.ChildCount(s.server.IdentifierType()); got != 1 {
		t.Errorf("expected clone to keep 1 server, got %d", got)
	}
	if snapshot.Resource().Equal(root.Resource()) {
		t.Error("expected diverged trees not to be equal")
	}
}

func TestWalkVisitsParentsFirst(t *testing.T) {
	s := newTestSchema(t)
	root, _ := NewRoot(s.root)
	servers, _ := NewManagedResource(MustAddress("/servers"), s.servers)
	_ = root.AddChild(servers)
	_ = servers.AddChild(newServer(t, s, servers.Address(), "s1"))

	var visited []string
	err := root.Walk(func(r *ManagedResource) error {
		visited = append(visited, r.Address().String())
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	expected := []string{"/", "/servers", "/servers/server[@name='s1']"}
	if len(visited) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, visited)
	}
	for i := range expected {
		if visited[i] != expected[i] {
			t.Errorf("expected %s at %d, got %s", expected[i], i, visited[i])
		}
	}
}

func TestResolveSignature(t *testing.T) {
	s := newTestSchema(t)

	params := map[string]metatype.MetaValue{"name": metatype.StringValue("s1"), "port": nil}
	if _, ok := ResolveAdderInfo(s.server, "add", params); !ok {
		t.Error("expected adder to match with a nil nillable parameter")
	}

	tests := []struct {
		name   string
		params map[string]metatype.MetaValue
	}{
		{"missing parameter", map[string]metatype.MetaValue{"name": metatype.StringValue("s1")}},
		{"nil required parameter", map[string]metatype.MetaValue{"name": nil, "port": nil}},
		{"wrong type", map[string]metatype.MetaValue{"name": metatype.StringValue("s1"), "port": metatype.LongValue(1)}},
		{"renamed parameter", map[string]metatype.MetaValue{"name": metatype.StringValue("s1"), "prt": nil}},
	}
	adder, _ := s.server.Adder("add")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := MatchSignature(adder.Signature, tt.params); !faults.IsSignature(err) {
				t.Errorf("expected signature error, got %v", err)
			}
		})
	}
}

func TestInfoBuilderRejectsDuplicates(t *testing.T) {
	_, err := NewInfoBuilder(EntityIDType{ElementName: "x"}, "").
		Attribute("a", metatype.String, "").
		Attribute("a", metatype.Long, "").
		Build()
	if faults.CodeOf(err) != faults.ErrCodeDuplicate {
		t.Errorf("expected %s, got %v", faults.ErrCodeDuplicate, err)
	}

	_, err = NewInfoBuilder(EntityIDType{ElementName: "x"}, "").
		Child(nil, One).
		Build()
	if !faults.IsSchema(err) {
		t.Errorf("expected schema error, got %v", err)
	}
}

func TestAttributeReadsAreCopies(t *testing.T) {
	tags, err := metatype.NewCollectionType(metatype.String)
	if err != nil {
		t.Fatalf("NewCollectionType failed: %v", err)
	}
	info, err := NewInfoBuilder(EntityIDType{ElementName: "host"}, "a host").
		Attribute("tags", tags, "host tags").
		Build()
	if err != nil {
		t.Fatalf("building host info failed: %v", err)
	}
	host, err := NewManagedResource(MustAddress("/host"), info)
	if err != nil {
		t.Fatalf("NewManagedResource failed: %v", err)
	}
	initial, err := metatype.NewCollectionValue(tags, metatype.StringValue("web"))
	if err != nil {
		t.Fatalf("NewCollectionValue failed: %v", err)
	}
	if err := host.SetAttribute("tags", initial); err != nil {
		t.Fatalf("SetAttribute failed: %v", err)
	}

	if err := initial.Add(metatype.StringValue("edge")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	read := host.Resource()
	v, err := read.Attribute("tags")
	if err != nil {
		t.Fatalf("Attribute failed: %v", err)
	}
	if err := v.(*metatype.CollectionValue).Add(metatype.StringValue("db")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	values, err := read.AttributeValues()
	if err != nil {
		t.Fatalf("AttributeValues failed: %v", err)
	}
	if err := values["tags"].(*metatype.CollectionValue).Add(metatype.StringValue("cache")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	stored, _ := read.Attribute("tags")
	if n := stored.(*metatype.CollectionValue).Len(); n != 1 {
		t.Errorf("expected the entity to keep 1 tag, got %d", n)
	}
}

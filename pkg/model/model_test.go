package model

import (
	"testing"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
	"github.com/openfroyo/detyped/pkg/resource"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	server, err := resource.NewInfoBuilder(resource.EntityIDType{ElementName: "server", AttributeName: "name"}, "a server").
		Attribute("name", metatype.String, "server name").
		Attribute("port", metatype.Integer, "listen port").
		Attribute("enabled", metatype.Boolean, "accepts connections").
		Operation(resource.OperationInfo{Name: "write-port", Signature: []resource.ParameterInfo{
			{Name: "port", Type: metatype.Integer},
		}}).
		Operation(resource.OperationInfo{Name: "configure", Signature: []resource.ParameterInfo{
			{Name: "port", Type: metatype.Integer},
			{Name: "enabled", Type: metatype.Boolean, Nillable: true},
		}}).
		Operation(resource.OperationInfo{Name: "restart"}).
		Adder(resource.AdderInfo{Name: "add", Signature: []resource.ParameterInfo{
			{Name: "port", Type: metatype.Integer, Nillable: true},
		}}).
		Adder(resource.AdderInfo{Name: "add-named", Signature: []resource.ParameterInfo{
			{Name: "name", Type: metatype.String},
			{Name: "port", Type: metatype.Integer, Nillable: true},
		}}).
		Build()
	if err != nil {
		t.Fatalf("building server info failed: %v", err)
	}
	servers, err := resource.NewInfoBuilder(resource.EntityIDType{ElementName: "servers"}, "server group").
		Adder(resource.AdderInfo{Name: "add"}).
		Child(server, resource.Cardinality{Min: 0, Max: 2}).
		Build()
	if err != nil {
		t.Fatalf("building servers info failed: %v", err)
	}
	root, err := resource.NewRootInfoBuilder("root").
		Child(servers, resource.ZeroOne).
		Build()
	if err != nil {
		t.Fatalf("building root info failed: %v", err)
	}

	m, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m.RegisterDefaults(); err != nil {
		t.Fatalf("RegisterDefaults failed: %v", err)
	}
	return m
}

func invoke(t *testing.T, m *Model, address, op string, params map[string]metatype.MetaValue) *resource.ManagementInvocation {
	t.Helper()
	inv, err := resource.NewInvocation(resource.MustAddress(address), op, params)
	if err != nil {
		t.Fatalf("NewInvocation failed: %v", err)
	}
	comp, err := m.Apply(inv)
	if err != nil {
		t.Fatalf("Apply(%s) failed: %v", inv, err)
	}
	return comp
}

func apply(m *Model, address, op string, params map[string]metatype.MetaValue) (*resource.ManagementInvocation, error) {
	inv, err := resource.NewInvocation(resource.MustAddress(address), op, params)
	if err != nil {
		return nil, err
	}
	return m.Apply(inv)
}

func withServer(t *testing.T, m *Model, name string, port int32) {
	t.Helper()
	if _, err := m.Entity(resource.MustAddress("/servers")); err != nil {
		invoke(t, m, "/servers", "add", nil)
	}
	invoke(t, m, "/servers/server[@name='"+name+"']", "add", map[string]metatype.MetaValue{
		"port": metatype.IntValue(port),
	})
}

func TestRegisterDefaults(t *testing.T) {
	m := newTestModel(t)

	expected := []string{
		"/servers#add",
		"/servers#remove",
		"/servers/server[@name]#add",
		"/servers/server[@name]#add-named",
		"/servers/server[@name]#configure",
		"/servers/server[@name]#remove",
		"/servers/server[@name]#write-port",
	}
	ids := m.Identifiers()
	if len(ids) != len(expected) {
		t.Fatalf("expected %d handlers, got %d: %v", len(expected), len(ids), ids)
	}
	for i, id := range ids {
		if id.Key() != expected[i] {
			t.Errorf("expected %s at %d, got %s", expected[i], i, id.Key())
		}
	}

	err := m.Register(ids[0], NewIrreversibleRemoveHandler())
	if faults.CodeOf(err) != faults.ErrCodeDuplicate {
		t.Errorf("expected %s, got %v", faults.ErrCodeDuplicate, err)
	}
}

func TestWriteAttributeCompensationRoundTrip(t *testing.T) {
	m := newTestModel(t)
	withServer(t, m, "s1", 80)
	before := m.Snapshot()

	comp := invoke(t, m, "/servers/server[@name='s1']", "configure", map[string]metatype.MetaValue{
		"port":    metatype.IntValue(8080),
		"enabled": metatype.BoolValue(true),
	})
	if comp == nil {
		t.Fatal("expected a compensation")
	}
	server, _ := m.Entity(resource.MustAddress("/servers/server[@name='s1']"))
	if port, _ := server.Attribute("port"); !port.Equal(metatype.IntValue(8080)) {
		t.Errorf("expected port 8080, got %v", port)
	}
	if comp.Param("enabled") != nil {
		t.Errorf("expected compensation to unset enabled, got %v", comp.Param("enabled"))
	}

	if _, err := m.Apply(comp); err != nil {
		t.Fatalf("applying compensation failed: %v", err)
	}
	if !m.Root().Equal(before.Resource()) {
		t.Error("expected the compensation to restore the original tree")
	}
}

func TestWriteAttributeWithoutPriorValueIsIrreversible(t *testing.T) {
	m := newTestModel(t)
	invoke(t, m, "/servers", "add", nil)
	invoke(t, m, "/servers/server[@name='s1']", "add", map[string]metatype.MetaValue{"port": nil})

	comp := invoke(t, m, "/servers/server[@name='s1']", "write-port", map[string]metatype.MetaValue{
		"port": metatype.IntValue(80),
	})
	if comp != nil {
		t.Errorf("expected no compensation when the prior value was unset, got %s", comp)
	}
}

func TestRejectedInvocationLeavesTreeUnchanged(t *testing.T) {
	m := newTestModel(t)
	withServer(t, m, "s1", 80)
	address := "/servers/server[@name='s1']"

	tests := []struct {
		name   string
		op     string
		params map[string]metatype.MetaValue
		check  func(error) bool
	}{
		{"missing parameter", "configure", map[string]metatype.MetaValue{
			"port": metatype.IntValue(1),
		}, faults.IsSignature},
		{"extra parameter", "write-port", map[string]metatype.MetaValue{
			"port": metatype.IntValue(1), "enabled": metatype.BoolValue(false),
		}, faults.IsSignature},
		{"wrong type", "write-port", map[string]metatype.MetaValue{
			"port": metatype.StringValue("not-a-number"),
		}, faults.IsSignature},
		{"null for a required parameter", "configure", map[string]metatype.MetaValue{
			"port": nil, "enabled": metatype.BoolValue(true),
		}, faults.IsSignature},
		{"duplicate add", "add", map[string]metatype.MetaValue{
			"port": metatype.IntValue(81),
		}, func(err error) bool { return faults.CodeOf(err) == faults.ErrCodeDuplicate }},
		{"discriminator mismatch", "add-named", map[string]metatype.MetaValue{
			"name": metatype.StringValue("s9"), "port": nil,
		}, faults.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := m.Snapshot()
			_, err := apply(m, address, tt.op, tt.params)
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			if !m.Root().Equal(before.Resource()) {
				t.Error("expected the tree to be unchanged after a rejected invocation")
			}
		})
	}
}

func TestAddAndRemoveCompensate(t *testing.T) {
	m := newTestModel(t)
	invoke(t, m, "/servers", "add", nil)
	empty := m.Snapshot()

	comp := invoke(t, m, "/servers/server[@name='s1']", "add", map[string]metatype.MetaValue{
		"port": metatype.IntValue(80),
	})
	if comp == nil || comp.OperationID != RemoveOperation {
		t.Fatalf("expected a remove compensation, got %v", comp)
	}
	server, err := m.Entity(resource.MustAddress("/servers/server[@name='s1']"))
	if err != nil {
		t.Fatalf("expected the server to exist: %v", err)
	}
	if name, _ := server.Attribute("name"); !name.Equal(metatype.StringValue("s1")) {
		t.Errorf("expected name from the address, got %v", name)
	}
	withOne := m.Snapshot()

	if _, err := m.Apply(comp); err != nil {
		t.Fatalf("applying remove compensation failed: %v", err)
	}
	if !m.Root().Equal(empty.Resource()) {
		t.Fatal("expected the remove compensation to restore the empty group")
	}

	if err := m.Restore(withOne.Clone()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	comp = invoke(t, m, "/servers/server[@name='s1']", RemoveOperation, nil)
	if comp == nil || comp.OperationID != "add" {
		t.Fatalf("expected an add compensation, got %v", comp)
	}
	if _, err := m.Apply(comp); err != nil {
		t.Fatalf("applying add compensation failed: %v", err)
	}
	if !m.Root().Equal(withOne.Resource()) {
		t.Error("expected the add compensation to restore the server")
	}
}

func TestRemoveWithChildrenIsIrreversible(t *testing.T) {
	m := newTestModel(t)
	withServer(t, m, "s1", 80)

	comp := invoke(t, m, "/servers", RemoveOperation, nil)
	if comp != nil {
		t.Errorf("expected no compensation for a subtree removal, got %s", comp)
	}
	if _, err := m.Entity(resource.MustAddress("/servers")); !faults.IsAddress(err) {
		t.Errorf("expected the group to be gone, got %v", err)
	}
}

func TestAddRespectsCardinality(t *testing.T) {
	m := newTestModel(t)
	withServer(t, m, "s1", 80)
	withServer(t, m, "s2", 81)

	_, err := apply(m, "/servers/server[@name='s3']", "add", map[string]metatype.MetaValue{"port": nil})
	if !faults.IsCardinality(err) {
		t.Fatalf("expected cardinality error, got %v", err)
	}
	group, _ := m.Entity(resource.MustAddress("/servers"))
	if n := group.ChildCount(resource.EntityIDType{ElementName: "server", AttributeName: "name"}); n != 2 {
		t.Errorf("expected 2 servers, got %d", n)
	}
}

func TestApplyResolutionFailures(t *testing.T) {
	m := newTestModel(t)
	withServer(t, m, "s1", 80)

	_, err := apply(m, "/servers/server[@name='s1']", "reboot", nil)
	if faults.CodeOf(err) != faults.ErrCodeNoHandler {
		t.Errorf("expected %s, got %v", faults.ErrCodeNoHandler, err)
	}

	_, err = apply(m, "/servers/server[@name='nope']", "write-port", map[string]metatype.MetaValue{
		"port": metatype.IntValue(1),
	})
	if !faults.IsAddress(err) {
		t.Errorf("expected address error, got %v", err)
	}
	var fe *faults.Error
	if e, ok := err.(*faults.Error); ok {
		fe = e
	}
	if fe == nil || fe.Operation != "write-port" {
		t.Errorf("expected the error to carry the operation, got %v", err)
	}

	_, err = apply(m, "/clients/server[@name='s1']", "add", map[string]metatype.MetaValue{"port": nil})
	if faults.CodeOf(err) != faults.ErrCodeNoHandler {
		t.Errorf("expected %s, got %v", faults.ErrCodeNoHandler, err)
	}
}

func TestOperationHandler(t *testing.T) {
	m := newTestModel(t)
	withServer(t, m, "s1", 80)

	info, _ := m.Entity(resource.MustAddress("/servers/server[@name='s1']"))
	op, _ := info.Info().Operation("restart")
	calls := 0
	h := NewOperationHandler(op, func(target *resource.Mutable, inv *resource.ManagementInvocation) (*resource.ManagementInvocation, error) {
		calls++
		return nil, target.SetAttribute("enabled", metatype.BoolValue(true))
	})
	id := resource.NewUpdateIdentifier(resource.MustAddress("/servers/server[@name='x']"), "restart")
	if err := m.Register(id, h); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := apply(m, "/servers/server[@name='s1']", "restart", map[string]metatype.MetaValue{"force": metatype.BoolValue(true)})
	if !faults.IsSignature(err) {
		t.Errorf("expected signature error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected the operation not to run on a bad signature, got %d calls", calls)
	}

	invoke(t, m, "/servers/server[@name='s1']", "restart", nil)
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	enabled, _ := info.Attribute("enabled")
	if !metatype.ValuesEqual(enabled, metatype.BoolValue(true)) {
		t.Errorf("expected enabled to be true, got %v", enabled)
	}

	sig, err := m.Signature(resource.MustAddress("/servers/server[@name='s1']"), "configure")
	if err != nil || len(sig) != 2 {
		t.Errorf("expected the configure signature, got %v, %v", sig, err)
	}
}

func TestRemoveCompensationRestoresWrittenAttributes(t *testing.T) {
	m := newTestModel(t)
	withServer(t, m, "s1", 80)
	invoke(t, m, "/servers/server[@name='s1']", "write-port", map[string]metatype.MetaValue{
		"port": metatype.IntValue(81),
	})
	before := m.Snapshot()

	comp := invoke(t, m, "/servers/server[@name='s1']", RemoveOperation, nil)
	if comp == nil {
		t.Fatal("expected an add compensation")
	}
	if !metatype.ValuesEqual(comp.Param("port"), metatype.IntValue(81)) {
		t.Errorf("expected the compensation to carry port 81, got %v", comp.Param("port"))
	}
	if _, err := m.Apply(comp); err != nil {
		t.Fatalf("applying add compensation failed: %v", err)
	}
	if !m.Root().Equal(before.Resource()) {
		t.Error("expected the compensation to restore the removed server")
	}
}

func TestRemoveAfterWriteOutsideAdderIsIrreversible(t *testing.T) {
	m := newTestModel(t)
	withServer(t, m, "s1", 80)
	invoke(t, m, "/servers/server[@name='s1']", "configure", map[string]metatype.MetaValue{
		"port":    metatype.IntValue(81),
		"enabled": metatype.BoolValue(true),
	})

	comp := invoke(t, m, "/servers/server[@name='s1']", RemoveOperation, nil)
	if comp != nil {
		t.Errorf("expected no compensation when enabled cannot be re-added, got %s", comp)
	}
}

func TestAddCompensationRespectsMinimumCardinality(t *testing.T) {
	leaf, err := resource.NewInfoBuilder(resource.EntityIDType{ElementName: "leaf", AttributeName: "id"}, "a leaf").
		Attribute("id", metatype.String, "leaf id").
		Adder(resource.AdderInfo{Name: "add"}).
		Build()
	if err != nil {
		t.Fatalf("building leaf info failed: %v", err)
	}
	root, err := resource.NewRootInfoBuilder("root").
		Child(leaf, resource.OneUnbounded).
		Build()
	if err != nil {
		t.Fatalf("building root info failed: %v", err)
	}
	m, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m.RegisterDefaults(); err != nil {
		t.Fatalf("RegisterDefaults failed: %v", err)
	}

	if comp := invoke(t, m, "/leaf[@id='a']", "add", nil); comp != nil {
		t.Errorf("expected no compensation for the only required leaf, got %s", comp)
	}
	withA := m.Snapshot()

	comp := invoke(t, m, "/leaf[@id='b']", "add", nil)
	if comp == nil {
		t.Fatal("expected a remove compensation for the second leaf")
	}
	if _, err := m.Apply(comp); err != nil {
		t.Fatalf("applying remove compensation failed: %v", err)
	}
	if !m.Root().Equal(withA.Resource()) {
		t.Error("expected the compensation to restore the single leaf")
	}

	_, err = apply(m, "/leaf[@id='a']", RemoveOperation, nil)
	if !faults.IsCardinality(err) {
		t.Errorf("expected cardinality error removing the last leaf, got %v", err)
	}
}

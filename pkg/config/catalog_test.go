package config

import (
	"reflect"
	"testing"

	"github.com/openfroyo/detyped/pkg/metatype"
	"github.com/openfroyo/detyped/pkg/resource"
)

func TestCatalogNewModel(t *testing.T) {
	catalog := buildTestCatalog(t)

	m, err := catalog.NewModel()
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}

	keys := map[string]bool{}
	for _, id := range m.Identifiers() {
		keys[id.Key()] = true
	}
	for _, want := range []string{
		"/server[@name]#add",
		"/server[@name]#remove",
		"/server[@name]#write-port",
		"/server[@name]/disk[@id]#add",
		"/server[@name]/disk[@id]#remove",
	} {
		if !keys[want] {
			t.Errorf("expected handler %s, got %v", want, keys)
		}
	}
	if keys["/server[@name]#restart"] {
		t.Error("restart needs a custom handler")
	}

	server := resource.MustAddress("/server[@name='web-01']")
	add, err := resource.NewInvocation(server, "add", map[string]metatype.MetaValue{"port": metatype.IntValue(8080)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Apply(add); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	entity, err := m.Entity(server)
	if err != nil {
		t.Fatalf("expected the new server: %v", err)
	}
	name, _ := entity.Attribute("name")
	if !metatype.ValuesEqual(name, metatype.StringValue("web-01")) {
		t.Errorf("expected name from the address, got %v", name)
	}

	write, err := resource.NewInvocation(server, "write-port", map[string]metatype.MetaValue{"port": metatype.IntValue(9090)})
	if err != nil {
		t.Fatal(err)
	}
	comp, err := m.Apply(write)
	if err != nil {
		t.Fatalf("write-port failed: %v", err)
	}
	if comp == nil || !metatype.ValuesEqual(comp.Param("port"), metatype.IntValue(8080)) {
		t.Errorf("expected a compensation restoring 8080, got %v", comp)
	}
}

func TestCatalogNames(t *testing.T) {
	catalog := buildTestCatalog(t)

	if got, want := catalog.TypeNames(), []string{"Endpoint", "Port", "Protocol"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TypeNames() = %v, want %v", got, want)
	}
	if got, want := catalog.ResourceNames(), []string{"disk", "root", "server"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ResourceNames() = %v, want %v", got, want)
	}
}

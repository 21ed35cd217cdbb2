package metatype

import (
	"testing"

	"github.com/openfroyo/detyped/pkg/faults"
)

func mustComposite(t *testing.T, name string, items ...Item) *CompositeType {
	t.Helper()
	ct, err := NewCompositeType(name, name+" type", items...)
	if err != nil {
		t.Fatalf("NewCompositeType(%s) failed: %v", name, err)
	}
	return ct
}

func serverType(t *testing.T) *CompositeType {
	return mustComposite(t, "server",
		Item{Name: "name", Description: "server name", Type: String},
		Item{Name: "port", Description: "listen port", Type: Integer},
	)
}

// typeFactories build structurally equal but distinct instances of each variant.
func typeFactories(t *testing.T) map[string]func() MetaType {
	return map[string]func() MetaType{
		"enum": func() MetaType {
			et, err := NewEnumType("state", "run state", "up", "down")
			if err != nil {
				t.Fatalf("NewEnumType failed: %v", err)
			}
			return et
		},
		"composite": func() MetaType { return serverType(t) },
		"composite map": func() MetaType {
			m, err := NewCompositeMapType("servers", "by name", serverType(t), "name")
			if err != nil {
				t.Fatalf("NewCompositeMapType failed: %v", err)
			}
			return m
		},
		"table": func() MetaType {
			tt, err := NewTableType("listeners", "by name and port", serverType(t), "name", "port")
			if err != nil {
				t.Fatalf("NewTableType failed: %v", err)
			}
			return tt
		},
		"array": func() MetaType {
			at, err := NewArrayType(2, String)
			if err != nil {
				t.Fatalf("NewArrayType failed: %v", err)
			}
			return at
		},
		"collection": func() MetaType {
			ct, err := NewCollectionType(serverType(t))
			if err != nil {
				t.Fatalf("NewCollectionType failed: %v", err)
			}
			return ct
		},
		"map": func() MetaType {
			mt, err := NewMapType(String, Long)
			if err != nil {
				t.Fatalf("NewMapType failed: %v", err)
			}
			return mt
		},
	}
}

func TestTypeEqualityIsEquivalence(t *testing.T) {
	for name, build := range typeFactories(t) {
		t.Run(name, func(t *testing.T) {
			a, b, c := build(), build(), build()

			if !a.Equal(a) {
				t.Errorf("expected %s to equal itself", a)
			}
			if a.Equal(b) != b.Equal(a) {
				t.Errorf("equality is not symmetric for %s", a)
			}
			if !a.Equal(b) || !b.Equal(c) || !a.Equal(c) {
				t.Errorf("expected independently built %s instances to be equal", name)
			}
			if a.Hash() != b.Hash() {
				t.Errorf("expected equal hashes, got %d and %d", a.Hash(), b.Hash())
			}
			if a.Equal(String) {
				t.Errorf("expected %s not to equal a simple type", a)
			}
		})
	}
}

func TestSimpleTypeIdentity(t *testing.T) {
	for _, st := range SimpleTypes() {
		resolved, ok := ResolveSimple(st.ClassName())
		if !ok {
			t.Fatalf("expected %s to resolve", st.ClassName())
		}
		if resolved != st {
			t.Errorf("expected %s to resolve to the canonical singleton", st.ClassName())
		}
		for _, other := range SimpleTypes() {
			if st.Equal(other) && st != other {
				t.Errorf("%s equals %s but they are distinct instances", st, other)
			}
		}
	}

	if _, ok := ResolveSimple("*uint64"); ok {
		t.Error("expected unknown class name not to resolve")
	}
	if Integer.Equal(IntegerPrimitive) {
		t.Error("expected boxed and primitive integer types to differ")
	}
	if !Integer.EqualIgnorePrimitive(IntegerPrimitive) {
		t.Error("expected boxed and primitive integer types to share a scalar")
	}
}

func TestIsValueConsistentWithEquals(t *testing.T) {
	for name, build := range typeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t1, t2 := build(), build()
			probes := []interface{}{
				nil, "up", 42, StringValue("x"), IntValue(1),
				sampleValue(t, t1), sampleValue(t, t2),
			}
			for _, p := range probes {
				if t1.IsValue(p) != t2.IsValue(p) {
					t.Errorf("IsValue(%v) differs between equal types", p)
				}
			}
			if !t1.IsValue(sampleValue(t, t2)) {
				t.Errorf("expected %s to accept a value of an equal type", t1)
			}
		})
	}
}

func sampleValue(t *testing.T, mt MetaType) MetaValue {
	t.Helper()
	var (
		v   MetaValue
		err error
	)
	switch x := mt.(type) {
	case *EnumType:
		v, err = NewEnumValue(x, "up")
	case *CompositeType:
		v, err = NewCompositeValue(x, map[string]MetaValue{"name": StringValue("http"), "port": IntValue(80)})
	case *CompositeMapType:
		var entry *CompositeValue
		entry, err = NewCompositeValue(x.EntryType(), map[string]MetaValue{"name": StringValue("http")})
		if err == nil {
			v, err = NewCompositeMapValue(x, entry)
		}
	case *TableType:
		var row *CompositeValue
		row, err = NewCompositeValue(x.RowType(), map[string]MetaValue{"name": StringValue("http"), "port": IntValue(80)})
		if err == nil {
			v, err = NewTableValue(x, row)
		}
	case *ArrayType:
		var inner *ArrayValue
		inner, err = NewArrayValue(x.ComponentType().(*ArrayType), StringValue("a"), nil)
		if err == nil {
			v, err = NewArrayValue(x, inner)
		}
	case *CollectionType:
		var elem *CompositeValue
		elem, err = NewCompositeValue(x.ElementType().(*CompositeType), nil)
		if err == nil {
			v, err = NewCollectionValue(x, elem)
		}
	case *MapType:
		var mv *MapValue
		mv, err = NewMapValue(x)
		if err == nil {
			_, err = mv.Put(StringValue("k"), LongValue(7))
			v = mv
		}
	default:
		t.Fatalf("no sample for %s", mt)
	}
	if err != nil {
		t.Fatalf("building sample of %s failed: %v", mt, err)
	}
	return v
}

func TestTypeConstructionFailsFast(t *testing.T) {
	row := serverType(t)

	tests := []struct {
		name  string
		build func() error
	}{
		{"composite without items", func() error {
			_, err := NewCompositeType("empty", "")
			return err
		}},
		{"composite with duplicate item", func() error {
			_, err := NewCompositeType("dup", "", Item{Name: "a", Type: String}, Item{Name: "a", Type: Long})
			return err
		}},
		{"composite item without type", func() error {
			_, err := NewCompositeType("untyped", "", Item{Name: "a"})
			return err
		}},
		{"composite map with unknown index", func() error {
			_, err := NewCompositeMapType("servers", "", row, "address")
			return err
		}},
		{"table without index", func() error {
			_, err := NewTableType("listeners", "", row)
			return err
		}},
		{"table with unknown column", func() error {
			_, err := NewTableType("listeners", "", row, "name", "proto")
			return err
		}},
		{"array of dimension zero", func() error {
			_, err := NewArrayType(0, String)
			return err
		}},
		{"collection without element", func() error {
			_, err := NewCollectionType(nil)
			return err
		}},
		{"map without value type", func() error {
			_, err := NewMapType(String, nil)
			return err
		}},
		{"enum with duplicate token", func() error {
			_, err := NewEnumType("state", "", "up", "up")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build()
			if err == nil {
				t.Fatal("expected construction to fail")
			}
			if !faults.IsSchema(err) {
				t.Errorf("expected schema error, got %v", err)
			}
		})
	}
}

func TestMutableCompositeFreeze(t *testing.T) {
	ct, err := NewMutableCompositeType("endpoint", "an endpoint")
	if err != nil {
		t.Fatalf("NewMutableCompositeType failed: %v", err)
	}
	if err := ct.Freeze(); err == nil {
		t.Fatal("expected freezing an empty composite to fail")
	}
	if err := ct.AddItem("host", "host name", String); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if err := ct.Freeze(); err != nil {
		t.Fatalf("Freeze failed: %v", err)
	}
	if !ct.IsFrozen() {
		t.Error("expected composite to be frozen")
	}
	if err := ct.AddItem("port", "", Integer); !faults.IsState(err) {
		t.Errorf("expected state error adding to a frozen composite, got %v", err)
	}
	if ct.Len() != 1 {
		t.Errorf("expected 1 item, got %d", ct.Len())
	}

	immutable := serverType(t)
	if err := immutable.AddItem("extra", "", String); err == nil {
		t.Error("expected AddItem on an immutable composite to fail")
	}
}

func TestArrayTypeFoldsNestedArrays(t *testing.T) {
	inner, err := NewArrayType(1, Integer)
	if err != nil {
		t.Fatalf("NewArrayType failed: %v", err)
	}
	outer, err := NewArrayType(1, inner)
	if err != nil {
		t.Fatalf("NewArrayType failed: %v", err)
	}
	direct, _ := NewArrayType(2, Integer)

	if outer.Dimension() != 2 {
		t.Errorf("expected dimension 2, got %d", outer.Dimension())
	}
	if !outer.Equal(direct) {
		t.Errorf("expected %s to equal %s", outer, direct)
	}
	if outer.ClassName() != "[][]*int32" {
		t.Errorf("expected class name [][]*int32, got %s", outer.ClassName())
	}
	if !outer.ComponentType().Equal(inner) {
		t.Errorf("expected component type %s, got %s", inner, outer.ComponentType())
	}
}

func TestMapEntryType(t *testing.T) {
	mt, err := NewMapType(String, Integer)
	if err != nil {
		t.Fatalf("NewMapType failed: %v", err)
	}
	entry := mt.EntryType()
	keyType, ok := entry.ItemType(MapKeyItem)
	if !ok || keyType != String {
		t.Errorf("expected KEY item of type string, got %v", keyType)
	}
	valueType, ok := entry.ItemType(MapValueItem)
	if !ok || valueType != Integer {
		t.Errorf("expected VALUE item of type *int32, got %v", valueType)
	}
	if mt.Kind() != KindMap || !mt.IsMap() || mt.IsComposite() {
		t.Errorf("unexpected predicates for %s", mt)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindSimple, "simple"},
		{KindCompositeMap, "composite-map"},
		{KindMap, "map"},
		{Kind(99), "kind(99)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, got)
		}
	}
}

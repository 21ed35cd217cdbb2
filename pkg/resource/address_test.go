package resource

import (
	"testing"

	"github.com/openfroyo/detyped/pkg/faults"
)

func TestParseAddressScenario(t *testing.T) {
	a, err := ParseAddress("servers/server[@name='s1']/services")
	if err != nil {
		t.Fatalf("ParseAddress failed: %v", err)
	}
	if a.Len() != 3 {
		t.Fatalf("expected 3 elements, got %d", a.Len())
	}
	last, ok := a.LastElement()
	if !ok || last.ElementName != "services" {
		t.Errorf("expected last element services, got %v", last)
	}
	if got := a.Parent().String(); got != "/servers/server[@name='s1']" {
		t.Errorf("expected parent /servers/server[@name='s1'], got %s", got)
	}
	server := a.Element(1)
	if server.AttributeName != "name" || server.AttributeValue != "s1" {
		t.Errorf("expected discriminator name='s1', got %s", server)
	}
}

func TestAddressRoundTrip(t *testing.T) {
	tests := []Address{
		Root,
		MustAddress("/a"),
		MustAddress("/a/b[@id='1']"),
		MustAddress("/servers/server[@name='s1']/services/service[@path='/var/run']"),
	}
	for _, a := range tests {
		t.Run(a.String(), func(t *testing.T) {
			parsed, err := ParseAddress(a.String())
			if err != nil {
				t.Fatalf("ParseAddress(%q) failed: %v", a.String(), err)
			}
			if !parsed.Equal(a) {
				t.Errorf("expected %s, got %s", a, parsed)
			}
			if parsed.Hash() != a.Hash() {
				t.Errorf("expected equal hashes, got %d and %d", parsed.Hash(), a.Hash())
			}
		})
	}
}

func TestParseAddressRoot(t *testing.T) {
	for _, s := range []string{"", "/"} {
		a, err := ParseAddress(s)
		if err != nil {
			t.Fatalf("ParseAddress(%q) failed: %v", s, err)
		}
		if !a.IsRoot() {
			t.Errorf("expected %q to be the root", s)
		}
	}
	if !Root.Parent().IsRoot() {
		t.Error("expected the parent of the root to be the root")
	}
	if Root.String() != "/" {
		t.Errorf("expected /, got %s", Root.String())
	}
}

func TestParseEntityIDErrors(t *testing.T) {
	tests := []string{
		"",
		"server[@",
		"server[@name='s1'",
		"server[@name]",
		"server[@name='it's']",
	}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			if _, err := ParseEntityID(s); !faults.IsValidation(err) {
				t.Errorf("expected validation error for %q, got %v", s, err)
			}
		})
	}

	if _, err := NewEntityID("server", "name", "o'brien"); err == nil {
		t.Error("expected a quote in a discriminator value to be rejected")
	}
}

func TestAddressRelations(t *testing.T) {
	parent := MustAddress("/servers")
	child := MustAddress("/servers/server[@name='s1']")
	grandchild := MustAddress("/servers/server[@name='s1']/services")
	other := MustAddress("/clients/server[@name='s1']")

	tests := []struct {
		name     string
		got      bool
		expected bool
	}{
		{"child of parent", child.IsChildOf(parent), true},
		{"direct child", child.IsDirectChildOf(parent), true},
		{"grandchild not direct", grandchild.IsDirectChildOf(parent), false},
		{"grandchild of parent", grandchild.IsChildOf(parent), true},
		{"equal is not child", parent.IsChildOf(parent), false},
		{"equal is child or equals", parent.IsChildOrEquals(parent), true},
		{"different prefix", other.IsChildOf(parent), false},
		{"everything below root", grandchild.IsChildOf(Root), true},
	}
	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, tt.got)
		}
	}
}

func TestAddressSubAddressAndReplace(t *testing.T) {
	a := MustAddress("/a/b/c")

	anc, err := a.Ancestor(2)
	if err != nil {
		t.Fatalf("Ancestor failed: %v", err)
	}
	if anc.String() != "/a/b" {
		t.Errorf("expected /a/b, got %s", anc)
	}
	if zero, _ := a.Ancestor(0); !zero.IsRoot() {
		t.Errorf("expected Ancestor(0) to be the root, got %s", zero)
	}
	if _, err := a.SubAddress(2, 1); err == nil {
		t.Error("expected end < start to fail")
	}
	if a.String() != "/a/b/c" {
		t.Errorf("expected sub-address extraction not to mutate, got %s", a)
	}

	moved, err := a.ReplaceAncestor(MustAddress("/a"), MustAddress("/x/y"))
	if err != nil {
		t.Fatalf("ReplaceAncestor failed: %v", err)
	}
	if moved.String() != "/x/y/b/c" {
		t.Errorf("expected /x/y/b/c, got %s", moved)
	}
	if _, err := a.ReplaceAncestor(MustAddress("/q"), Root); err == nil {
		t.Error("expected a non-ancestor to be rejected")
	}
}

func TestAddressCompare(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"/", "/", 0},
		{"/", "/a", -1},
		{"/a", "/", 1},
		{"/a", "/a/b", -1},
		{"/a/b", "/a/c", -1},
		{"/s/server", "/s/server[@name='x']", -1},
		{"/s/server[@name='b']", "/s/server[@name='a']", 1},
	}
	for _, tt := range tests {
		got := MustAddress(tt.a).Compare(MustAddress(tt.b))
		if got != tt.expected {
			t.Errorf("Compare(%s, %s): expected %d, got %d", tt.a, tt.b, tt.expected, got)
		}
	}
}

func TestCardinalityValidate(t *testing.T) {
	tests := []struct {
		min, max int
		wantErr  bool
	}{
		{0, 1, false},
		{1, Unbounded, false},
		{-1, 1, true},
		{0, -2, true},
		{3, 2, true},
	}
	for _, tt := range tests {
		_, err := NewCardinality(tt.min, tt.max)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewCardinality(%d, %d): expected error %v, got %v", tt.min, tt.max, tt.wantErr, err)
		}
	}
	if ZeroUnbounded.String() != "0..*" || One.String() != "1..1" {
		t.Errorf("unexpected cardinality strings %s and %s", ZeroUnbounded, One)
	}
}

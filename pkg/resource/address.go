package resource

import (
	"strings"

	"github.com/openfroyo/detyped/pkg/faults"
)

// Address is an immutable path of entity ids from the root. The zero value is
// the root address.
type Address struct {
	elements []EntityID
}

// Root is the empty address.
var Root = Address{}

// NewAddress creates an address from ids. Zero-value ids are rejected.
func NewAddress(ids ...EntityID) (Address, error) {
	for i, id := range ids {
		if id.IsZero() {
			return Address{}, faults.NewValidationError("entity id %d is empty", i)
		}
	}
	if len(ids) == 0 {
		return Root, nil
	}
	elements := make([]EntityID, len(ids))
	copy(elements, ids)
	return Address{elements: elements}, nil
}

// MustAddress is ParseAddress for literals known to be valid.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAddress parses the string form produced by Address.String. "" and "/"
// are the root; a leading separator is optional. Separators inside a quoted
// discriminator value do not split segments.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(s, Separator)
	if s == "" {
		return Root, nil
	}
	segments := splitSegments(s)
	ids := make([]EntityID, len(segments))
	for i, seg := range segments {
		id, err := ParseEntityID(seg)
		if err != nil {
			return Address{}, faults.NewValidationError("invalid address %q", s).WithCause(err).WithDetail("segment", i)
		}
		ids[i] = id
	}
	return Address{elements: ids}, nil
}

func splitSegments(s string) []string {
	var (
		out     []string
		start   int
		inQuote bool
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case '/':
			if !inQuote {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// Len returns the number of segments.
func (a Address) Len() int { return len(a.elements) }

// IsRoot reports whether a is the root address.
func (a Address) IsRoot() bool { return len(a.elements) == 0 }

// Element returns segment i.
func (a Address) Element(i int) EntityID { return a.elements[i] }

// Elements returns a copy of the segments.
func (a Address) Elements() []EntityID {
	out := make([]EntityID, len(a.elements))
	copy(out, a.elements)
	return out
}

// LastElement returns the leaf segment; false for the root.
func (a Address) LastElement() (EntityID, bool) {
	if a.IsRoot() {
		return EntityID{}, false
	}
	return a.elements[len(a.elements)-1], true
}

// HasElement reports whether id is one of the segments.
func (a Address) HasElement(id EntityID) bool {
	for _, e := range a.elements {
		if e == id {
			return true
		}
	}
	return false
}

// EntityIDTypes returns the identifier type of every segment.
func (a Address) EntityIDTypes() []EntityIDType {
	out := make([]EntityIDType, len(a.elements))
	for i, e := range a.elements {
		out[i] = e.Type()
	}
	return out
}

// Append returns a new address with ids added below a.
func (a Address) Append(ids ...EntityID) (Address, error) {
	for i, id := range ids {
		if id.IsZero() {
			return Address{}, faults.NewValidationError("entity id %d is empty", i)
		}
	}
	elements := make([]EntityID, 0, len(a.elements)+len(ids))
	elements = append(elements, a.elements...)
	elements = append(elements, ids...)
	if len(elements) == 0 {
		return Root, nil
	}
	return Address{elements: elements}, nil
}

// Child returns a with one id appended. id must not be zero.
func (a Address) Child(id EntityID) Address {
	elements := make([]EntityID, 0, len(a.elements)+1)
	elements = append(elements, a.elements...)
	return Address{elements: append(elements, id)}
}

// Parent returns the address one level up. The parent of the root is the root.
func (a Address) Parent() Address {
	if len(a.elements) <= 1 {
		return Root
	}
	return Address{elements: a.elements[: len(a.elements)-1 : len(a.elements)-1]}
}

// Ancestor returns the first generation segments. Ancestor(0) is the root.
func (a Address) Ancestor(generation int) (Address, error) {
	return a.SubAddress(0, generation)
}

// SubAddress returns the segments in [start, end).
func (a Address) SubAddress(start, end int) (Address, error) {
	if start < 0 || end > len(a.elements) || end < start {
		return Address{}, faults.NewValidationError("sub-address [%d,%d) out of range for %s", start, end, a)
	}
	if start == end {
		return Root, nil
	}
	elements := make([]EntityID, end-start)
	copy(elements, a.elements[start:end])
	return Address{elements: elements}, nil
}

// IsChildOrEquals reports whether parent is a prefix of a.
func (a Address) IsChildOrEquals(parent Address) bool {
	if len(parent.elements) > len(a.elements) {
		return false
	}
	for i := len(parent.elements) - 1; i >= 0; i-- {
		if parent.elements[i] != a.elements[i] {
			return false
		}
	}
	return true
}

// IsChildOf reports whether parent is a strict prefix of a.
func (a Address) IsChildOf(parent Address) bool {
	return len(parent.elements) != len(a.elements) && a.IsChildOrEquals(parent)
}

// IsDirectChildOf reports whether a is exactly one level below parent.
func (a Address) IsDirectChildOf(parent Address) bool {
	return len(a.elements) == len(parent.elements)+1 && a.IsChildOf(parent)
}

// ReplaceAncestor rebases a from oldAncestor onto newAncestor.
func (a Address) ReplaceAncestor(oldAncestor, newAncestor Address) (Address, error) {
	if !a.IsChildOf(oldAncestor) {
		return Address{}, faults.NewValidationError("%s is not an ancestor of %s", oldAncestor, a)
	}
	rel, err := a.SubAddress(oldAncestor.Len(), a.Len())
	if err != nil {
		return Address{}, err
	}
	return newAncestor.Append(rel.elements...)
}

// Equal compares segments from the leaf upwards, where addresses most often
// differ.
func (a Address) Equal(o Address) bool {
	if len(a.elements) != len(o.elements) {
		return false
	}
	for i := len(a.elements) - 1; i >= 0; i-- {
		if a.elements[i] != o.elements[i] {
			return false
		}
	}
	return true
}

// Hash is consistent with Equal.
func (a Address) Hash() int32 {
	h := int32(19)
	for _, e := range a.elements {
		h = 31*h + e.hash()
	}
	return h
}

// Compare orders the root first, then segment by segment, then shorter
// addresses before longer ones.
func (a Address) Compare(o Address) int {
	n := min(len(a.elements), len(o.elements))
	for i := 0; i < n; i++ {
		if c := a.elements[i].Compare(o.elements[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a.elements) < len(o.elements):
		return -1
	case len(a.elements) > len(o.elements):
		return 1
	}
	return 0
}

// String returns "/" for the root, otherwise "/seg/seg".
func (a Address) String() string {
	if a.IsRoot() {
		return Separator
	}
	var b strings.Builder
	for _, e := range a.elements {
		b.WriteString(Separator)
		b.WriteString(e.String())
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

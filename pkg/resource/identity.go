package resource

import (
	"strings"

	"github.com/openfroyo/detyped/pkg/faults"
)

// Separator joins address segments in the string form of an Address.
const Separator = "/"

// EntityIDType is the schema-level identity of a node: an element name and an
// optional discriminator attribute name.
type EntityIDType struct {
	// ElementName is the element name, e.g. "server".
	ElementName string `json:"element"`

	// AttributeName is the discriminator attribute name, empty when absent.
	AttributeName string `json:"attribute,omitempty"`
}

// NewEntityIDType validates and creates an identifier type.
func NewEntityIDType(elementName, attributeName string) (EntityIDType, error) {
	if err := checkName("element name", elementName); err != nil {
		return EntityIDType{}, err
	}
	if attributeName != "" {
		if err := checkName("discriminator attribute name", attributeName); err != nil {
			return EntityIDType{}, err
		}
	}
	return EntityIDType{ElementName: elementName, AttributeName: attributeName}, nil
}

// HasAttribute reports whether the type carries a discriminator.
func (t EntityIDType) HasAttribute() bool { return t.AttributeName != "" }

// String returns "name" or "name[@attr]".
func (t EntityIDType) String() string {
	if t.AttributeName == "" {
		return t.ElementName
	}
	return t.ElementName + "[@" + t.AttributeName + "]"
}

// ID returns the entity id of this type with the given discriminator value.
func (t EntityIDType) ID(value string) (EntityID, error) {
	return NewEntityID(t.ElementName, t.AttributeName, value)
}

// EntityID is one address segment: an element name plus an optional
// discriminator attribute name and value.
type EntityID struct {
	// ElementName is the element name.
	ElementName string `json:"element"`

	// AttributeName is the discriminator attribute name, empty when absent.
	AttributeName string `json:"attribute,omitempty"`

	// AttributeValue is the discriminator value; empty when AttributeName is.
	AttributeValue string `json:"value,omitempty"`
}

// NewEntityID validates and creates an entity id. A discriminator attribute
// requires a value, and the value may not contain a single quote because the
// string form cannot escape it.
func NewEntityID(elementName, attributeName, attributeValue string) (EntityID, error) {
	if err := checkName("element name", elementName); err != nil {
		return EntityID{}, err
	}
	if attributeName == "" {
		if attributeValue != "" {
			return EntityID{}, faults.NewValidationError("discriminator value %q given without an attribute name", attributeValue).
				WithDetail("element", elementName)
		}
		return EntityID{ElementName: elementName}, nil
	}
	if err := checkName("discriminator attribute name", attributeName); err != nil {
		return EntityID{}, err
	}
	if attributeValue == "" {
		return EntityID{}, faults.NewValidationError("discriminator %s of %s has no value", attributeName, elementName)
	}
	if strings.ContainsRune(attributeValue, '\'') {
		return EntityID{}, faults.NewValidationError("discriminator value %q contains a single quote", attributeValue).
			WithDetail("element", elementName)
	}
	return EntityID{ElementName: elementName, AttributeName: attributeName, AttributeValue: attributeValue}, nil
}

// MustEntityID is NewEntityID for literals known to be valid.
func MustEntityID(elementName, attributeName, attributeValue string) EntityID {
	id, err := NewEntityID(elementName, attributeName, attributeValue)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseEntityID parses "name" or "name[@attr='value']".
func ParseEntityID(s string) (EntityID, error) {
	idx := strings.Index(s, "[@")
	if idx == -1 {
		return NewEntityID(s, "", "")
	}
	if idx == len(s)-2 {
		return EntityID{}, faults.NewValidationError("%s has a discriminator delimiter but no attribute", s)
	}
	if !strings.HasSuffix(s, "']") {
		return EntityID{}, faults.NewValidationError("%s does not terminate its discriminator with ']", s)
	}
	section := s[idx+2 : len(s)-2]
	eq := strings.Index(section, "='")
	if eq == -1 {
		return EntityID{}, faults.NewValidationError("%s has a discriminator without a value", s)
	}
	return NewEntityID(s[:idx], section[:eq], section[eq+2:])
}

// Type returns the identifier type of the id.
func (id EntityID) Type() EntityIDType {
	return EntityIDType{ElementName: id.ElementName, AttributeName: id.AttributeName}
}

// HasAttribute reports whether the id carries a discriminator.
func (id EntityID) HasAttribute() bool { return id.AttributeName != "" }

// IsZero reports whether id is the zero value.
func (id EntityID) IsZero() bool { return id.ElementName == "" }

// String returns "name" or "name[@attr='value']".
func (id EntityID) String() string {
	if id.AttributeName == "" {
		return id.ElementName
	}
	return id.ElementName + "[@" + id.AttributeName + "='" + id.AttributeValue + "']"
}

// Compare orders ids by element name, then ids without a discriminator first,
// then by attribute name and value.
func (id EntityID) Compare(o EntityID) int {
	if c := strings.Compare(id.ElementName, o.ElementName); c != 0 {
		return c
	}
	switch {
	case id.AttributeName == "" && o.AttributeName == "":
		return 0
	case id.AttributeName == "":
		return -1
	case o.AttributeName == "":
		return 1
	}
	if c := strings.Compare(id.AttributeName, o.AttributeName); c != 0 {
		return c
	}
	return strings.Compare(id.AttributeValue, o.AttributeValue)
}

func (id EntityID) hash() int32 {
	h := int32(19)
	h += 31 * hashString(id.ElementName)
	if id.AttributeName != "" {
		h += 31 * hashString(id.AttributeName)
		h += 31 * hashString(id.AttributeValue)
	}
	return h
}

func checkName(what, name string) error {
	if name == "" {
		return faults.NewValidationError("%s is empty", what)
	}
	if strings.Contains(name, Separator) {
		return faults.NewValidationError("%s %q contains %q", what, name, Separator)
	}
	if strings.ContainsAny(name, "[]@='") {
		return faults.NewValidationError("%s %q contains a reserved character", what, name)
	}
	return nil
}

func hashString(s string) int32 {
	var h int32
	for _, r := range s {
		h = 31*h + int32(r)
	}
	return h
}

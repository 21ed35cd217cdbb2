package config

import (
	"fmt"

	"github.com/openfroyo/detyped/pkg/metatype"
	"github.com/openfroyo/detyped/pkg/model"
	"github.com/openfroyo/detyped/pkg/resource"
)

// Catalog is a built schema document.
type Catalog struct {
	// Types are the declared named types.
	Types map[string]metatype.MetaType

	// Infos are the resource infos keyed by resource name.
	Infos map[string]*resource.Info

	// Root is the info of the tree root.
	Root *resource.Info

	// Document is the source document.
	Document *SchemaDocument
}

// Type returns a declared named type.
func (c *Catalog) Type(name string) (metatype.MetaType, bool) {
	t, ok := c.Types[name]
	return t, ok
}

// Info returns the info of a resource by name.
func (c *Catalog) Info(name string) (*resource.Info, bool) {
	info, ok := c.Infos[name]
	return info, ok
}

// TypeNames returns the named type names, sorted.
func (c *Catalog) TypeNames() []string {
	return sortedKeys(c.Types)
}

// ResourceNames returns the resource names, sorted.
func (c *Catalog) ResourceNames() []string {
	return sortedKeys(c.Infos)
}

// NewModel creates an empty model over the catalog's root with the default
// handlers registered.
func (c *Catalog) NewModel() (*model.Model, error) {
	m, err := model.New(c.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}
	if err := m.RegisterDefaults(); err != nil {
		return nil, fmt.Errorf("failed to register default handlers: %w", err)
	}
	return m, nil
}

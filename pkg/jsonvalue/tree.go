package jsonvalue

import (
	"github.com/openfroyo/detyped/pkg/resource"
)

// EntityDocument is the JSON form of a resource subtree.
type EntityDocument struct {
	// Address is the absolute address of the entity.
	Address string `json:"address"`

	// IDOnly marks a placeholder whose content is not available.
	IDOnly bool `json:"id_only,omitempty"`

	// Attributes holds the set attributes.
	Attributes map[string]interface{} `json:"attributes,omitempty"`

	// Children groups child documents by child type, in insertion order.
	Children map[string][]*EntityDocument `json:"children,omitempty"`
}

// EncodeResource converts r and its subtree to documents.
func EncodeResource(r *resource.ManagedResource) (*EntityDocument, error) {
	doc := &EntityDocument{Address: r.Address().String(), IDOnly: r.IsIDOnly()}
	if r.IsIDOnly() {
		return doc, nil
	}
	values, err := r.AttributeValues()
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		doc.Attributes = make(map[string]interface{}, len(values))
	}
	for name, v := range values {
		attr, _ := r.Info().Attribute(name)
		enc, err := ToJSON(v, attr.Type)
		if err != nil {
			return nil, err
		}
		doc.Attributes[name] = enc
	}
	for _, t := range r.ChildTypes() {
		children, err := r.Children(t)
		if err != nil {
			return nil, err
		}
		if doc.Children == nil {
			doc.Children = make(map[string][]*EntityDocument)
		}
		for _, c := range children {
			cd, err := EncodeResource(c)
			if err != nil {
				return nil, err
			}
			doc.Children[t.String()] = append(doc.Children[t.String()], cd)
		}
	}
	return doc, nil
}

package model

import (
	"encoding/json"
	"fmt"
)

// EntityTypeDefinition is the serialized form of an entity type.
type EntityTypeDefinition struct {
	Namespace   string  `json:"namespace"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
}

// Build validates the definition into an entity type.
func (d EntityTypeDefinition) Build() (*EntityType, error) {
	return NewEntityType(d.Namespace, d.Name, d.Description, d.Fields...)
}

// ParseEntityTypes decodes a JSON list of definitions and builds every type.
func ParseEntityTypes(data []byte) ([]*EntityType, error) {
	var definitions []EntityTypeDefinition
	if err := json.Unmarshal(data, &definitions); err != nil {
		return nil, fmt.Errorf("decode entity types: %w", err)
	}

	types := make([]*EntityType, 0, len(definitions))
	for _, d := range definitions {
		t, err := d.Build()
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

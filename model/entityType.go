package model

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldType is the semantic type of an entity field.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeText      FieldType = "text"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeJSON      FieldType = "json"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeUUID      FieldType = "uuid"
)

// Defaults shared by every entity type.
const (
	IDField          = "id"
	DefaultNamespace = "public"
	DefaultKeyField  = "name"
	EmbeddingSuffix  = "_embedding"
)

// Capability is a flag describing what an entity type supports.
type Capability uint8

const (
	// CapabilityKeyed means one field is the key; id is derived from it.
	CapabilityKeyed Capability = 1 << iota
	// CapabilityEmbeddings means at least one field is vectorized.
	CapabilityEmbeddings
	// CapabilityIdentity means the type is mirrored as a named graph node.
	CapabilityIdentity
)

func (c Capability) String() string {
	var names []string
	if c&CapabilityKeyed != 0 {
		names = append(names, "keyed")
	}
	if c&CapabilityEmbeddings != 0 {
		names = append(names, "embeddings")
	}
	if c&CapabilityIdentity != 0 {
		names = append(names, "identity")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Field is one declared field of an entity type.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required,omitempty"`
	IsKey       bool      `json:"is_key,omitempty"`
	Description string    `json:"description,omitempty"`
	// EmbeddingProvider marks the field for vectorization into <name>_embedding.
	EmbeddingProvider string `json:"embedding_provider,omitempty"`
}

// EmbeddingColumn returns the companion vector column name of the field.
func (f Field) EmbeddingColumn() string {
	return f.Name + EmbeddingSuffix
}

// EntityType is the static, validated descriptor of an entity.
// Build it with NewEntityType.
type EntityType struct {
	Namespace    string
	Name         string
	Description  string
	Fields       []Field
	Capabilities Capability

	key        *Field
	embeddings []Field
	byName     map[string]int
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// NewEntityType validates the fields and computes the capability set.
// A field named id is added as the identity column if it is not declared.
func NewEntityType(namespace, name, description string, fields ...Field) (*EntityType, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	t := &EntityType{
		Namespace:   namespace,
		Name:        name,
		Description: description,
		byName:      map[string]int{},
	}

	if !identifierPattern.MatchString(namespace) || strings.Contains(namespace, "_") {
		return nil, &SchemaError{Type: t.FullName(), Reason: fmt.Sprintf("invalid namespace %q (lowercase letters and digits only)", namespace)}
	}
	if !identifierPattern.MatchString(name) {
		return nil, &SchemaError{Type: t.FullName(), Reason: fmt.Sprintf("invalid entity name %q", name)}
	}
	if len(fields) == 0 {
		return nil, &SchemaError{Type: t.FullName(), Reason: "entity type has no fields"}
	}

	declaredID := false
	for _, f := range fields {
		if f.Name == IDField {
			declaredID = true
			if f.Type != FieldTypeUUID {
				return nil, &SchemaError{Type: t.FullName(), Reason: "field id must be of type uuid"}
			}
			if f.IsKey || f.EmbeddingProvider != "" {
				return nil, &SchemaError{Type: t.FullName(), Reason: "field id cannot be a key or embedding field"}
			}
		}
	}
	// id always leads so field order matches column order
	if !declaredID {
		t.Fields = append(t.Fields, Field{Name: IDField, Type: FieldTypeUUID, Description: "A unique hash/uuid for the entity"})
	}
	for _, f := range fields {
		if f.Name == IDField {
			t.Fields = append([]Field{f}, t.Fields...)
		}
	}
	for _, f := range fields {
		if f.Name != IDField {
			t.Fields = append(t.Fields, f)
		}
	}

	for i, f := range t.Fields {
		if !identifierPattern.MatchString(f.Name) {
			return nil, &SchemaError{Type: t.FullName(), Reason: fmt.Sprintf("invalid field name %q", f.Name)}
		}
		if _, ok := t.byName[f.Name]; ok {
			return nil, &SchemaError{Type: t.FullName(), Reason: fmt.Sprintf("duplicate field %q", f.Name)}
		}
		if !f.Type.valid() {
			return nil, &SchemaError{Type: t.FullName(), Reason: fmt.Sprintf("field %q has unknown type %q", f.Name, f.Type)}
		}
		t.byName[f.Name] = i
	}

	for i := range t.Fields {
		f := &t.Fields[i]
		if f.IsKey {
			if t.key != nil {
				return nil, &SchemaError{Type: t.FullName(), Reason: fmt.Sprintf("more than one key field (%s, %s)", t.key.Name, f.Name)}
			}
			t.key = f
		}
		if f.EmbeddingProvider != "" {
			if f.Type != FieldTypeString && f.Type != FieldTypeText {
				return nil, &SchemaError{Type: t.FullName(), Reason: fmt.Sprintf("embedding field %q must be a string or text field", f.Name)}
			}
			if _, clash := t.byName[f.EmbeddingColumn()]; clash {
				return nil, &SchemaError{Type: t.FullName(), Reason: fmt.Sprintf("field %q clashes with embedding column", f.EmbeddingColumn())}
			}
			t.embeddings = append(t.embeddings, *f)
		}
	}

	if t.key != nil {
		t.Capabilities |= CapabilityKeyed
		if t.key.Type == FieldTypeString || t.key.Type == FieldTypeText {
			t.Capabilities |= CapabilityIdentity
		}
	}
	if len(t.embeddings) > 0 {
		t.Capabilities |= CapabilityEmbeddings
	}

	return t, nil
}

// MustEntityType is NewEntityType for package level declarations.
func MustEntityType(namespace, name, description string, fields ...Field) *EntityType {
	t, err := NewEntityType(namespace, name, description, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// FullName returns <namespace>.<name>, the table name.
func (t *EntityType) FullName() string {
	return t.Namespace + "." + t.Name
}

// Label returns <namespace>_<name>, the graph node label.
func (t *EntityType) Label() string {
	return t.Namespace + "_" + t.Name
}

// Has reports whether the type carries every given capability.
func (t *EntityType) Has(c Capability) bool {
	return t.Capabilities&c == c
}

// Require returns a CapabilityError if the capability is missing.
func (t *EntityType) Require(c Capability) error {
	if !t.Has(c) {
		return &CapabilityError{Type: t.FullName(), Capability: c}
	}
	return nil
}

// KeyField returns the key field, or nil if the id is system generated.
func (t *EntityType) KeyField() *Field {
	return t.key
}

// KeyColumn returns the column used for key lookups.
func (t *EntityType) KeyColumn() string {
	if t.key != nil {
		return t.key.Name
	}
	return IDField
}

// EmbeddingFields returns the embedding-marked fields in declaration order.
func (t *EntityType) EmbeddingFields() []Field {
	return t.embeddings
}

// Field returns the declared field with the given name.
func (t *EntityType) Field(name string) (Field, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Field{}, false
	}
	return t.Fields[i], true
}

// FieldNames returns the declared column names in order.
func (t *EntityType) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// WithField returns a copy of the type with an extra optional field.
// It is how additive schema changes are expressed.
func (t *EntityType) WithField(f Field) (*EntityType, error) {
	fields := make([]Field, 0, len(t.Fields))
	for _, existing := range t.Fields {
		if existing.Name == IDField {
			continue
		}
		fields = append(fields, existing)
	}
	fields = append(fields, f)
	return NewEntityType(t.Namespace, t.Name, t.Description, fields...)
}

func (ft FieldType) valid() bool {
	switch ft {
	case FieldTypeString, FieldTypeText, FieldTypeInteger, FieldTypeFloat,
		FieldTypeBoolean, FieldTypeJSON, FieldTypeTimestamp, FieldTypeUUID:
		return true
	}
	return false
}

package schema

import (
	"fmt"

	"github.com/siherrmann/entitystore/model"
)

// DimensionFunc resolves the vector dimension of an embedding provider.
type DimensionFunc func(provider string) (int, error)

// Known embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderHugot  = "hugot"
	ProviderOllama = "ollama"
)

// Dimensions of the default model of each provider.
var DefaultDimensions = map[string]int{
	ProviderOpenAI: 1536,
	ProviderHugot:  384,
	ProviderOllama: 768,
}

var storageTypes = map[model.FieldType]string{
	model.FieldTypeString:    "VARCHAR",
	model.FieldTypeText:      "TEXT",
	model.FieldTypeInteger:   "INTEGER",
	model.FieldTypeFloat:     "FLOAT",
	model.FieldTypeBoolean:   "BOOLEAN",
	model.FieldTypeJSON:      "JSON",
	model.FieldTypeTimestamp: "TIMESTAMPTZ",
	model.FieldTypeUUID:      "UUID",
}

// DefaultDimensionFunc looks the provider up in DefaultDimensions.
func DefaultDimensionFunc(provider string) (int, error) {
	if d, ok := DefaultDimensions[provider]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown embedding provider %q", provider)
}

// StorageType maps a semantic field type to its column type.
func StorageType(ft model.FieldType) string {
	if st, ok := storageTypes[ft]; ok {
		return st
	}
	return "TEXT"
}

// Derive produces the column and embedding column specifications of t.
// id comes first and is the primary key; a field is nullable unless it is
// required or the key.
func Derive(t *model.EntityType, dims DimensionFunc) (*model.TableSchema, error) {
	if t == nil {
		return nil, &model.SchemaError{Type: "<nil>", Reason: "entity type is nil"}
	}
	if len(t.Fields) <= 1 {
		return nil, &model.SchemaError{Type: t.FullName(), Reason: "entity type has no fields"}
	}
	if dims == nil {
		dims = DefaultDimensionFunc
	}

	ts := &model.TableSchema{Type: t}
	keys := 0

	// id always leads
	if f, ok := t.Field(model.IDField); ok {
		ts.Columns = append(ts.Columns, model.ColumnSpec{
			Name:        f.Name,
			StorageType: StorageType(f.Type),
			Nullable:    false,
			IsPrimary:   true,
		})
	}

	for _, f := range t.Fields {
		if f.Name == model.IDField {
			continue
		}
		if f.IsKey {
			keys++
		}
		ts.Columns = append(ts.Columns, model.ColumnSpec{
			Name:        f.Name,
			StorageType: StorageType(f.Type),
			Nullable:    !(f.Required || f.IsKey),
			IsUnique:    f.IsKey,
		})

		if f.EmbeddingProvider == "" {
			continue
		}
		dim, err := dims(f.EmbeddingProvider)
		if err != nil {
			return nil, &model.SchemaError{Type: t.FullName(), Reason: err.Error()}
		}
		if dim <= 0 {
			return nil, &model.SchemaError{Type: t.FullName(), Reason: fmt.Sprintf("provider %q has invalid dimension %d", f.EmbeddingProvider, dim)}
		}
		ts.EmbeddingColumns = append(ts.EmbeddingColumns, model.EmbeddingColumnSpec{
			BaseField:  f.Name,
			ColumnName: f.EmbeddingColumn(),
			Dimension:  dim,
			Provider:   f.EmbeddingProvider,
		})
	}

	if keys > 1 {
		return nil, &model.SchemaError{Type: t.FullName(), Reason: "more than one key field"}
	}

	return ts, nil
}

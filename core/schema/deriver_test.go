package schema

import (
	"fmt"
	"testing"

	"github.com/siherrmann/entitystore/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	person := model.MustEntityType("public", "person", "A person",
		model.Field{Name: "name", Type: model.FieldTypeString, IsKey: true},
		model.Field{Name: "bio", Type: model.FieldTypeText, EmbeddingProvider: ProviderOpenAI},
		model.Field{Name: "age", Type: model.FieldTypeInteger, Required: true},
		model.Field{Name: "score", Type: model.FieldTypeFloat},
		model.Field{Name: "active", Type: model.FieldTypeBoolean},
		model.Field{Name: "meta", Type: model.FieldTypeJSON},
		model.Field{Name: "born", Type: model.FieldTypeTimestamp},
	)

	t.Run("Valid call Derive", func(t *testing.T) {
		ts, err := Derive(person, nil)
		require.NoError(t, err, "Expected Derive to not return an error")

		expected := []model.ColumnSpec{
			{Name: "id", StorageType: "UUID", Nullable: false, IsPrimary: true},
			{Name: "name", StorageType: "VARCHAR", Nullable: false, IsUnique: true},
			{Name: "bio", StorageType: "TEXT", Nullable: true},
			{Name: "age", StorageType: "INTEGER", Nullable: false},
			{Name: "score", StorageType: "FLOAT", Nullable: true},
			{Name: "active", StorageType: "BOOLEAN", Nullable: true},
			{Name: "meta", StorageType: "JSON", Nullable: true},
			{Name: "born", StorageType: "TIMESTAMPTZ", Nullable: true},
		}
		assert.Equal(t, expected, ts.Columns, "Expected columns in declaration order after id")

		require.Len(t, ts.EmbeddingColumns, 1, "Expected one embedding column")
		assert.Equal(t, model.EmbeddingColumnSpec{
			BaseField:  "bio",
			ColumnName: "bio_embedding",
			Dimension:  1536,
			Provider:   ProviderOpenAI,
		}, ts.EmbeddingColumns[0])
	})

	t.Run("Dimension comes from the dimension function", func(t *testing.T) {
		ts, err := Derive(person, func(provider string) (int, error) { return 8, nil })
		require.NoError(t, err)
		assert.Equal(t, 8, ts.EmbeddingColumns[0].Dimension)
	})

	t.Run("Unknown provider is a schema error", func(t *testing.T) {
		custom := model.MustEntityType("public", "custom", "",
			model.Field{Name: "text", Type: model.FieldTypeText, EmbeddingProvider: "nope"},
		)
		_, err := Derive(custom, nil)
		assert.ErrorIs(t, err, model.ErrSchema, "Expected schema error for unknown provider")
	})

	t.Run("Dimension function errors are schema errors", func(t *testing.T) {
		_, err := Derive(person, func(string) (int, error) { return 0, fmt.Errorf("boom") })
		assert.ErrorIs(t, err, model.ErrSchema)
	})

	t.Run("Non positive dimension is a schema error", func(t *testing.T) {
		_, err := Derive(person, func(string) (int, error) { return 0, nil })
		assert.ErrorIs(t, err, model.ErrSchema)
	})

	t.Run("Nil type is a schema error", func(t *testing.T) {
		_, err := Derive(nil, nil)
		assert.ErrorIs(t, err, model.ErrSchema)
	})

	t.Run("Unkeyed type has no unique column", func(t *testing.T) {
		note := model.MustEntityType("public", "note", "", model.Field{Name: "body", Type: model.FieldTypeText})
		ts, err := Derive(note, nil)
		require.NoError(t, err)
		for _, c := range ts.Columns {
			assert.False(t, c.IsUnique, "Expected no unique column on %s", c.Name)
		}
		assert.Empty(t, ts.EmbeddingColumns)
	})
}

func TestStorageType(t *testing.T) {
	assert.Equal(t, "VARCHAR", StorageType(model.FieldTypeString))
	assert.Equal(t, "UUID", StorageType(model.FieldTypeUUID))
	assert.Equal(t, "TEXT", StorageType(model.FieldType("unknown")), "Expected fallback to TEXT")
}

func TestDefaultDimensionFunc(t *testing.T) {
	d, err := DefaultDimensionFunc(ProviderHugot)
	assert.NoError(t, err)
	assert.Equal(t, 384, d)

	_, err = DefaultDimensionFunc("unknown")
	assert.Error(t, err)
}

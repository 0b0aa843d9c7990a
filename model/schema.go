package model

// ColumnSpec is one relational column derived from a field.
type ColumnSpec struct {
	Name        string
	StorageType string
	Nullable    bool
	IsPrimary   bool
	IsUnique    bool
}

// EmbeddingColumnSpec is the vector column companion of an embedding field.
type EmbeddingColumnSpec struct {
	BaseField  string
	ColumnName string
	Dimension  int
	Provider   string
}

// TableSchema is the derived storage schema of an entity type.
type TableSchema struct {
	Type             *EntityType
	Columns          []ColumnSpec
	EmbeddingColumns []EmbeddingColumnSpec
}

// ColumnNames returns the declared (non-embedding) column names.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// AllColumnNames returns declared and embedding column names.
func (s *TableSchema) AllColumnNames() []string {
	names := s.ColumnNames()
	for _, e := range s.EmbeddingColumns {
		names = append(names, e.ColumnName)
	}
	return names
}

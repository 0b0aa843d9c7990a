package query

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/siherrmann/entitystore/model"
)

// reserved holds the keywords a column name has to be quoted for.
var reserved = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true, "array": true,
	"as": true, "asc": true, "both": true, "case": true, "cast": true, "check": true,
	"collate": true, "column": true, "constraint": true, "create": true, "default": true,
	"desc": true, "distinct": true, "do": true, "else": true, "end": true, "except": true,
	"false": true, "fetch": true, "for": true, "foreign": true, "from": true, "grant": true,
	"group": true, "having": true, "in": true, "into": true, "leading": true, "limit": true,
	"not": true, "null": true, "offset": true, "on": true, "only": true, "or": true,
	"order": true, "primary": true, "references": true, "select": true, "table": true,
	"then": true, "to": true, "true": true, "union": true, "unique": true, "user": true,
	"using": true, "when": true, "where": true, "window": true, "with": true,
}

// Ident returns the column name, quoted if it is a reserved word.
func Ident(name string) string {
	if reserved[name] {
		return pq.QuoteIdentifier(name)
	}
	return name
}

func idents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = Ident(n)
	}
	return strings.Join(quoted, ", ")
}

// TableName returns <namespace>.<name>.
func TableName(ts *model.TableSchema) string {
	return ts.Type.Namespace + "." + Ident(ts.Type.Name)
}

// CreateNamespace creates the schema the entity table lives in.
func CreateNamespace(ts *model.TableSchema) string {
	return fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", ts.Type.Namespace)
}

func columnDefinition(c model.ColumnSpec) string {
	def := Ident(c.Name) + " " + c.StorageType
	switch {
	case c.IsPrimary:
		def += " PRIMARY KEY"
	case !c.Nullable && c.IsUnique:
		def += " NOT NULL UNIQUE"
	case !c.Nullable:
		def += " NOT NULL"
	case c.IsUnique:
		def += " UNIQUE"
	}
	return def
}

func embeddingDefinition(e model.EmbeddingColumnSpec) string {
	return fmt.Sprintf("%s vector(%d) NULL", Ident(e.ColumnName), e.Dimension)
}

// CreateTable builds the CREATE TABLE statement. Each embedding column
// follows the field it is derived from.
func CreateTable(ts *model.TableSchema) string {
	byField := make(map[string]model.EmbeddingColumnSpec, len(ts.EmbeddingColumns))
	for _, e := range ts.EmbeddingColumns {
		byField[e.BaseField] = e
	}

	definitions := make([]string, 0, len(ts.Columns)+len(ts.EmbeddingColumns))
	for _, c := range ts.Columns {
		definitions = append(definitions, columnDefinition(c))
		if e, ok := byField[c.Name]; ok {
			definitions = append(definitions, embeddingDefinition(e))
		}
	}

	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", TableName(ts), strings.Join(definitions, ",\n    "))
}

// ExistingColumns lists the columns of a table. Params: namespace, table name.
func ExistingColumns() string {
	return `SELECT column_name FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2`
}

// AddColumns returns one additive ALTER per derived column missing from existing.
// Added columns are always nullable so existing rows stay valid.
func AddColumns(ts *model.TableSchema, existing []string) []string {
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}

	var statements []string
	add := func(name, definition string) {
		if have[name] {
			return
		}
		statements = append(statements, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", TableName(ts), definition))
	}

	for _, c := range ts.Columns {
		add(c.Name, Ident(c.Name)+" "+c.StorageType+" NULL")
	}
	for _, e := range ts.EmbeddingColumns {
		add(e.ColumnName, embeddingDefinition(e))
	}
	return statements
}

// DropTable drops the entity table.
func DropTable(ts *model.TableSchema) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", TableName(ts))
}

func placeholders(rows, cols int) string {
	var sb strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 0; c < cols; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", n)
			n++
		}
		sb.WriteString(")")
	}
	return sb.String()
}

// Upsert inserts batchSize rows of all declared columns and overwrites every
// non-key column on an id conflict.
func Upsert(ts *model.TableSchema, batchSize int) (string, error) {
	if batchSize <= 0 {
		return "", fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	columns := ts.ColumnNames()
	var updates []string
	for _, c := range ts.Columns {
		if c.IsPrimary {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", Ident(c.Name), Ident(c.Name)))
	}
	// a changed source text invalidates its vector until it is embedded again
	table := Ident(ts.Type.Name)
	for _, e := range ts.EmbeddingColumns {
		base, col := Ident(e.BaseField), Ident(e.ColumnName)
		updates = append(updates, fmt.Sprintf(
			"%s = CASE WHEN %s.%s IS DISTINCT FROM EXCLUDED.%s THEN NULL ELSE %s.%s END",
			col, table, base, base, table, col,
		))
	}

	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) %s RETURNING %s",
		TableName(ts),
		idents(columns),
		placeholders(batchSize, len(columns)),
		model.IDField,
		conflict,
		idents(columns),
	), nil
}

// EmbeddingPartialUpdate updates only the embedding columns of batchSize ids.
// Params per row: id, then one vector per embedding column (NULL keeps the
// stored value).
func EmbeddingPartialUpdate(ts *model.TableSchema, batchSize int) (string, error) {
	if len(ts.EmbeddingColumns) == 0 {
		return "", ts.Type.Require(model.CapabilityEmbeddings)
	}
	if batchSize <= 0 {
		return "", fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	valueColumns := []string{model.IDField}
	var sets []string
	for _, e := range ts.EmbeddingColumns {
		col := Ident(e.ColumnName)
		valueColumns = append(valueColumns, col)
		sets = append(sets, fmt.Sprintf("%s = COALESCE(v.%s::vector, t.%s)", col, col, col))
	}

	return fmt.Sprintf(
		"UPDATE %s AS t SET %s FROM (VALUES %s) AS v(%s) WHERE t.%s = v.%s::uuid",
		TableName(ts),
		strings.Join(sets, ", "),
		placeholders(batchSize, len(valueColumns)),
		strings.Join(valueColumns, ", "),
		model.IDField,
		model.IDField,
	), nil
}

// SelectByKey selects one row by the key column. Param: key value.
func SelectByKey(ts *model.TableSchema) string {
	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 LIMIT 1",
		idents(ts.ColumnNames()),
		TableName(ts),
		Ident(ts.Type.KeyColumn()),
	)
}

// VectorSearch ranks rows by distance on the first embedding column.
// Params: query vector, maximum distance.
func VectorSearch(ts *model.TableSchema, op model.VectorOperator, limit int) (string, error) {
	if len(ts.EmbeddingColumns) == 0 {
		return "", ts.Type.Require(model.CapabilityEmbeddings)
	}
	if !op.Valid() {
		return "", fmt.Errorf("unknown vector operator %q", op)
	}
	if limit <= 0 {
		return "", fmt.Errorf("limit must be positive, got %d", limit)
	}

	distance := fmt.Sprintf("(%s %s $1::vector)", Ident(ts.EmbeddingColumns[0].ColumnName), op)

	return fmt.Sprintf(
		"SELECT %s, %s AS distance FROM %s WHERE %s < $2 ORDER BY distance ASC LIMIT %d",
		idents(ts.ColumnNames()),
		distance,
		TableName(ts),
		distance,
		limit,
	), nil
}

// SelectMissingEmbeddings selects rows with at least one null embedding column
// whose source field has non-blank text.
func SelectMissingEmbeddings(ts *model.TableSchema, limit int) (string, error) {
	if len(ts.EmbeddingColumns) == 0 {
		return "", ts.Type.Require(model.CapabilityEmbeddings)
	}
	if limit <= 0 {
		return "", fmt.Errorf("limit must be positive, got %d", limit)
	}

	var predicates []string
	for _, e := range ts.EmbeddingColumns {
		predicates = append(predicates, fmt.Sprintf("(%s IS NULL AND btrim(%s, E' \\t\\r\\n') <> '')", Ident(e.ColumnName), Ident(e.BaseField)))
	}

	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s LIMIT %d",
		idents(ts.ColumnNames()),
		TableName(ts),
		strings.Join(predicates, " OR "),
		limit,
	), nil
}

// Describe renders the schema as context for natural language translation.
func Describe(ts *model.TableSchema) string {
	t := ts.Type
	var sb strings.Builder

	fmt.Fprintf(&sb, "## %s\n\n", t.FullName())
	if t.Description != "" {
		fmt.Fprintf(&sb, "*Description*: %s\n\n", t.Description)
	}
	fmt.Fprintf(&sb, "*Table*: %s\n\n*Columns*:\n", TableName(ts))

	for _, c := range ts.Columns {
		f, _ := t.Field(c.Name)
		var notes []string
		if c.IsPrimary {
			notes = append(notes, "primary key")
		}
		if f.IsKey {
			notes = append(notes, "unique key")
		}
		if !c.Nullable && !c.IsPrimary {
			notes = append(notes, "not null")
		}
		line := fmt.Sprintf("- %s %s", c.Name, c.StorageType)
		if len(notes) > 0 {
			line += " (" + strings.Join(notes, ", ") + ")"
		}
		if f.Description != "" {
			line += ": " + f.Description
		}
		sb.WriteString(line + "\n")
	}
	for _, e := range ts.EmbeddingColumns {
		fmt.Fprintf(&sb, "- %s vector(%d): embedding of %s, may be null\n", e.ColumnName, e.Dimension, e.BaseField)
	}

	if t.Has(model.CapabilityIdentity) {
		fmt.Fprintf(&sb, "\n*Graph*: nodes labelled %s with property %s\n", t.Label(), model.GraphKeyProperty)
	}

	return sb.String()
}

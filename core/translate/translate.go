package translate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Dialect is the query language a question is translated into.
type Dialect string

const (
	DialectSQL    Dialect = "sql"
	DialectCypher Dialect = "cypher"
)

// Translator turns a natural language question into one query of the dialect.
type Translator interface {
	Translate(ctx context.Context, question string, schemaContext string, dialect Dialect) (string, error)
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(ctx context.Context, question string, schemaContext string, dialect Dialect) (string, error)

func (f TranslatorFunc) Translate(ctx context.Context, question string, schemaContext string, dialect Dialect) (string, error) {
	return f(ctx, question, schemaContext, dialect)
}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// CleanQuery extracts the query from a model answer. Code fences and a
// trailing semicolon are removed.
func CleanQuery(answer string) (string, error) {
	q := strings.TrimSpace(answer)
	if m := fencePattern.FindStringSubmatch(q); m != nil {
		q = strings.TrimSpace(m[1])
	}
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	if q == "" {
		return "", fmt.Errorf("translator returned an empty query")
	}
	return q, nil
}

// SystemPrompt instructs the model to answer with a single query.
func SystemPrompt(dialect Dialect, schemaContext string) string {
	var sb strings.Builder
	switch dialect {
	case DialectCypher:
		sb.WriteString("You translate questions into a single openCypher query for Apache AGE.\n")
		sb.WriteString("Return exactly one query whose RETURN clause yields a single value.\n")
		sb.WriteString("Node labels have the form <namespace>_<name> and every node carries its key in the property name.\n")
		sb.WriteString("Never use $$ in the query.\n")
	default:
		sb.WriteString("You translate questions into a single PostgreSQL SELECT statement.\n")
		sb.WriteString("Use fully qualified table names and only the columns listed below.\n")
		sb.WriteString("Do not select embedding columns.\n")
	}
	sb.WriteString("Answer with the query only, without explanation.\n\n")
	sb.WriteString("# Schema\n\n")
	sb.WriteString(schemaContext)
	return sb.String()
}

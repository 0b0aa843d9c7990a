package query

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/entitystore/model"
)

var graphNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// CypherPreamble returns the statements that have to run before a cypher
// query in the same transaction.
func CypherPreamble() []string {
	return []string{
		`LOAD 'age'`,
		`SET LOCAL search_path = ag_catalog, "$user", public`,
	}
}

// WrapCypher embeds a cypher query into the AGE cypher() table function.
func WrapCypher(graph string, cypher string) (string, error) {
	if !graphNamePattern.MatchString(graph) {
		return "", fmt.Errorf("invalid graph name %q", graph)
	}
	cypher = strings.TrimSpace(cypher)
	if cypher == "" {
		return "", fmt.Errorf("empty cypher query")
	}
	if strings.Contains(cypher, "$$") {
		return "", fmt.Errorf("cypher query must not contain $$")
	}
	return fmt.Sprintf("SELECT * FROM cypher('%s', $$ %s $$) AS (n agtype)", graph, cypher), nil
}

// CypherString quotes a value as a cypher string literal.
func CypherString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// cypherLiteral renders scalar values; other values are skipped.
func cypherLiteral(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return CypherString(x), true
	case uuid.UUID:
		return CypherString(x.String()), true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case time.Time:
		return CypherString(x.UTC().Format(time.RFC3339Nano)), true
	}
	return "", false
}

// UpsertNode matches or creates the node of inst by label and name and sets
// its remaining scalar properties. The name property always holds the key,
// so a non key field called name is not mirrored.
func UpsertNode(t *model.EntityType, inst model.Instance) (string, error) {
	if err := t.Require(model.CapabilityIdentity); err != nil {
		return "", err
	}

	key := t.KeyField()
	name, ok := inst[key.Name].(string)
	if !ok || name == "" {
		return "", fmt.Errorf("entity %s has no %s to mirror", t.FullName(), key.Name)
	}
	if strings.Contains(name, "$$") {
		return "", fmt.Errorf("entity name must not contain $$")
	}

	var sets []string
	for _, f := range t.Fields {
		if f.Name == key.Name || f.Name == model.GraphKeyProperty || f.Type == model.FieldTypeJSON {
			continue
		}
		literal, ok := cypherLiteral(inst[f.Name])
		if !ok {
			continue
		}
		if strings.Contains(literal, "$$") {
			continue
		}
		sets = append(sets, fmt.Sprintf("n.%s = %s", f.Name, literal))
	}
	sort.Strings(sets)

	q := fmt.Sprintf("MERGE (n:%s {%s: %s})", t.Label(), model.GraphKeyProperty, CypherString(name))
	if len(sets) > 0 {
		q += " SET " + strings.Join(sets, ", ")
	}
	return q + " RETURN n", nil
}

// UpsertNodes builds one node upsert per instance.
func UpsertNodes(t *model.EntityType, instances []model.Instance) ([]string, error) {
	queries := make([]string, 0, len(instances))
	for _, inst := range instances {
		q, err := UpsertNode(t, inst)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, nil
}

// MatchByName matches nodes of any label by their name property.
func MatchByName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("name is empty")
	}
	if strings.Contains(name, "$$") {
		return "", fmt.Errorf("name must not contain $$")
	}
	return fmt.Sprintf("MATCH (v {%s: %s}) RETURN v", model.GraphKeyProperty, CypherString(name)), nil
}

// LabelExists counts the vertex label of t in the graph.
func LabelExists(graph string, t *model.EntityType) (string, error) {
	if !graphNamePattern.MatchString(graph) {
		return "", fmt.Errorf("invalid graph name %q", graph)
	}
	return fmt.Sprintf(
		"SELECT count(*) AS count FROM ag_catalog.ag_label l JOIN ag_catalog.ag_graph g ON l.graph = g.graphid WHERE g.name = '%s' AND l.name = '%s'",
		graph, t.Label(),
	), nil
}

// CreateVertexLabel creates the vertex label of t in the graph.
func CreateVertexLabel(graph string, t *model.EntityType) (string, error) {
	if !graphNamePattern.MatchString(graph) {
		return "", fmt.Errorf("invalid graph name %q", graph)
	}
	return fmt.Sprintf("SELECT ag_catalog.create_vlabel('%s', '%s')", graph, t.Label()), nil
}

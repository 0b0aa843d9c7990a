package retrieval

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/siherrmann/entitystore/core/pipeline"
	"github.com/siherrmann/entitystore/core/schema"
	"github.com/siherrmann/entitystore/database"
	"github.com/siherrmann/entitystore/model"
	"github.com/stretchr/testify/require"
)

// fakeTable serves one entity type from memory.
type fakeTable struct {
	schema  *model.TableSchema
	rows    map[string]model.Instance
	similar []*model.SearchResult

	mu      sync.Mutex
	calls   int
	vectors [][]float32
}

func newFakeTable(t *testing.T, entityType *model.EntityType, rows ...model.Instance) *fakeTable {
	ts, err := schema.Derive(entityType, func(string) (int, error) { return 3, nil })
	require.NoError(t, err, "Expected schema derivation to succeed")

	table := &fakeTable{schema: ts, rows: map[string]model.Instance{}}
	for _, r := range rows {
		_, err := entityType.ResolveID(r)
		require.NoError(t, err)
		table.rows[fmt.Sprint(r[entityType.KeyColumn()])] = r
	}
	return table
}

func (f *fakeTable) record() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeTable) Schema() *model.TableSchema { return f.schema }

func (f *fakeTable) CreateTable(ctx context.Context) error { f.record(); return nil }

func (f *fakeTable) Upsert(ctx context.Context, instances []model.Instance) ([]model.Row, error) {
	f.record()
	return nil, nil
}

func (f *fakeTable) UpdateEmbeddings(ctx context.Context, updates []database.EmbeddingUpdate) error {
	f.record()
	return nil
}

func (f *fakeTable) SelectByKey(ctx context.Context, key any) (model.Instance, error) {
	f.record()
	inst, ok := f.rows[fmt.Sprint(key)]
	if !ok {
		return nil, model.ErrNotFound
	}
	return inst, nil
}

func (f *fakeTable) SelectBySimilarity(ctx context.Context, vector []float32, config model.SearchConfig) ([]*model.SearchResult, error) {
	f.record()
	f.mu.Lock()
	f.vectors = append(f.vectors, vector)
	f.mu.Unlock()
	return f.similar, nil
}

func (f *fakeTable) SelectMissingEmbeddings(ctx context.Context, limit int) ([]model.Instance, error) {
	f.record()
	return nil, nil
}

func (f *fakeTable) DropTable(ctx context.Context) error { f.record(); return nil }

func (f *fakeTable) ChangeIndexType(ctx context.Context, indexType string, op model.VectorOperator, params map[string]int) error {
	f.record()
	return nil
}

// fakeGraph returns fixed nodes and records queries.
type fakeGraph struct {
	nodes   []*model.GraphNode
	queries []string
}

func (g *fakeGraph) EnsureLabel(ctx context.Context, t *model.EntityType) error { return nil }

func (g *fakeGraph) UpsertNodes(ctx context.Context, t *model.EntityType, instances []model.Instance) error {
	return nil
}

func (g *fakeGraph) MatchByName(ctx context.Context, name string) ([]*model.GraphNode, error) {
	var out []*model.GraphNode
	for _, n := range g.nodes {
		if n.Name() == name {
			out = append(out, n)
		}
	}
	return out, nil
}

func (g *fakeGraph) Query(ctx context.Context, cypher string) ([]model.Row, error) {
	g.queries = append(g.queries, cypher)
	return []model.Row{{"n": "1"}}, nil
}

// fakeGateway records executed statements.
type fakeGateway struct {
	queries []string
}

func (g *fakeGateway) Execute(ctx context.Context, query string, args ...any) ([]model.Row, error) {
	g.queries = append(g.queries, query)
	return []model.Row{{"count": int64(1)}}, nil
}

func (g *fakeGateway) ExecuteBatch(ctx context.Context, build func(n int) (string, error), rows [][]any, pageSize int) ([]model.Row, error) {
	return nil, nil
}

func (g *fakeGateway) ExecuteSession(ctx context.Context, setup []string, statements []string) ([]model.Row, error) {
	return nil, nil
}

type embedderMap map[string]pipeline.Embedder

func (m embedderMap) Embedder(provider string) (pipeline.Embedder, bool) {
	e, ok := m[provider]
	return e, ok
}

func node(label, name string) *model.GraphNode {
	return &model.GraphNode{Label: label, Properties: map[string]any{model.GraphKeyProperty: name}}
}

func projectType(t *testing.T) *model.EntityType {
	entityType, err := model.NewEntityType("work", "project", "Projects",
		model.Field{Name: "name", Type: model.FieldTypeString, IsKey: true},
		model.Field{Name: "summary", Type: model.FieldTypeText, EmbeddingProvider: "openai"},
	)
	require.NoError(t, err)
	return entityType
}

func topicType(t *testing.T) *model.EntityType {
	entityType, err := model.NewEntityType("work", "topic", "Topics",
		model.Field{Name: "name", Type: model.FieldTypeString, IsKey: true},
		model.Field{Name: "weight", Type: model.FieldTypeFloat},
	)
	require.NoError(t, err)
	return entityType
}

package entitystore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/entitystore/core/pipeline"
	"github.com/siherrmann/entitystore/core/translate"
	"github.com/siherrmann/entitystore/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway records every call instead of talking to a database.
type fakeGateway struct {
	mu       sync.Mutex
	executed []string
	batches  [][][]any
	sessions int
	execute  func(query string, args []any) ([]model.Row, error)
}

func (g *fakeGateway) Execute(ctx context.Context, query string, args ...any) ([]model.Row, error) {
	g.mu.Lock()
	g.executed = append(g.executed, query)
	g.mu.Unlock()
	if g.execute != nil {
		return g.execute(query, args)
	}
	return nil, nil
}

func (g *fakeGateway) ExecuteBatch(ctx context.Context, build func(n int) (string, error), rows [][]any, pageSize int) ([]model.Row, error) {
	if _, err := build(len(rows)); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.batches = append(g.batches, rows)
	g.mu.Unlock()
	return []model.Row{}, nil
}

func (g *fakeGateway) ExecuteSession(ctx context.Context, setup []string, statements []string) ([]model.Row, error) {
	g.mu.Lock()
	g.sessions++
	g.mu.Unlock()
	return nil, nil
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.executed) + len(g.batches) + g.sessions
}

// fakeGraph serves fixed nodes and can fail node upserts.
type fakeGraph struct {
	nodes     []*model.GraphNode
	upserted  []model.Instance
	queries   []string
	upsertErr error
}

func (g *fakeGraph) EnsureLabel(ctx context.Context, t *model.EntityType) error { return nil }

func (g *fakeGraph) UpsertNodes(ctx context.Context, t *model.EntityType, instances []model.Instance) error {
	g.upserted = append(g.upserted, instances...)
	return g.upsertErr
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
	return []model.Row{}, nil
}

func testOptions(opts ...Option) *options {
	o := defaultOptions()
	WithEmbedder("openai", pipeline.NewFuncEmbedder(3, func(text string) ([]float32, error) {
		return []float32{float32(len(text)), 0, 1}, nil
	}))(o)
	WithDispatcherConfig(pipeline.DispatcherConfig{QueueSize: 4, MaxRetries: 1})(o)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newFakeStore(t *testing.T, gateway *fakeGateway, graph *fakeGraph, opts ...Option) *Store {
	var s *Store
	if graph == nil {
		s = newStore(gateway, nil, testOptions(opts...))
	} else {
		s = newStore(gateway, graph, testOptions(opts...))
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
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

func TestCapabilityGuard(t *testing.T) {
	gateway := &fakeGateway{}
	s := newFakeStore(t, gateway, nil)
	topic := topicType(t)
	_, err := s.Register(topic)
	require.NoError(t, err)

	t.Run("VectorSearch without embeddings", func(t *testing.T) {
		_, err := s.VectorSearch(context.Background(), topic, "anything", "", 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrCapability, "Expected a capability error")
		var capErr *model.CapabilityError
		require.True(t, errors.As(err, &capErr))
		assert.Equal(t, "work.topic", capErr.Type)
		assert.Equal(t, 0, gateway.calls(), "Expected no query to be issued")
	})

	t.Run("Backfill and index change without embeddings", func(t *testing.T) {
		_, err := s.Backfill(context.Background(), topic, 10)
		assert.ErrorIs(t, err, model.ErrCapability)
		err = s.ChangeIndexType(context.Background(), topic, "hnsw", "", nil)
		assert.ErrorIs(t, err, model.ErrCapability)
		assert.Equal(t, 0, gateway.calls(), "Expected no query to be issued")
	})

	t.Run("Schema error before I/O", func(t *testing.T) {
		_, err := model.NewEntityType("work", "broken", "",
			model.Field{Name: "a", Type: model.FieldTypeString, IsKey: true},
			model.Field{Name: "b", Type: model.FieldTypeString, IsKey: true},
		)
		assert.ErrorIs(t, err, model.ErrSchema)
		assert.Equal(t, 0, gateway.calls())
	})
}

func TestUpsert(t *testing.T) {
	project := projectType(t)

	t.Run("Last occurrence wins within a batch", func(t *testing.T) {
		gateway := &fakeGateway{}
		graph := &fakeGraph{}
		s := newFakeStore(t, gateway, graph)
		_, err := s.Register(project)
		require.NoError(t, err)

		first := model.Instance{"name": "roadmap", "summary": "old"}
		second := model.Instance{"name": "roadmap", "summary": "new"}
		_, err = s.Upsert(context.Background(), project, first, second)
		require.NoError(t, err)

		require.Len(t, gateway.batches, 1, "Expected one batched upsert")
		require.Len(t, gateway.batches[0], 1, "Expected duplicate key to collapse")
		assert.Contains(t, gateway.batches[0][0], "new")

		id, ok := second.ID()
		require.True(t, ok, "Expected id to be attached")
		assert.Equal(t, project.IdentityFor("roadmap"), id)
		assert.Len(t, graph.upserted, 1, "Expected graph mirror for identity type")

		s.Flush()
		assert.Equal(t, int64(1), s.Stats().Processed, "Expected embedding batch to be processed")
		assert.Len(t, gateway.batches, 2, "Expected embedding update after upsert")
	})

	t.Run("Graph failure keeps row", func(t *testing.T) {
		gateway := &fakeGateway{}
		graph := &fakeGraph{upsertErr: errors.New("graph down")}
		s := newFakeStore(t, gateway, graph)
		_, err := s.Register(project)
		require.NoError(t, err)

		_, err = s.Upsert(context.Background(), project, model.Instance{"name": "roadmap"})
		assert.NoError(t, err, "Expected graph failure to be logged only")
		assert.Len(t, gateway.batches, 1)
	})

	t.Run("Missing key", func(t *testing.T) {
		gateway := &fakeGateway{}
		s := newFakeStore(t, gateway, nil)
		_, err := s.Register(project)
		require.NoError(t, err)

		_, err = s.Upsert(context.Background(), project, model.Instance{"summary": "no name"})
		assert.Error(t, err)
		assert.Equal(t, 0, gateway.calls())
	})

	t.Run("Unregistered type", func(t *testing.T) {
		s := newFakeStore(t, &fakeGateway{}, nil)
		_, err := s.Upsert(context.Background(), project, model.Instance{"name": "roadmap"})
		assert.Error(t, err)
	})
}

func TestResolveByName(t *testing.T) {
	project := projectType(t)
	topic := topicType(t)

	gateway := &fakeGateway{execute: func(query string, args []any) ([]model.Row, error) {
		switch {
		case strings.Contains(query, "work.project"):
			return []model.Row{{"id": project.IdentityFor("roadmap").String(), "name": "roadmap", "summary": "Q3 goals"}}, nil
		case strings.Contains(query, "work.topic"):
			return []model.Row{{"id": topic.IdentityFor("roadmap").String(), "name": "roadmap", "weight": 0.7}}, nil
		}
		return nil, nil
	}}
	graph := &fakeGraph{nodes: []*model.GraphNode{
		{Label: "work_project", Properties: map[string]any{"name": "roadmap"}},
		{Label: "work_topic", Properties: map[string]any{"name": "roadmap"}},
	}}
	s := newFakeStore(t, gateway, graph)
	_, err := s.Register(project)
	require.NoError(t, err)
	_, err = s.Register(topic)
	require.NoError(t, err)

	t.Run("Same name in two types", func(t *testing.T) {
		resolved, err := s.ResolveByName(context.Background(), "roadmap")
		require.NoError(t, err)
		require.Len(t, resolved, 2, "Expected two typed results")

		assert.Equal(t, project, resolved[0].Type)
		assert.Equal(t, "Q3 goals", resolved[0].Entity["summary"])
		assert.Equal(t, project.IdentityFor("roadmap"), resolved[0].Entity["id"])

		assert.Equal(t, topic, resolved[1].Type)
		assert.Equal(t, 0.7, resolved[1].Entity["weight"])
		assert.IsType(t, uuid.UUID{}, resolved[1].Entity["id"])
	})

	t.Run("Unknown name", func(t *testing.T) {
		resolved, err := s.ResolveByName(context.Background(), "nothing")
		require.NoError(t, err)
		assert.Empty(t, resolved)
	})
}

func TestAsk(t *testing.T) {
	project := projectType(t)
	gateway := &fakeGateway{}
	graph := &fakeGraph{}

	const sqlText = "SELECT name FROM work.project WHERE summary ILIKE '%goal%'"
	const cypherText = "MATCH (v:work_project) RETURN v"
	translator := translate.TranslatorFunc(func(ctx context.Context, question, schemaContext string, dialect translate.Dialect) (string, error) {
		if dialect == translate.DialectCypher {
			return cypherText, nil
		}
		return sqlText, nil
	})

	s := newFakeStore(t, gateway, graph, WithTranslator(translator))
	_, err := s.Register(project)
	require.NoError(t, err)

	t.Run("Ask executes translated SQL unchanged", func(t *testing.T) {
		_, err := s.Ask(context.Background(), project, "Which projects mention goals?")
		require.NoError(t, err)
		assert.Equal(t, []string{sqlText}, gateway.executed)
	})

	t.Run("AskGraph executes translated cypher unchanged", func(t *testing.T) {
		_, err := s.AskGraph(context.Background(), project, "Which projects exist?")
		require.NoError(t, err)
		assert.Equal(t, []string{cypherText}, graph.queries)
	})

	t.Run("QueryGraph without graph", func(t *testing.T) {
		bare := newFakeStore(t, &fakeGateway{}, nil)
		_, err := bare.QueryGraph(context.Background(), cypherText)
		assert.Error(t, err)
	})
}

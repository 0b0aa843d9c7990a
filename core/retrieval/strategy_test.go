package retrieval

import (
	"context"
	"testing"

	"github.com/siherrmann/entitystore/core/pipeline"
	"github.com/siherrmann/entitystore/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategies(t *testing.T) {
	project := projectType(t)
	topic := topicType(t)
	projects := newFakeTable(t, project, model.Instance{"name": "roadmap"})
	exact := projects.rows["roadmap"]
	projects.similar = []*model.SearchResult{
		{Entity: exact, Distance: 0.05, RetrievalMethod: model.RetrievalMethodVector},
		{Entity: model.Instance{model.IDField: "other", "name": "budget"}, Distance: 0.4, RetrievalMethod: model.RetrievalMethodVector},
	}
	topics := newFakeTable(t, topic, model.Instance{"name": "roadmap"})

	embedders := embedderMap{"openai": pipeline.NewFuncEmbedder(3, func(text string) ([]float32, error) {
		return []float32{0, 0, 1}, nil
	})}
	engine := NewEngine(&fakeGateway{}, nil, nil, embedders, nil, nil)
	engine.AddTable(projects)
	engine.AddTable(topics)

	t.Run("Key strategy", func(t *testing.T) {
		results, err := NewKeyStrategy(engine).Retrieve(context.Background(), project, "roadmap", model.SearchConfig{})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, model.RetrievalMethodKey, results[0].RetrievalMethod)

		results, err = NewKeyStrategy(engine).Retrieve(context.Background(), project, "unknown", model.SearchConfig{})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Hybrid strategy deduplicates", func(t *testing.T) {
		results, err := NewHybridStrategy(engine).Retrieve(context.Background(), project, "roadmap", model.SearchConfig{})
		require.NoError(t, err)
		require.Len(t, results, 2, "Expected exact match plus one vector result")
		assert.Equal(t, model.RetrievalMethodKey, results[0].RetrievalMethod)
		assert.Equal(t, "budget", results[1].Entity["name"])
	})

	t.Run("Hybrid strategy respects limit", func(t *testing.T) {
		results, err := NewHybridStrategy(engine).Retrieve(context.Background(), project, "roadmap", model.SearchConfig{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("Hybrid strategy without embeddings", func(t *testing.T) {
		results, err := NewHybridStrategy(engine).Retrieve(context.Background(), topic, "roadmap", model.SearchConfig{})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, model.RetrievalMethodKey, results[0].RetrievalMethod)
	})

	t.Run("Strategy by name", func(t *testing.T) {
		s, err := NewStrategy(engine, "vector")
		require.NoError(t, err)
		assert.IsType(t, &VectorStrategy{}, s)

		s, err = NewStrategy(engine, "")
		require.NoError(t, err)
		assert.IsType(t, &HybridStrategy{}, s)

		_, err = NewStrategy(engine, "graph")
		assert.Error(t, err)
	})
}

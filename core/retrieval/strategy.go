package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/siherrmann/entitystore/model"
)

// Strategy defines a retrieval strategy
type Strategy interface {
	Retrieve(ctx context.Context, t *model.EntityType, question string, config model.SearchConfig) ([]*model.SearchResult, error)
}

// KeyStrategy treats the question as the key value
type KeyStrategy struct {
	engine *Engine
}

// NewKeyStrategy creates a new key strategy
func NewKeyStrategy(engine *Engine) *KeyStrategy {
	return &KeyStrategy{engine: engine}
}

// Retrieve returns the entity with the key, or no result
func (s *KeyStrategy) Retrieve(ctx context.Context, t *model.EntityType, question string, config model.SearchConfig) ([]*model.SearchResult, error) {
	inst, err := s.engine.KeyRetrieve(ctx, t, question)
	if errors.Is(err, model.ErrNotFound) {
		return []*model.SearchResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []*model.SearchResult{{Entity: inst, RetrievalMethod: model.RetrievalMethodKey}}, nil
}

// VectorStrategy performs pure vector similarity search
type VectorStrategy struct {
	engine *Engine
}

// NewVectorStrategy creates a new vector strategy
func NewVectorStrategy(engine *Engine) *VectorStrategy {
	return &VectorStrategy{engine: engine}
}

// Retrieve performs vector retrieval
func (s *VectorStrategy) Retrieve(ctx context.Context, t *model.EntityType, question string, config model.SearchConfig) ([]*model.SearchResult, error) {
	return s.engine.VectorRetrieve(ctx, t, question, config)
}

// HybridStrategy puts an exact key match in front of the vector results.
// The key lookup only runs for types with a string key; types without
// embeddings fall back to the key lookup alone.
type HybridStrategy struct {
	key    *KeyStrategy
	vector *VectorStrategy
}

// NewHybridStrategy creates a new hybrid strategy
func NewHybridStrategy(engine *Engine) *HybridStrategy {
	return &HybridStrategy{key: NewKeyStrategy(engine), vector: NewVectorStrategy(engine)}
}

// Retrieve merges key and vector results, deduplicated by id
func (s *HybridStrategy) Retrieve(ctx context.Context, t *model.EntityType, question string, config model.SearchConfig) ([]*model.SearchResult, error) {
	results := []*model.SearchResult{}
	if t.Has(model.CapabilityIdentity) {
		var err error
		results, err = s.key.Retrieve(ctx, t, question, config)
		if err != nil {
			return nil, err
		}
	}
	if !t.Has(model.CapabilityEmbeddings) {
		return results, nil
	}

	vectorResults, err := s.vector.Retrieve(ctx, t, question, config)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, r := range results {
		seen[fmt.Sprint(r.Entity[model.IDField])] = true
	}
	limit := config.WithDefaults().Limit
	for _, r := range vectorResults {
		if len(results) >= limit {
			break
		}
		id := fmt.Sprint(r.Entity[model.IDField])
		if seen[id] {
			continue
		}
		seen[id] = true
		results = append(results, r)
	}

	return results, nil
}

// NewStrategy returns the strategy for a retrieval method name.
func NewStrategy(engine *Engine, method string) (Strategy, error) {
	switch method {
	case string(model.RetrievalMethodKey):
		return NewKeyStrategy(engine), nil
	case string(model.RetrievalMethodVector):
		return NewVectorStrategy(engine), nil
	case "", "hybrid":
		return NewHybridStrategy(engine), nil
	}
	return nil, fmt.Errorf("unknown retrieval strategy %q", method)
}

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/siherrmann/entitystore/core/pipeline"
	"github.com/siherrmann/entitystore/core/query"
	"github.com/siherrmann/entitystore/core/translate"
	"github.com/siherrmann/entitystore/database"
	"github.com/siherrmann/entitystore/helper"
	"github.com/siherrmann/entitystore/model"
	"golang.org/x/sync/errgroup"
)

// ResolveConcurrency limits the type-specific lookups of Resolve.
const ResolveConcurrency = 4

// EmbedderLookup returns the embedder of a provider.
type EmbedderLookup interface {
	Embedder(provider string) (pipeline.Embedder, bool)
}

// Engine answers reads against the entity tables and the graph mirror.
type Engine struct {
	gateway    database.GatewayFunctions
	graph      database.GraphDBHandlerFunctions
	translator translate.Translator
	embedders  EmbedderLookup
	registry   *model.Registry
	logger     *slog.Logger

	mu     sync.RWMutex
	tables map[string]database.EntitiesDBHandlerFunctions
}

// NewEngine creates a new retrieval engine. graph, translator and
// embedders may be nil; the operations needing them return an error then.
func NewEngine(gateway database.GatewayFunctions, graph database.GraphDBHandlerFunctions, translator translate.Translator, embedders EmbedderLookup, registry *model.Registry, logger *slog.Logger) *Engine {
	if registry == nil {
		registry = model.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		gateway:    gateway,
		graph:      graph,
		translator: translator,
		embedders:  embedders,
		registry:   registry,
		logger:     logger,
		tables:     map[string]database.EntitiesDBHandlerFunctions{},
	}
}

// Registry returns the type registry used for label resolution.
func (e *Engine) Registry() *model.Registry {
	return e.registry
}

// AddTable makes the handler's entity type available for reads.
func (e *Engine) AddTable(handler database.EntitiesDBHandlerFunctions) {
	t := handler.Schema().Type
	e.mu.Lock()
	e.tables[t.FullName()] = handler
	e.mu.Unlock()
	e.registry.Register(t)
}

// Table returns the handler of the entity type.
func (e *Engine) Table(t *model.EntityType) (database.EntitiesDBHandlerFunctions, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.tables[t.FullName()]
	if !ok {
		return nil, fmt.Errorf("entity type %s is not registered", t.FullName())
	}
	return h, nil
}

// KeyRetrieve returns the entity with the key, or model.ErrNotFound.
func (e *Engine) KeyRetrieve(ctx context.Context, t *model.EntityType, key any) (model.Instance, error) {
	h, err := e.Table(t)
	if err != nil {
		return nil, err
	}
	return h.SelectByKey(ctx, key)
}

// VectorRetrieve embeds the question with the provider of the first
// embedding column and ranks rows by distance to it.
func (e *Engine) VectorRetrieve(ctx context.Context, t *model.EntityType, question string, config model.SearchConfig) ([]*model.SearchResult, error) {
	if err := t.Require(model.CapabilityEmbeddings); err != nil {
		return nil, err
	}
	h, err := e.Table(t)
	if err != nil {
		return nil, err
	}

	column := h.Schema().EmbeddingColumns[0]
	if e.embedders == nil {
		return nil, fmt.Errorf("no embedder registered for provider %q", column.Provider)
	}
	embedder, ok := e.embedders.Embedder(column.Provider)
	if !ok {
		return nil, fmt.Errorf("no embedder registered for provider %q", column.Provider)
	}

	vectors, err := embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, helper.NewError("embed question", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != column.Dimension {
		return nil, helper.NewError("embed question", fmt.Errorf("provider %s returned an unexpected vector for %s", column.Provider, column.ColumnName))
	}

	return h.SelectBySimilarity(ctx, vectors[0], config)
}

// Resolve finds entities of any registered type named name. Graph nodes are
// matched first; every candidate is then read from its own table.
// Labels without a registered type and stale nodes are skipped.
func (e *Engine) Resolve(ctx context.Context, name string) ([]*model.ResolvedEntity, error) {
	if e.graph == nil {
		return nil, helper.NewError("resolve", fmt.Errorf("graph mirror is disabled"))
	}

	nodes, err := e.graph.MatchByName(ctx, name)
	if err != nil {
		return nil, err
	}

	resolved := make([]*model.ResolvedEntity, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ResolveConcurrency)
	for i, node := range nodes {
		t, ok := e.registry.LookupLabel(node.Label)
		if !ok {
			e.logger.Debug("Skipping node of unknown label", slog.String("label", node.Label), slog.String("name", name))
			continue
		}
		key := node.Name()
		g.Go(func() error {
			inst, err := e.KeyRetrieve(gctx, t, key)
			if errors.Is(err, model.ErrNotFound) {
				e.logger.Debug("Skipping node without row", slog.String("label", node.Label), slog.String("name", key))
				return nil
			}
			if err != nil {
				return err
			}
			resolved[i] = &model.ResolvedEntity{Type: t, Label: node.Label, Name: key, Entity: inst}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*model.ResolvedEntity, 0, len(resolved))
	for _, r := range resolved {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// Ask translates the question into SQL against the type's table and runs it
// through the gateway as is.
func (e *Engine) Ask(ctx context.Context, t *model.EntityType, question string) ([]model.Row, error) {
	statement, err := e.translate(ctx, t, question, translate.DialectSQL)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Translated question", slog.String("question", question), slog.String("query", statement))
	return e.gateway.Execute(ctx, statement)
}

// AskGraph translates the question into cypher and runs it on the graph.
func (e *Engine) AskGraph(ctx context.Context, t *model.EntityType, question string) ([]model.Row, error) {
	if e.graph == nil {
		return nil, helper.NewError("ask graph", fmt.Errorf("graph mirror is disabled"))
	}
	statement, err := e.translate(ctx, t, question, translate.DialectCypher)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Translated question", slog.String("question", question), slog.String("query", statement))
	return e.graph.Query(ctx, statement)
}

func (e *Engine) translate(ctx context.Context, t *model.EntityType, question string, dialect translate.Dialect) (string, error) {
	if e.translator == nil {
		return "", helper.NewError("translate", fmt.Errorf("no translator configured"))
	}
	h, err := e.Table(t)
	if err != nil {
		return "", err
	}
	statement, err := e.translator.Translate(ctx, question, query.Describe(h.Schema()), dialect)
	if err != nil {
		return "", helper.NewError("translate", err)
	}
	return statement, nil
}

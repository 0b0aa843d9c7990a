package entitystore

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/siherrmann/entitystore/core/pipeline"
	"github.com/siherrmann/entitystore/core/retrieval"
	"github.com/siherrmann/entitystore/core/schema"
	"github.com/siherrmann/entitystore/database"
	"github.com/siherrmann/entitystore/helper"
	"github.com/siherrmann/entitystore/model"
	loadSql "github.com/siherrmann/entitystore/sql"
)

// ErrNotFound is returned by GetByKey if no entity has the key.
var ErrNotFound = model.ErrNotFound

// Store is the entry point of the entity store. It owns one connection
// pool, the embedding dispatcher and the retrieval engine.
type Store struct {
	DB         *helper.Database
	Engine     *retrieval.Engine
	Dispatcher *pipeline.Dispatcher

	gateway  database.GatewayFunctions
	graph    database.GraphDBHandlerFunctions
	log      *slog.Logger
	pageSize int
}

// NewStore connects to the database, loads the extensions and starts the
// embedding dispatcher. The graph mirror is enabled if a graph is named by
// WithGraph or the configuration, unless WithoutGraph is given.
func NewStore(config *helper.DatabaseConfiguration, opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = helper.NewLogger(os.Stdout, slog.LevelInfo)
	}
	if config == nil {
		return nil, helper.NewError("database configuration validation", fmt.Errorf("database configuration is nil"))
	}

	db, err := helper.NewDatabase("entitystore", config, o.logger)
	if err != nil {
		return nil, helper.NewError("connect database", err)
	}

	err = loadSql.Init(db.Instance)
	if err != nil {
		_ = db.Close()
		return nil, helper.NewError("initialize database extensions", err)
	}

	gateway, err := database.NewGateway(db)
	if err != nil {
		_ = db.Close()
		return nil, helper.NewError("create gateway", err)
	}

	graphName := o.graph
	if graphName == "" {
		graphName = config.Graph
	}

	var graph database.GraphDBHandlerFunctions
	if !o.noGraph && graphName != "" {
		err = loadSql.LoadGraph(db.Instance, graphName)
		if err != nil {
			_ = db.Close()
			return nil, helper.NewError("load graph", err)
		}
		graph, err = database.NewGraphDBHandler(gateway, o.logger, graphName)
		if err != nil {
			_ = db.Close()
			return nil, helper.NewError("create graph handler", err)
		}
	}

	s := newStore(gateway, graph, o)
	s.DB = db
	return s, nil
}

// newStore wires a store over an existing gateway and graph handler.
func newStore(gateway database.GatewayFunctions, graph database.GraphDBHandlerFunctions, o *options) *Store {
	if o.logger == nil {
		o.logger = slog.Default()
	}

	dispatcher := pipeline.NewDispatcher(o.embedders, o.dispatcher, o.logger)
	engine := retrieval.NewEngine(gateway, graph, o.translator, dispatcher, model.NewRegistry(), o.logger)

	o.logger.Info("Initialized Store", slog.Bool("graph", graph != nil), slog.Bool("translator", o.translator != nil))

	return &Store{
		Engine:     engine,
		Dispatcher: dispatcher,
		gateway:    gateway,
		graph:      graph,
		log:        o.logger,
		pageSize:   o.pageSize,
	}
}

// Close drains the embedding queue and closes the connection pool.
func (s *Store) Close() error {
	if s.Dispatcher != nil {
		s.Dispatcher.Close()
	}
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// dimension prefers the registered embedder over the provider default.
func (s *Store) dimension(provider string) (int, error) {
	if e, ok := s.Dispatcher.Embedder(provider); ok {
		return e.Dimension(), nil
	}
	return schema.DefaultDimensionFunc(provider)
}

func (s *Store) newHandler(t *model.EntityType) (*database.EntitiesDBHandler, error) {
	ts, err := schema.Derive(t, s.dimension)
	if err != nil {
		return nil, err
	}
	return database.NewEntitiesDBHandler(s.gateway, s.log, ts, s.pageSize)
}

// Register makes a type whose table already exists usable without DDL.
func (s *Store) Register(t *model.EntityType) (*model.TableSchema, error) {
	h, err := s.newHandler(t)
	if err != nil {
		return nil, err
	}
	s.Engine.AddTable(h)
	return h.Schema(), nil
}

// CreateSchema creates the table of t, or adds missing columns if it exists,
// and registers the type. Identity types get their vertex label.
func (s *Store) CreateSchema(ctx context.Context, t *model.EntityType) (*model.TableSchema, error) {
	h, err := s.newHandler(t)
	if err != nil {
		return nil, err
	}

	err = h.CreateTable(ctx)
	if err != nil {
		return nil, err
	}

	if s.graph != nil && t.Has(model.CapabilityIdentity) {
		err = s.graph.EnsureLabel(ctx, t)
		if err != nil {
			return nil, err
		}
	}

	s.Engine.AddTable(h)

	return h.Schema(), nil
}

// Upsert writes the instances in one batched statement, last writer wins.
// Instances get their id attached. Embeddings are computed in the
// background; identity types are mirrored into the graph, where a failure
// is logged and the row stays authoritative.
func (s *Store) Upsert(ctx context.Context, t *model.EntityType, instances ...model.Instance) ([]model.Row, error) {
	if len(instances) == 0 {
		return nil, nil
	}
	h, err := s.Engine.Table(t)
	if err != nil {
		return nil, err
	}

	// one statement cannot update a row twice, so the last occurrence wins
	positions := map[uuid.UUID]int{}
	batch := make([]model.Instance, 0, len(instances))
	for _, inst := range instances {
		if inst == nil {
			return nil, helper.NewError("upsert", fmt.Errorf("nil instance of %s", t.FullName()))
		}
		id, err := t.ResolveID(inst)
		if err != nil {
			return nil, helper.NewError("resolve id", err)
		}
		if i, ok := positions[id]; ok {
			batch[i] = inst
			continue
		}
		positions[id] = len(batch)
		batch = append(batch, inst)
	}

	rows, err := h.Upsert(ctx, batch)
	if err != nil {
		return nil, err
	}

	s.log.Debug("Upserted entities", slog.String("type", t.FullName()), slog.Int("rows", len(rows)))

	if t.Has(model.CapabilityEmbeddings) {
		queued := make([]model.Instance, 0, len(batch))
		for _, inst := range batch {
			serialized, err := inst.Serialize()
			if err != nil {
				return rows, helper.NewError("serialize", err)
			}
			queued = append(queued, serialized)
		}
		s.Dispatcher.Enqueue(h, h.Schema(), queued)
	}

	if s.graph != nil && t.Has(model.CapabilityIdentity) {
		err = s.graph.UpsertNodes(ctx, t, batch)
		if err != nil {
			s.log.Warn("Graph mirror failed", slog.String("type", t.FullName()), slog.String("error", err.Error()))
		}
	}

	return rows, nil
}

// GetByKey returns the entity with the key value (the id for unkeyed
// types), or ErrNotFound.
func (s *Store) GetByKey(ctx context.Context, t *model.EntityType, key any) (model.Instance, error) {
	return s.Engine.KeyRetrieve(ctx, t, key)
}

// VectorSearch ranks entities of t by distance to the embedded question.
// Zero values of op and limit use the defaults.
func (s *Store) VectorSearch(ctx context.Context, t *model.EntityType, question string, op model.VectorOperator, limit int) ([]*model.SearchResult, error) {
	return s.VectorSearchWithConfig(ctx, t, question, model.SearchConfig{Operator: op, Limit: limit})
}

// VectorSearchWithConfig is VectorSearch with an explicit distance threshold.
func (s *Store) VectorSearchWithConfig(ctx context.Context, t *model.EntityType, question string, config model.SearchConfig) ([]*model.SearchResult, error) {
	return s.Engine.VectorRetrieve(ctx, t, question, config)
}

// Search runs the named retrieval strategy: key, vector or hybrid.
func (s *Store) Search(ctx context.Context, t *model.EntityType, question string, strategy string, config model.SearchConfig) ([]*model.SearchResult, error) {
	st, err := retrieval.NewStrategy(s.Engine, strategy)
	if err != nil {
		return nil, err
	}
	return st.Retrieve(ctx, t, question, config)
}

// ResolveByName finds entities of any registered type named name.
func (s *Store) ResolveByName(ctx context.Context, name string) ([]*model.ResolvedEntity, error) {
	return s.Engine.Resolve(ctx, name)
}

// Ask translates the question into SQL and executes it.
func (s *Store) Ask(ctx context.Context, t *model.EntityType, question string) ([]model.Row, error) {
	return s.Engine.Ask(ctx, t, question)
}

// AskGraph translates the question into cypher and executes it on the graph.
func (s *Store) AskGraph(ctx context.Context, t *model.EntityType, question string) ([]model.Row, error) {
	return s.Engine.AskGraph(ctx, t, question)
}

// Query executes a raw statement.
func (s *Store) Query(ctx context.Context, statement string, args ...any) ([]model.Row, error) {
	return s.gateway.Execute(ctx, statement, args...)
}

// QueryGraph executes a raw cypher query returning one column.
func (s *Store) QueryGraph(ctx context.Context, cypher string) ([]model.Row, error) {
	if s.graph == nil {
		return nil, helper.NewError("query graph", fmt.Errorf("graph mirror is disabled"))
	}
	return s.graph.Query(ctx, cypher)
}

// Backfill computes the embeddings of up to limit rows that have none and
// returns the number of rows handled.
func (s *Store) Backfill(ctx context.Context, t *model.EntityType, limit int) (int, error) {
	if err := t.Require(model.CapabilityEmbeddings); err != nil {
		return 0, err
	}
	h, err := s.Engine.Table(t)
	if err != nil {
		return 0, err
	}

	rows, err := h.SelectMissingEmbeddings(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	err = s.Dispatcher.Dispatch(ctx, h, h.Schema(), rows)
	if err != nil {
		return 0, helper.NewError("backfill", err)
	}

	s.log.Info("Backfilled embeddings", slog.String("type", t.FullName()), slog.Int("rows", len(rows)))

	return len(rows), nil
}

// ChangeIndexType replaces the vector index of t, see
// database.EntitiesDBHandler.ChangeIndexType for the parameters.
func (s *Store) ChangeIndexType(ctx context.Context, t *model.EntityType, indexType string, op model.VectorOperator, params map[string]int) error {
	if err := t.Require(model.CapabilityEmbeddings); err != nil {
		return err
	}
	h, err := s.Engine.Table(t)
	if err != nil {
		return err
	}
	return h.ChangeIndexType(ctx, indexType, op, params)
}

// DropTable drops the table of t. Graph nodes are left alone.
func (s *Store) DropTable(ctx context.Context, t *model.EntityType) error {
	h, err := s.Engine.Table(t)
	if err != nil {
		return err
	}
	return h.DropTable(ctx)
}

// Flush waits until queued embeddings have been written.
func (s *Store) Flush() {
	s.Dispatcher.Flush()
}

// Stats returns the embedding dispatcher counters.
func (s *Store) Stats() pipeline.DispatcherStats {
	return s.Dispatcher.Stats()
}

package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/entitystore/core/query"
	"github.com/siherrmann/entitystore/helper"
	"github.com/siherrmann/entitystore/model"
)

// EntitiesDBHandlerFunctions defines the interface for entity table operations.
type EntitiesDBHandlerFunctions interface {
	Schema() *model.TableSchema
	CreateTable(ctx context.Context) error
	Upsert(ctx context.Context, instances []model.Instance) ([]model.Row, error)
	UpdateEmbeddings(ctx context.Context, updates []EmbeddingUpdate) error
	SelectByKey(ctx context.Context, key any) (model.Instance, error)
	SelectBySimilarity(ctx context.Context, vector []float32, config model.SearchConfig) ([]*model.SearchResult, error)
	SelectMissingEmbeddings(ctx context.Context, limit int) ([]model.Instance, error)
	DropTable(ctx context.Context) error
	ChangeIndexType(ctx context.Context, indexType string, op model.VectorOperator, params map[string]int) error
}

// EmbeddingUpdate carries the vectors computed for one row, keyed by
// embedding column name.
type EmbeddingUpdate struct {
	ID      uuid.UUID
	Vectors map[string][]float32
}

// EntitiesDBHandler handles the table of one entity type.
type EntitiesDBHandler struct {
	gateway  GatewayFunctions
	logger   *slog.Logger
	schema   *model.TableSchema
	pageSize int
}

// NewEntitiesDBHandler creates a new handler for the derived table schema.
func NewEntitiesDBHandler(gateway GatewayFunctions, logger *slog.Logger, schema *model.TableSchema, pageSize int) (*EntitiesDBHandler, error) {
	if gateway == nil {
		return nil, helper.NewError("gateway validation", fmt.Errorf("gateway is nil"))
	}
	if schema == nil || schema.Type == nil {
		return nil, helper.NewError("schema validation", fmt.Errorf("table schema is nil"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &EntitiesDBHandler{
		gateway:  gateway,
		logger:   logger,
		schema:   schema,
		pageSize: pageSize,
	}, nil
}

// Schema returns the table schema the handler works on.
func (h *EntitiesDBHandler) Schema() *model.TableSchema {
	return h.schema
}

// CreateTable creates the namespace and the table. If the table already
// exists, missing columns are added instead.
func (h *EntitiesDBHandler) CreateTable(ctx context.Context) error {
	_, err := h.gateway.Execute(ctx, query.CreateNamespace(h.schema))
	if err != nil {
		return helper.NewError("create namespace", err)
	}

	_, err = h.gateway.Execute(ctx, query.CreateTable(h.schema))
	if err == nil {
		h.logger.Info("Created table", slog.String("table", h.schema.Type.FullName()))
		return nil
	}
	if !IsDuplicateTable(err) {
		return helper.NewError("create table", err)
	}

	rows, err := h.gateway.Execute(ctx, query.ExistingColumns(), h.schema.Type.Namespace, h.schema.Type.Name)
	if err != nil {
		return helper.NewError("select existing columns", err)
	}
	existing := make([]string, 0, len(rows))
	for _, r := range rows {
		existing = append(existing, fmt.Sprint(r["column_name"]))
	}

	for _, statement := range query.AddColumns(h.schema, existing) {
		_, err = h.gateway.Execute(ctx, statement)
		if err != nil {
			return helper.NewError("add column", err)
		}
		h.logger.Info("Added column", slog.String("table", h.schema.Type.FullName()), slog.String("statement", statement))
	}

	h.logger.Info("Checked/created table", slog.String("table", h.schema.Type.FullName()))

	return nil
}

// Upsert writes the instances in batches and returns the stored rows.
// Every instance must already carry its id.
func (h *EntitiesDBHandler) Upsert(ctx context.Context, instances []model.Instance) ([]model.Row, error) {
	t := h.schema.Type
	values := make([][]any, 0, len(instances))
	for _, inst := range instances {
		v, err := t.Values(inst)
		if err != nil {
			return nil, helper.NewError("values", err)
		}
		values = append(values, v)
	}

	rows, err := h.gateway.ExecuteBatch(ctx, func(n int) (string, error) {
		return query.Upsert(h.schema, n)
	}, values, h.pageSize)
	if err != nil {
		return nil, helper.NewError("upsert", err)
	}

	return rows, nil
}

// UpdateEmbeddings writes computed vectors without touching other columns.
func (h *EntitiesDBHandler) UpdateEmbeddings(ctx context.Context, updates []EmbeddingUpdate) error {
	if err := h.schema.Type.Require(model.CapabilityEmbeddings); err != nil {
		return err
	}

	values := make([][]any, 0, len(updates))
	for _, u := range updates {
		row := []any{u.ID.String()}
		for _, e := range h.schema.EmbeddingColumns {
			vector, ok := u.Vectors[e.ColumnName]
			if !ok || len(vector) == 0 {
				row = append(row, nil)
				continue
			}
			if len(vector) != e.Dimension {
				return helper.NewError("vector dimension", fmt.Errorf("column %s expects %d dimensions, got %d", e.ColumnName, e.Dimension, len(vector)))
			}
			row = append(row, pgvector.NewVector(vector))
		}
		values = append(values, row)
	}

	_, err := h.gateway.ExecuteBatch(ctx, func(n int) (string, error) {
		return query.EmbeddingPartialUpdate(h.schema, n)
	}, values, h.pageSize)
	if err != nil {
		return helper.NewError("update embeddings", err)
	}

	return nil
}

// SelectByKey retrieves an entity by its key value, or by id for unkeyed
// types. It returns model.ErrNotFound if there is no such row.
func (h *EntitiesDBHandler) SelectByKey(ctx context.Context, key any) (model.Instance, error) {
	t := h.schema.Type
	value, err := t.StorageValue(t.KeyColumn(), key)
	if err != nil {
		return nil, helper.NewError("key value", err)
	}

	rows, err := h.gateway.Execute(ctx, query.SelectByKey(h.schema), value)
	if err != nil {
		return nil, helper.NewError("select by key", err)
	}
	if len(rows) == 0 {
		return nil, model.ErrNotFound
	}

	inst, err := t.Hydrate(rows[0])
	if err != nil {
		return nil, helper.NewError("hydrate", err)
	}

	return inst, nil
}

// SelectBySimilarity ranks rows by distance to vector on the first embedding column.
func (h *EntitiesDBHandler) SelectBySimilarity(ctx context.Context, vector []float32, config model.SearchConfig) ([]*model.SearchResult, error) {
	config = config.WithDefaults()
	statement, err := query.VectorSearch(h.schema, config.Operator, config.Limit)
	if err != nil {
		return nil, err
	}

	rows, err := h.gateway.Execute(ctx, statement, pgvector.NewVector(vector), config.Threshold())
	if err != nil {
		return nil, helper.NewError("select by similarity", err)
	}

	results := make([]*model.SearchResult, 0, len(rows))
	for _, r := range rows {
		inst, err := h.schema.Type.Hydrate(r)
		if err != nil {
			return nil, helper.NewError("hydrate", err)
		}
		distance, err := toFloat(r["distance"])
		if err != nil {
			return nil, helper.NewError("distance", err)
		}
		results = append(results, &model.SearchResult{
			Entity:          inst,
			Distance:        distance,
			RetrievalMethod: model.RetrievalMethodVector,
		})
	}

	return results, nil
}

// SelectMissingEmbeddings returns up to limit rows with an empty embedding column.
func (h *EntitiesDBHandler) SelectMissingEmbeddings(ctx context.Context, limit int) ([]model.Instance, error) {
	statement, err := query.SelectMissingEmbeddings(h.schema, limit)
	if err != nil {
		return nil, err
	}

	rows, err := h.gateway.Execute(ctx, statement)
	if err != nil {
		return nil, helper.NewError("select missing embeddings", err)
	}

	instances := make([]model.Instance, 0, len(rows))
	for _, r := range rows {
		inst, err := h.schema.Type.Hydrate(r)
		if err != nil {
			return nil, helper.NewError("hydrate", err)
		}
		instances = append(instances, inst)
	}

	return instances, nil
}

// DropTable drops the entity table.
func (h *EntitiesDBHandler) DropTable(ctx context.Context) error {
	_, err := h.gateway.Execute(ctx, query.DropTable(h.schema))
	if err != nil {
		return helper.NewError("drop table", err)
	}
	h.logger.Info("Dropped table", slog.String("table", h.schema.Type.FullName()))
	return nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		var f float64
		_, err := fmt.Sscan(n, &f)
		return f, err
	}
	return 0, fmt.Errorf("unsupported distance value %T", v)
}

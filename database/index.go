package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siherrmann/entitystore/core/query"
	"github.com/siherrmann/entitystore/helper"
	"github.com/siherrmann/entitystore/model"
)

// ChangeIndexType replaces the vector index on the first embedding column.
// indexType: "hnsw" or "ivfflat"
// params: optional parameters for index creation
//   - For HNSW: "m" (default 16), "ef_construction" (default 64)
//   - For IVFFlat: "lists" (default 100)
func (h *EntitiesDBHandler) ChangeIndexType(ctx context.Context, indexType string, op model.VectorOperator, params map[string]int) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	createIndexSQL, err := query.CreateVectorIndex(h.schema, indexType, op, params)
	if err != nil {
		return helper.NewError("change index type", err)
	}

	dropIndexSQL, err := query.DropVectorIndex(h.schema)
	if err != nil {
		return helper.NewError("change index type", err)
	}

	_, err = h.gateway.Execute(ctx, dropIndexSQL)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	h.logger.Info("Dropped existing vector index", slog.String("table", h.schema.Type.FullName()))

	_, err = h.gateway.Execute(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	h.logger.Info(fmt.Sprintf("Created %s index with params: %v", indexType, params), slog.String("table", h.schema.Type.FullName()))

	return nil
}

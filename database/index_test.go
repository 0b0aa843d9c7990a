package database

import (
	"context"
	"testing"
	"time"

	"github.com/siherrmann/entitystore/model"
	"github.com/stretchr/testify/assert"
)

func TestChangeIndexType(t *testing.T) {
	database := initDB(t)
	handler := initEntitiesHandler(t, database, personType(t, "person_index"))

	ctx := context.Background()

	t.Run("Change index to HNSW with default params", func(t *testing.T) {
		err := handler.ChangeIndexType(ctx, "hnsw", model.OperatorInnerProduct, map[string]int{})
		assert.NoError(t, err, "Expected ChangeIndexType to hnsw to not return an error")
	})

	t.Run("Change index to HNSW with custom params", func(t *testing.T) {
		params := map[string]int{
			"m":               32,
			"ef_construction": 128,
		}
		err := handler.ChangeIndexType(ctx, "hnsw", model.OperatorCosine, params)
		assert.NoError(t, err, "Expected ChangeIndexType to hnsw with custom params to not return an error")
	})

	t.Run("Change index to IVFFlat with default params", func(t *testing.T) {
		err := handler.ChangeIndexType(ctx, "ivfflat", model.OperatorL2, nil)
		assert.NoError(t, err, "Expected ChangeIndexType to ivfflat to not return an error")
	})

	t.Run("Change index to IVFFlat with custom params", func(t *testing.T) {
		err := handler.ChangeIndexType(ctx, "ivfflat", model.OperatorL2, map[string]int{"lists": 200})
		assert.NoError(t, err, "Expected ChangeIndexType to ivfflat with custom params to not return an error")
	})

	t.Run("Change index with unsupported index type", func(t *testing.T) {
		err := handler.ChangeIndexType(ctx, "invalid", model.OperatorL2, nil)
		assert.Error(t, err, "Expected error when using unsupported index type")
		assert.Contains(t, err.Error(), "unsupported index type", "Expected error message to mention unsupported index type")
	})

	t.Run("Change index with timeout context", func(t *testing.T) {
		timeoutCtx, cancel := context.WithTimeout(ctx, time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)

		err := handler.ChangeIndexType(timeoutCtx, "hnsw", model.OperatorL2, nil)
		assert.Error(t, err, "Expected error with expired context")
	})
}

package entitystore

import (
	"context"
	"testing"

	"github.com/siherrmann/entitystore/database"
	"github.com/siherrmann/entitystore/helper"
	"github.com/siherrmann/entitystore/model"
	loadSql "github.com/siherrmann/entitystore/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGraph = "entities"

// initGraphStore wires a store with the graph mirror onto the AGE container.
// That image has no vector extension, so only types without embeddings are
// created on it.
func initGraphStore(t *testing.T) *Store {
	helper.SetTestDatabaseConfigEnvs(t, graphPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	db := helper.NewTestDatabase(dbConfig)

	err = loadSql.LoadGraph(db.Instance, testGraph)
	require.NoError(t, err, "Expected LoadGraph to not return an error")

	gateway, err := database.NewGateway(db)
	require.NoError(t, err, "Expected NewGateway to not return an error")
	graph, err := database.NewGraphDBHandler(gateway, db.Logger, testGraph)
	require.NoError(t, err, "Expected NewGraphDBHandler to not return an error")

	o := defaultOptions()
	o.logger = db.Logger
	s := newStore(gateway, graph, o)
	s.DB = db

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestStoreGraphMirror(t *testing.T) {
	s := initGraphStore(t)
	ctx := context.Background()

	doc, err := model.NewEntityType("work", "doc", "Documents",
		model.Field{Name: "slug", Type: model.FieldTypeString, IsKey: true},
		model.Field{Name: "name", Type: model.FieldTypeString},
		model.Field{Name: "pages", Type: model.FieldTypeInteger},
	)
	require.NoError(t, err)

	_, err = s.CreateSchema(ctx, doc)
	require.NoError(t, err, "Expected CreateSchema to not return an error")
	t.Cleanup(func() { _ = s.DropTable(context.Background(), doc) })

	t.Run("Valid call ResolveByName on a type keyed by slug", func(t *testing.T) {
		_, err := s.Upsert(ctx, doc, model.Instance{"slug": "roadmap", "name": "Roadmap 2026", "pages": 4})
		require.NoError(t, err, "Expected Upsert to not return an error")

		resolved, err := s.ResolveByName(ctx, "roadmap")
		require.NoError(t, err, "Expected ResolveByName to not return an error")
		require.Len(t, resolved, 1, "Expected the doc to be found by its key")
		assert.Equal(t, "work_doc", resolved[0].Label)
		assert.Equal(t, "roadmap", resolved[0].Name)
		assert.Equal(t, "Roadmap 2026", resolved[0].Entity["name"], "Expected the stored row to keep its name field")
		assert.EqualValues(t, 4, resolved[0].Entity["pages"])

		none, err := s.ResolveByName(ctx, "Roadmap 2026")
		require.NoError(t, err)
		assert.Empty(t, none, "Expected the plain name field to not be the graph key")
	})

	t.Run("Repeated upserts keep one node", func(t *testing.T) {
		_, err := s.Upsert(ctx, doc, model.Instance{"slug": "roadmap", "name": "Roadmap 2027", "pages": 5})
		require.NoError(t, err)

		rows, err := s.QueryGraph(ctx, "MATCH (n:work_doc {name: 'roadmap'}) RETURN n")
		require.NoError(t, err, "Expected QueryGraph to not return an error")
		assert.Len(t, rows, 1, "Expected exactly one node for the key")

		resolved, err := s.ResolveByName(ctx, "roadmap")
		require.NoError(t, err)
		require.Len(t, resolved, 1)
		assert.Equal(t, "Roadmap 2027", resolved[0].Entity["name"], "Expected the latest row")
		assert.EqualValues(t, 5, resolved[0].Entity["pages"])
	})

	t.Run("A caller supplied id does not split the key", func(t *testing.T) {
		_, err := s.Upsert(ctx, doc, model.Instance{"id": "00000000-0000-0000-0000-000000000001", "slug": "handbook", "pages": 1})
		require.NoError(t, err)
		_, err = s.Upsert(ctx, doc, model.Instance{"slug": "handbook", "pages": 2})
		require.NoError(t, err, "Expected the second upsert of the key to not violate uniqueness")

		found, err := s.GetByKey(ctx, doc, "handbook")
		require.NoError(t, err)
		assert.EqualValues(t, 2, found["pages"], "Expected last writer to win")
		assert.Equal(t, doc.IdentityFor("handbook"), found["id"])
	})
}

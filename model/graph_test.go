package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVertex(t *testing.T) {
	t.Run("Valid vertex", func(t *testing.T) {
		node, err := ParseVertex(`{"id": 844424930131969, "label": "work_project", "properties": {"name": "roadmap", "budget": 10}}::vertex`)
		require.NoError(t, err)
		assert.Equal(t, int64(844424930131969), node.ID)
		assert.Equal(t, "work_project", node.Label)
		assert.Equal(t, "roadmap", node.Name())

		namespace, name, err := node.EntityRef()
		require.NoError(t, err)
		assert.Equal(t, "work", namespace)
		assert.Equal(t, "project", name)
	})

	t.Run("Vertex without properties", func(t *testing.T) {
		node, err := ParseVertex([]byte(`{"id": 1, "label": "a_b"}::vertex`))
		require.NoError(t, err)
		assert.Equal(t, "", node.Name())
	})

	t.Run("Invalid vertex", func(t *testing.T) {
		_, err := ParseVertex(42)
		assert.Error(t, err)
		_, err = ParseVertex("not json")
		assert.Error(t, err)
	})
}

func TestParseLabel(t *testing.T) {
	namespace, name, err := ParseLabel("public_user_profile")
	require.NoError(t, err)
	assert.Equal(t, "public", namespace, "Expected split on the first underscore")
	assert.Equal(t, "user_profile", name)

	for _, invalid := range []string{"nounderscore", "_name", "ns_"} {
		_, _, err := ParseLabel(invalid)
		assert.Error(t, err, "Expected %q to be rejected", invalid)
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	project := MustEntityType("work", "project", "", Field{Name: "name", Type: FieldTypeString, IsKey: true})
	profile := MustEntityType("public", "user_profile", "", Field{Name: "name", Type: FieldTypeString, IsKey: true})
	registry.Register(project)
	registry.Register(profile)

	found, ok := registry.LookupLabel("public_user_profile")
	require.True(t, ok)
	assert.Equal(t, profile, found)

	_, ok = registry.LookupLabel("work_topic")
	assert.False(t, ok)

	assert.Equal(t, []*EntityType{profile, project}, registry.Types(), "Expected types sorted by full name")
}

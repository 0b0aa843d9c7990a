package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVectorOperator(t *testing.T) {
	cases := map[string]VectorOperator{
		"":              OperatorInnerProduct,
		"inner_product": OperatorInnerProduct,
		"<#>":           OperatorInnerProduct,
		"cosine":        OperatorCosine,
		"euclidean":     OperatorL2,
		"l1":            OperatorL1,
	}
	for input, expected := range cases {
		op, err := ParseVectorOperator(input)
		require.NoError(t, err, "Expected %q to parse", input)
		assert.Equal(t, expected, op)
		assert.True(t, op.Valid())
	}

	_, err := ParseVectorOperator("hamming")
	assert.Error(t, err)
	assert.False(t, VectorOperator("<~>").Valid())
}

func TestSearchConfigWithDefaults(t *testing.T) {
	t.Run("Zero config", func(t *testing.T) {
		assert.Equal(t, DefaultSearchConfig(), SearchConfig{}.WithDefaults())
	})

	t.Run("Explicit values kept", func(t *testing.T) {
		config := SearchConfig{Operator: OperatorCosine, Limit: 3, MaxDistance: Threshold(0.5)}.WithDefaults()
		assert.Equal(t, SearchConfig{Operator: OperatorCosine, Limit: 3, MaxDistance: Threshold(0.5)}, config)
		assert.Equal(t, 0.5, config.Threshold())
	})

	t.Run("Zero threshold is kept", func(t *testing.T) {
		config := SearchConfig{MaxDistance: Threshold(0)}.WithDefaults()
		require.NotNil(t, config.MaxDistance)
		assert.Equal(t, 0.0, config.Threshold(), "Expected an explicit zero threshold to not be replaced")
	})

	t.Run("Unset threshold uses the default", func(t *testing.T) {
		assert.Equal(t, DefaultMaxDistance, SearchConfig{}.Threshold())
	})

	assert.Equal(t, 7, DefaultSearchLimit)
	assert.Equal(t, 2.0, DefaultMaxDistance)
}

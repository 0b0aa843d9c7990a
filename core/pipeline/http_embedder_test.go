package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req openAIEmbeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "small", req.Model)

		// answer out of order to check index mapping
		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		var data []item
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float32{float32(len(req.Input[i])), 0}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer server.Close()

	embedder, err := NewOpenAIEmbedder("key", server.URL, "small", 2)
	require.NoError(t, err)

	t.Run("Valid call Embed", func(t *testing.T) {
		out, err := embedder.Embed(context.Background(), []string{"a", "abc", "  "})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1, 0}, {3, 0}, {1, 0}}, out, "Expected vectors in input order, blank as single space")
		assert.Equal(t, 2, embedder.Dimension())
	})

	t.Run("Missing api key", func(t *testing.T) {
		_, err := NewOpenAIEmbedder("", "", "", 0)
		assert.Error(t, err)
	})

	t.Run("Defaults", func(t *testing.T) {
		e, err := NewOpenAIEmbedder("key", "", "", 0)
		require.NoError(t, err)
		assert.Equal(t, DefaultOpenAIDimension, e.Dimension())
		assert.Equal(t, DefaultOpenAIModel, e.model)
	})
}

func TestOpenAIEmbedderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	embedder, err := NewOpenAIEmbedder("key", server.URL, "", 0)
	require.NoError(t, err)

	_, err = embedder.Embed(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "status 429")
}

func TestOllamaEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Prompt == "fail" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{float32(len(req.Prompt)), 1}})
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(server.URL, "nomic", 2)

	t.Run("Valid call Embed", func(t *testing.T) {
		out, err := embedder.Embed(context.Background(), []string{"ab", "abcd"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{2, 1}, {4, 1}}, out)
	})

	t.Run("Server error", func(t *testing.T) {
		_, err := embedder.Embed(context.Background(), []string{"fail"})
		assert.ErrorContains(t, err, "status 500")
	})

	t.Run("Defaults", func(t *testing.T) {
		e := NewOllamaEmbedder("", "", 0)
		assert.Equal(t, DefaultOllamaDimension, e.Dimension())
		assert.Equal(t, DefaultOllamaBaseURL, e.baseURL)
	})
}

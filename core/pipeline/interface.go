package pipeline

import (
	"context"
	"fmt"
)

// Embedder turns texts into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// funcEmbedder adapts an EmbedFunc to the Embedder interface.
type funcEmbedder struct {
	dimension int
	embed     EmbedFunc
}

// NewFuncEmbedder wraps a single text embedding function of the given dimension.
func NewFuncEmbedder(dimension int, embed EmbedFunc) Embedder {
	return &funcEmbedder{dimension: dimension, embed: embed}
}

func (e *funcEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vector, err := e.embed(text)
		if err != nil {
			return nil, err
		}
		if len(vector) != e.dimension {
			return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(vector), e.dimension)
		}
		out = append(out, vector)
	}
	return out, nil
}

func (e *funcEmbedder) Dimension() int {
	return e.dimension
}

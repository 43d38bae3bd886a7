// ABOUTME: Embedding wrapper that enforces the deployment-wide vector dimension
// ABOUTME: A mismatch is a fatal configuration error and is never retried
package llm

import (
	"context"
	"time"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/logging"
)

type dimensionGuard struct {
	EmbeddingBackend
	expected int
}

// WithDimensionCheck wraps an embedding backend so every returned vector is
// checked against expected.
func WithDimensionCheck(backend EmbeddingBackend, expected int) EmbeddingBackend {
	return &dimensionGuard{EmbeddingBackend: backend, expected: expected}
}

func (g *dimensionGuard) Dimensions() int { return g.expected }

func (g *dimensionGuard) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := g.EmbeddingBackend.Embed(ctx, text)
	if err == nil {
		err = g.check(vec)
	}
	logging.ProviderCall(ctx, g.Name(), "embed", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func (g *dimensionGuard) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := g.EmbeddingBackend.EmbedBatch(ctx, texts)
	if err == nil {
		for _, v := range vecs {
			if err = g.check(v); err != nil {
				break
			}
		}
	}
	logging.ProviderCall(ctx, g.Name(), "embed_batch", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return vecs, nil
}

func (g *dimensionGuard) check(vec []float32) error {
	if len(vec) != g.expected {
		return &apperr.DimensionMismatchError{Provider: g.Name(), Expected: g.expected, Got: len(vec)}
	}
	return nil
}

// ABOUTME: Embedding wrapper that retries rate-limited calls with exponential backoff
// ABOUTME: Other failures return immediately so search can degrade without delay
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/logging"
	"github.com/harper/bible-chat/internal/util"
)

// retryBaseDelay is doubled on each attempt by util.CalculateBackoff
const retryBaseDelay = 250 * time.Millisecond

type retryingEmbedder struct {
	EmbeddingBackend
	retries   int
	baseDelay time.Duration
}

// WithRetry retries rate-limited embedding calls up to retries extra times.
// retries <= 0 returns backend unchanged.
func WithRetry(backend EmbeddingBackend, retries int, baseDelay time.Duration) EmbeddingBackend {
	if retries <= 0 {
		return backend
	}
	return &retryingEmbedder{EmbeddingBackend: backend, retries: retries, baseDelay: baseDelay}
}

func (r *retryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := r.do(ctx, "embed", func() error {
		var err error
		vec, err = r.EmbeddingBackend.Embed(ctx, text)
		return err
	})
	return vec, err
}

func (r *retryingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := r.do(ctx, "embed_batch", func() error {
		var err error
		vecs, err = r.EmbeddingBackend.EmbedBatch(ctx, texts)
		return err
	})
	return vecs, err
}

func (r *retryingEmbedder) do(ctx context.Context, op string, call func() error) error {
	policy := util.Policy{
		Retries:   r.retries,
		BaseDelay: r.baseDelay,
		Retryable: func(err error) bool { return errors.Is(err, apperr.ErrProviderRateLimited) },
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logging.FromContext(ctx).Debug("provider_retry", "provider", r.Name(), "op", op, "attempt", attempt, "delay_ms", delay.Milliseconds())
		},
	}
	return policy.Do(ctx, call)
}

// ABOUTME: Component health checks for the corpus store and provider backends
// ABOUTME: The store is critical; provider outages only degrade the service
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Health statuses
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ComponentHealth is the result of one check
type ComponentHealth struct {
	Status    string         `json:"status"`
	LatencyMS float64        `json:"latencyMs"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthReport is the overall service health
type HealthReport struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Config     map[string]string          `json:"config"`
}

// Health checks the store, language model and embedding backend concurrently.
// A failed store makes the service unhealthy; a failed provider degrades it.
func (a *App) Health(ctx context.Context) HealthReport {
	var database, model, embedding ComponentHealth

	var g errgroup.Group
	g.Go(func() error {
		database = a.CheckDatabase(ctx)
		return nil
	})
	g.Go(func() error {
		model = a.checkModel(ctx)
		return nil
	})
	g.Go(func() error {
		embedding = a.checkEmbedding(ctx)
		return nil
	})
	_ = g.Wait()

	status := StatusHealthy
	switch {
	case database.Status != StatusHealthy:
		status = StatusUnhealthy
	case model.Status != StatusHealthy || embedding.Status != StatusHealthy:
		status = StatusDegraded
	}

	return HealthReport{
		Status: status,
		Components: map[string]ComponentHealth{
			"database":  database,
			"llm":       model,
			"embedding": embedding,
		},
		Config: map[string]string{
			"llm_provider":       a.Model.Name(),
			"llm_model":          a.Model.Model(),
			"embedding_provider": a.Embedder.Name(),
			"embedding_model":    a.Embedder.Model(),
			"store_backend":      a.Config.StoreBackend,
		},
	}
}

// CheckDatabase pings the corpus store (and vector index, if any)
func (a *App) CheckDatabase(ctx context.Context) ComponentHealth {
	return a.timed(ctx, "database", nil, func(ctx context.Context) (map[string]any, error) {
		return nil, a.Repo.Ping(ctx)
	})
}

func (a *App) checkModel(ctx context.Context) ComponentHealth {
	details := map[string]any{"provider": a.Model.Name(), "model": a.Model.Model()}
	return a.timed(ctx, "language model", details, func(ctx context.Context) (map[string]any, error) {
		if !a.Model.HealthCheck(ctx) {
			return nil, errors.New("health check failed")
		}
		return nil, nil
	})
}

func (a *App) checkEmbedding(ctx context.Context) ComponentHealth {
	details := map[string]any{"provider": a.Embedder.Name(), "model": a.Embedder.Model()}
	return a.timed(ctx, "embedding", details, func(ctx context.Context) (map[string]any, error) {
		vec, err := a.Embedder.Embed(ctx, "health check")
		if err != nil {
			return nil, err
		}
		return map[string]any{"dimensions": len(vec)}, nil
	})
}

func (a *App) timed(ctx context.Context, name string, details map[string]any, check func(context.Context) (map[string]any, error)) ComponentHealth {
	timeout := a.Config.HealthCheckTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	extra, err := check(ctx)
	latency := float64(time.Since(start).Microseconds()) / 1000

	for k, v := range extra {
		if details == nil {
			details = make(map[string]any)
		}
		details[k] = v
	}

	h := ComponentHealth{Status: StatusHealthy, LatencyMS: latency, Details: details}
	if err != nil {
		h.Status = StatusUnhealthy
		h.Error = err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.Error = fmt.Sprintf("%s check timed out after %s", name, timeout)
		}
	}
	return h
}

// ABOUTME: Factory selecting concrete provider adapters from configuration
// ABOUTME: Unknown kinds and missing credentials fail fast at startup
package llm

import (
	"context"
	"fmt"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/config"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	anthropicBaseURL  = "https://api.anthropic.com/v1"
)

// NewLanguageModelBackend returns the language model adapter named by cfg.LLMProvider
func NewLanguageModelBackend(ctx context.Context, cfg *config.Config) (LanguageModelBackend, error) {
	var (
		backend LanguageModelBackend
		err     error
	)

	switch cfg.LLMProvider {
	case "ollama":
		backend = NewOllamaBackend(OllamaConfig{
			Host:      cfg.OllamaHost,
			ChatModel: cfg.LLMModel,
			Timeout:   cfg.ProviderTimeout,
		})
	case "openai":
		backend, err = NewOpenAIBackend(OpenAIConfig{
			Provider:  "openai",
			APIKey:    cfg.OpenAIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			ChatModel: cfg.LLMModel,
			Timeout:   cfg.ProviderTimeout,
		})
	case "openrouter":
		backend, err = NewOpenAIBackend(OpenAIConfig{
			Provider:  "openrouter",
			APIKey:    cfg.OpenRouterKey,
			BaseURL:   openRouterBaseURL,
			ChatModel: cfg.LLMModel,
			Timeout:   cfg.ProviderTimeout,
		})
	case "claude":
		backend, err = NewOpenAIBackend(OpenAIConfig{
			Provider:  "claude",
			APIKey:    cfg.AnthropicKey,
			BaseURL:   anthropicBaseURL,
			ChatModel: cfg.LLMModel,
			Timeout:   cfg.ProviderTimeout,
		})
	case "gemini":
		backend, err = NewGeminiBackend(ctx, GeminiConfig{
			APIKey:    cfg.GeminiKey,
			ChatModel: cfg.LLMModel,
			Timeout:   cfg.ProviderTimeout,
		})
	default:
		return nil, fmt.Errorf("%w: unknown LLM provider %q", apperr.ErrInvalidConfig, cfg.LLMProvider)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidConfig, cfg.LLMProvider, err)
	}
	return backend, nil
}

// NewEmbeddingBackend returns the embedding adapter named by cfg.EmbeddingProvider,
// retried on rate limits and wrapped so every vector is checked against
// cfg.EmbeddingDimensions.
func NewEmbeddingBackend(ctx context.Context, cfg *config.Config) (EmbeddingBackend, error) {
	var (
		backend EmbeddingBackend
		err     error
	)

	switch cfg.EmbeddingProvider {
	case "ollama":
		backend = NewOllamaBackend(OllamaConfig{
			Host:           cfg.OllamaHost,
			EmbeddingModel: cfg.EmbeddingModel,
			Dimensions:     cfg.EmbeddingDimensions,
			Timeout:        cfg.ProviderTimeout,
		})
	case "openai":
		backend, err = NewOpenAIBackend(OpenAIConfig{
			Provider:       "openai",
			APIKey:         cfg.OpenAIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			EmbeddingModel: cfg.EmbeddingModel,
			Dimensions:     cfg.EmbeddingDimensions,
			Timeout:        cfg.ProviderTimeout,
		})
	case "openrouter":
		backend, err = NewOpenAIBackend(OpenAIConfig{
			Provider:       "openrouter",
			APIKey:         cfg.OpenRouterKey,
			BaseURL:        openRouterBaseURL,
			EmbeddingModel: cfg.EmbeddingModel,
			Dimensions:     cfg.EmbeddingDimensions,
			Timeout:        cfg.ProviderTimeout,
		})
	case "azure_openai":
		backend, err = NewOpenAIBackend(OpenAIConfig{
			Provider:        "azure_openai",
			APIKey:          cfg.AzureKey,
			BaseURL:         cfg.AzureEndpoint,
			EmbeddingModel:  cfg.EmbeddingModel,
			Dimensions:      cfg.EmbeddingDimensions,
			Timeout:         cfg.ProviderTimeout,
			Azure:           true,
			AzureAPIVersion: cfg.AzureAPIVersion,
		})
	case "gemini":
		backend, err = NewGeminiBackend(ctx, GeminiConfig{
			APIKey:         cfg.GeminiKey,
			EmbeddingModel: cfg.EmbeddingModel,
			Dimensions:     cfg.EmbeddingDimensions,
			Timeout:        cfg.ProviderTimeout,
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", apperr.ErrInvalidConfig, cfg.EmbeddingProvider)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidConfig, cfg.EmbeddingProvider, err)
	}
	return WithDimensionCheck(WithRetry(backend, cfg.ProviderRetries, retryBaseDelay), cfg.EmbeddingDimensions), nil
}

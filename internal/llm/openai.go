// ABOUTME: OpenAI-compatible adapter for chat, streaming and embeddings
// ABOUTME: Serves openai, openrouter, claude (compat endpoint) and azure_openai through go-openai
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend talks to any OpenAI-compatible API
type OpenAIBackend struct {
	client         *openai.Client
	provider       string
	chatModel      string
	embeddingModel string
	dimensions     int
	timeout        time.Duration
}

// OpenAIConfig holds configuration for an OpenAI-compatible backend
type OpenAIConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Dimensions     int
	Timeout        time.Duration

	// Azure deployments
	Azure           bool
	AzureAPIVersion string
}

// NewOpenAIBackend creates a backend from config
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Provider)
	}

	var clientCfg openai.ClientConfig
	if cfg.Azure {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%s endpoint is required", cfg.Provider)
		}
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.AzureAPIVersion != "" {
			clientCfg.APIVersion = cfg.AzureAPIVersion
		}
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIBackend{
		client:         openai.NewClientWithConfig(clientCfg),
		provider:       cfg.Provider,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		dimensions:     cfg.Dimensions,
		timeout:        timeout,
	}, nil
}

func (b *OpenAIBackend) Name() string { return b.provider }

// Model returns the chat model, or the embedding model for embedding-only backends
func (b *OpenAIBackend) Model() string {
	if b.chatModel != "" {
		return b.chatModel
	}
	return b.embeddingModel
}

func (b *OpenAIBackend) Dimensions() int { return b.dimensions }

// Embed generates a single embedding vector
func (b *OpenAIBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for several texts in one request
func (b *OpenAIBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(b.embeddingModel),
	}
	// Only the v3 family accepts a requested output size
	if strings.HasPrefix(b.embeddingModel, "text-embedding-3") && b.dimensions > 0 {
		req.Dimensions = b.dimensions
	}

	resp, err := b.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classify(b.provider, "embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, classify(b.provider, "embed", fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, classify(b.provider, "embed", fmt.Errorf("embedding index %d out of range", d.Index))
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (b *OpenAIBackend) request(messages []Message, opts Options) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       b.chatModel,
		Messages:    msgs,
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}
}

// Converse sends a blocking chat completion
func (b *OpenAIBackend) Converse(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.client.CreateChatCompletion(ctx, b.request(messages, opts))
	if err != nil {
		return nil, classify(b.provider, "chat", err)
	}
	if len(resp.Choices) == 0 {
		return nil, classify(b.provider, "chat", errors.New("no choices returned"))
	}

	model := resp.Model
	if model == "" {
		model = b.chatModel
	}
	return &Completion{
		Text:         resp.Choices[0].Message.Content,
		Model:        model,
		Provider:     b.provider,
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

// ConverseStream opens a streamed chat completion. The timeout bounds the
// whole stream; Close cancels it.
func (b *OpenAIBackend) ConverseStream(ctx context.Context, messages []Message, opts Options) (Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)

	req := b.request(messages, opts)
	req.Stream = true
	stream, err := b.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		cancel()
		return nil, classify(b.provider, "chat_stream", err)
	}
	return &openAIStream{stream: stream, cancel: cancel, provider: b.provider}, nil
}

// HealthCheck lists models to verify connectivity and credentials
func (b *OpenAIBackend) HealthCheck(ctx context.Context) bool {
	_, err := b.client.ListModels(ctx)
	return err == nil
}

type openAIStream struct {
	stream   *openai.ChatCompletionStream
	cancel   context.CancelFunc
	provider string
	once     sync.Once
}

func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", classify(s.provider, "chat_stream", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *openAIStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.stream.Close()
		s.cancel()
	})
	return err
}

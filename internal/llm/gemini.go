// ABOUTME: Gemini adapter for chat, streaming and embeddings via google.golang.org/genai
// ABOUTME: System messages are passed as SystemInstruction, assistant turns use the model role
package llm

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
	"time"

	"google.golang.org/genai"
)

// GeminiBackend implements both provider contracts on the Gemini API
type GeminiBackend struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	dimensions     int
	timeout        time.Duration
}

// GeminiConfig holds configuration for the Gemini backend
type GeminiConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Dimensions     int
	Timeout        time.Duration
}

// NewGeminiBackend creates a Gemini client
func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiBackend{
		client:         client,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		dimensions:     cfg.Dimensions,
		timeout:        timeout,
	}, nil
}

func (b *GeminiBackend) Name() string { return "gemini" }

func (b *GeminiBackend) Model() string {
	if b.chatModel != "" {
		return b.chatModel
	}
	return b.embeddingModel
}

func (b *GeminiBackend) Dimensions() int { return b.dimensions }

func (b *GeminiBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (b *GeminiBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	var cfg *genai.EmbedContentConfig
	if b.dimensions > 0 {
		cfg = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(int32(b.dimensions))}
	}

	resp, err := b.client.Models.EmbedContent(ctx, b.embeddingModel, contents, cfg)
	if err != nil {
		return nil, classify("gemini", "embed", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, classify("gemini", "embed", errors.New("embedding count does not match input"))
	}
	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (b *GeminiBackend) prepare(messages []Message, opts Options) ([]*genai.Content, *genai.GenerateContentConfig) {
	system, rest := splitSystem(messages)
	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(opts.Temperature)),
		MaxOutputTokens: int32(opts.MaxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return contents, cfg
}

func (b *GeminiBackend) Converse(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	contents, cfg := b.prepare(messages, opts)
	resp, err := b.client.Models.GenerateContent(ctx, b.chatModel, contents, cfg)
	if err != nil {
		return nil, classify("gemini", "chat", err)
	}

	c := &Completion{Text: resp.Text(), Model: b.chatModel, Provider: "gemini"}
	if resp.ModelVersion != "" {
		c.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		c.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	if len(resp.Candidates) > 0 {
		c.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	return c, nil
}

func (b *GeminiBackend) ConverseStream(ctx context.Context, messages []Message, opts Options) (Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	contents, cfg := b.prepare(messages, opts)
	next, stop := iter.Pull2(b.client.Models.GenerateContentStream(ctx, b.chatModel, contents, cfg))
	return &geminiStream{next: next, stop: stop, cancel: cancel}, nil
}

// HealthCheck fetches model metadata for the configured model
func (b *GeminiBackend) HealthCheck(ctx context.Context) bool {
	_, err := b.client.Models.Get(ctx, b.Model(), nil)
	return err == nil
}

type geminiStream struct {
	next   func() (*genai.GenerateContentResponse, error, bool)
	stop   func()
	cancel context.CancelFunc
	once   sync.Once
}

func (s *geminiStream) Recv() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", classify("gemini", "chat_stream", err)
		}
		if text := resp.Text(); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() error {
	s.once.Do(func() {
		s.stop()
		s.cancel()
	})
	return nil
}

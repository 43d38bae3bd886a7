// ABOUTME: Native Ollama adapter over its HTTP API
// ABOUTME: /api/chat (blocking and NDJSON streaming), /api/embeddings and /api/tags health
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// OllamaBackend implements both provider contracts against a local Ollama server
type OllamaBackend struct {
	host           string
	chatModel      string
	embeddingModel string
	dimensions     int
	timeout        time.Duration
	httpClient     *http.Client
}

// OllamaConfig holds configuration for the Ollama backend
type OllamaConfig struct {
	Host           string
	ChatModel      string
	EmbeddingModel string
	Dimensions     int
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// NewOllamaBackend creates an Ollama backend
func NewOllamaBackend(cfg OllamaConfig) *OllamaBackend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &OllamaBackend{
		host:           strings.TrimRight(cfg.Host, "/"),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		dimensions:     cfg.Dimensions,
		timeout:        timeout,
		httpClient:     client,
	}
}

func (b *OllamaBackend) Name() string { return "ollama" }

func (b *OllamaBackend) Model() string {
	if b.chatModel != "" {
		return b.chatModel
	}
	return b.embeddingModel
}

func (b *OllamaBackend) Dimensions() int { return b.dimensions }

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	DoneReason      string  `json:"done_reason"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	Error           string  `json:"error"`
}

// post sends a JSON body and returns the response, mapping non-2xx to errors
func (b *OllamaBackend) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &httpStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}

func (b *OllamaBackend) Converse(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.post(ctx, "/api/chat", ollamaChatRequest{
		Model:    b.chatModel,
		Messages: messages,
		Options:  ollamaOptions{Temperature: opts.Temperature, NumPredict: opts.MaxTokens},
	})
	if err != nil {
		return nil, classify("ollama", "chat", err)
	}
	defer resp.Body.Close()

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, classify("ollama", "chat", fmt.Errorf("decoding response: %w", err))
	}
	if out.Error != "" {
		return nil, classify("ollama", "chat", errors.New(out.Error))
	}

	model := out.Model
	if model == "" {
		model = b.chatModel
	}
	return &Completion{
		Text:         out.Message.Content,
		Model:        model,
		Provider:     "ollama",
		TokensUsed:   out.PromptEvalCount + out.EvalCount,
		FinishReason: out.DoneReason,
	}, nil
}

func (b *OllamaBackend) ConverseStream(ctx context.Context, messages []Message, opts Options) (Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)

	resp, err := b.post(ctx, "/api/chat", ollamaChatRequest{
		Model:    b.chatModel,
		Messages: messages,
		Stream:   true,
		Options:  ollamaOptions{Temperature: opts.Temperature, NumPredict: opts.MaxTokens},
	})
	if err != nil {
		cancel()
		return nil, classify("ollama", "chat_stream", err)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	return &ollamaStream{body: resp.Body, scanner: scanner, cancel: cancel}, nil
}

type ollamaStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
	done    bool
	once    sync.Once
}

func (s *ollamaStream) Recv() (string, error) {
	for !s.done && s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", classify("ollama", "chat_stream", fmt.Errorf("decoding chunk: %w", err))
		}
		if chunk.Error != "" {
			return "", classify("ollama", "chat_stream", errors.New(chunk.Error))
		}
		if chunk.Done {
			s.done = true
		}
		if chunk.Message.Content != "" {
			return chunk.Message.Content, nil
		}
	}
	if err := s.scanner.Err(); err != nil && !s.done {
		return "", classify("ollama", "chat_stream", err)
	}
	return "", io.EOF
}

func (s *ollamaStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.body.Close()
		s.cancel()
	})
	return err
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (b *OllamaBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.post(ctx, "/api/embeddings", ollamaEmbeddingRequest{Model: b.embeddingModel, Prompt: text})
	if err != nil {
		return nil, classify("ollama", "embed", err)
	}
	defer resp.Body.Close()

	var out ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, classify("ollama", "embed", fmt.Errorf("decoding response: %w", err))
	}
	if len(out.Embedding) == 0 {
		return nil, classify("ollama", "embed", errors.New("empty embedding returned"))
	}
	return out.Embedding, nil
}

// EmbedBatch embeds texts one at a time; the legacy endpoint takes a single prompt
func (b *OllamaBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		vec, err := b.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

// HealthCheck reports whether the server is up and the configured model is pulled
func (b *OllamaBackend) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}

	want := modelBaseName(b.Model())
	for _, m := range tags.Models {
		if modelBaseName(m.Name) == want {
			return true
		}
	}
	return false
}

// modelBaseName strips the tag: "llama3:8b" -> "llama3"
func modelBaseName(name string) string {
	if i := strings.Index(name, ":"); i >= 0 {
		return name[:i]
	}
	return name
}

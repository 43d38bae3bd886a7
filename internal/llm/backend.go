// ABOUTME: Provider contracts for embedding and language model backends
// ABOUTME: Concrete adapters (ollama, openai family, gemini) are chosen by the factory
package llm

import (
	"context"
)

// Chat roles understood by every adapter
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one provider-neutral chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are per-call generation settings
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Completion is the result of a blocking Converse call
type Completion struct {
	Text         string
	Model        string
	Provider     string
	TokensUsed   int
	FinishReason string
}

// Stream yields generated text incrementally. Recv returns io.EOF once the
// provider finishes. Close releases the underlying connection and is safe to
// call more than once.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// EmbeddingBackend turns text into vectors of a fixed dimension
type EmbeddingBackend interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	HealthCheck(ctx context.Context) bool
	Name() string
	Model() string
	Dimensions() int
}

// LanguageModelBackend generates replies, blocking or streamed
type LanguageModelBackend interface {
	Converse(ctx context.Context, messages []Message, opts Options) (*Completion, error)
	ConverseStream(ctx context.Context, messages []Message, opts Options) (Stream, error)
	HealthCheck(ctx context.Context) bool
	Name() string
	Model() string
}

// splitSystem separates system messages from the conversation for providers
// that take the system prompt out of band.
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// ABOUTME: Tests for the OpenAI-compatible adapter against an httptest server
// ABOUTME: Covers chat, SSE streaming, embeddings, dimension checks and status mapping
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harper/bible-chat/internal/apperr"
)

func newOpenAITestBackend(t *testing.T, handler http.HandlerFunc) *OpenAIBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend, err := NewOpenAIBackend(OpenAIConfig{
		Provider:       "openai",
		APIKey:         "test-key",
		BaseURL:        srv.URL + "/v1",
		ChatModel:      "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		Dimensions:     3,
		Timeout:        2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenAIBackend() failed: %v", err)
	}
	return backend
}

func TestNewOpenAIBackend_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIBackend(OpenAIConfig{Provider: "openai"}); err == nil {
		t.Error("expected error for missing API key")
	}
	if _, err := NewOpenAIBackend(OpenAIConfig{Provider: "azure_openai", APIKey: "k", Azure: true}); err == nil {
		t.Error("expected error for missing azure endpoint")
	}
}

func TestOpenAI_Converse(t *testing.T) {
	backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["max_tokens"] != float64(128) {
			t.Errorf("max_tokens = %v, want 128", body["max_tokens"])
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","model":"gpt-4o-mini-2024","choices":[{"index":0,"message":{"role":"assistant","content":"Grace and peace."},"finish_reason":"stop"}],"usage":{"total_tokens":42}}`)
	})

	resp, err := backend.Converse(context.Background(), []Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleUser, Content: "hello"},
	}, Options{Temperature: 0.7, MaxTokens: 128})
	if err != nil {
		t.Fatalf("Converse() failed: %v", err)
	}
	if resp.Text != "Grace and peace." {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Model != "gpt-4o-mini-2024" {
		t.Errorf("Model = %q, want server-reported model", resp.Model)
	}
	if resp.TokensUsed != 42 || resp.FinishReason != "stop" {
		t.Errorf("TokensUsed/FinishReason = %d/%s", resp.TokensUsed, resp.FinishReason)
	}
}

func TestOpenAI_ConverseStream(t *testing.T) {
	backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Fear ", "not"} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := backend.ConverseStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	if err != nil {
		t.Fatalf("ConverseStream() failed: %v", err)
	}
	defer stream.Close()

	var got string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv() failed: %v", err)
		}
		got += chunk
	}
	if got != "Fear not" {
		t.Errorf("streamed text = %q, want %q", got, "Fear not")
	}
}

func TestOpenAI_EmbedBatch(t *testing.T) {
	backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %s, want /v1/embeddings", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["dimensions"] != float64(3) {
			t.Errorf("dimensions = %v, want 3", body["dimensions"])
		}
		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose: index decides placement
		fmt.Fprint(w, `{"object":"list","data":[{"index":1,"embedding":[0,1,0]},{"index":0,"embedding":[1,0,0]}]}`)
	})

	vecs, err := backend.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch() failed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("EmbedBatch() = %v, want index-ordered vectors", vecs)
	}
}

func TestOpenAI_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, apperr.ErrProviderAuth},
		{http.StatusTooManyRequests, apperr.ErrProviderRateLimited},
		{http.StatusBadGateway, apperr.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":{"message":"nope","type":"invalid_request_error"}}`)
			})
			_, err := backend.Converse(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, Options{})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDimensionGuard(t *testing.T) {
	backend := newOpenAITestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1,0,0,0]}]}`)
	})

	guarded := WithDimensionCheck(backend, 3)
	_, err := guarded.Embed(context.Background(), "x")
	if !errors.Is(err, apperr.ErrEmbeddingDimensionMismatch) {
		t.Fatalf("error = %v, want ErrEmbeddingDimensionMismatch", err)
	}
	var dm *apperr.DimensionMismatchError
	if !errors.As(err, &dm) || dm.Expected != 3 || dm.Got != 4 {
		t.Errorf("mismatch = %+v, want expected 3 got 4", dm)
	}
	if apperr.IsProviderFailure(err) {
		t.Error("dimension mismatch must not be treated as a recoverable provider failure")
	}
	if guarded.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d, want 3", guarded.Dimensions())
	}
}

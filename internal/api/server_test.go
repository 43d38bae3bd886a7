// ABOUTME: Tests for the HTTP API over an in-memory corpus and scripted providers
// ABOUTME: Covers status mapping, SSE framing, websocket chat and scripture routes
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harper/bible-chat/internal/app"
	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/config"
	"github.com/harper/bible-chat/internal/llm"
	"github.com/harper/bible-chat/internal/models"
	"github.com/harper/bible-chat/internal/storage/sqlite"
)

type stubEmbedder struct{ err error }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (s *stubEmbedder) HealthCheck(ctx context.Context) bool { return s.err == nil }
func (s *stubEmbedder) Name() string                         { return "stub" }
func (s *stubEmbedder) Model() string                        { return "stub-embed" }
func (s *stubEmbedder) Dimensions() int                      { return 2 }

type stubModel struct {
	reply  string
	chunks []string
	err    error

	mu       sync.Mutex
	block    bool
	messages []llm.Message
	streams  []*stubStream
}

func (s *stubModel) Converse(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Completion, error) {
	s.record(messages)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Completion{Text: s.reply, Provider: "stub", Model: "stub-chat"}, nil
}

func (s *stubModel) ConverseStream(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Stream, error) {
	s.record(messages)
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stream := &stubStream{ctx: ctx, chunks: append([]string(nil), s.chunks...), block: s.block}
	s.streams = append(s.streams, stream)
	return stream, nil
}

func (s *stubModel) HealthCheck(ctx context.Context) bool { return s.err == nil }
func (s *stubModel) Name() string                         { return "stub" }
func (s *stubModel) Model() string                        { return "stub-chat" }

func (s *stubModel) record(messages []llm.Message) {
	s.mu.Lock()
	s.messages = messages
	s.mu.Unlock()
}

func (s *stubModel) setBlock(block bool) {
	s.mu.Lock()
	s.block = block
	s.mu.Unlock()
}

// systemPrompt returns the system message of the last provider call
func (s *stubModel) systemPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.Role == llm.RoleSystem {
			return m.Content
		}
	}
	return ""
}

func (s *stubModel) stream(i int) *stubStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.streams) {
		return nil
	}
	return s.streams[i]
}

// stubStream yields its chunks, then io.EOF, or waits for cancellation when block is set
type stubStream struct {
	ctx    context.Context
	chunks []string
	block  bool
	closed atomic.Bool
}

func (s *stubStream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if len(s.chunks) == 0 {
		if s.block {
			<-s.ctx.Done()
			return "", s.ctx.Err()
		}
		return "", io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *stubStream) Close() error {
	s.closed.Store(true)
	return nil
}

func newTestServer(t *testing.T, model *stubModel) *Server {
	t.Helper()

	store, err := sqlite.OpenStoreInMemory()
	if err != nil {
		t.Fatalf("OpenStoreInMemory() error = %v", err)
	}
	ctx := context.Background()
	for _, tr := range []models.Translation{
		{Code: "web", Name: "World English Bible", Language: "English", LanguageCode: "en", IsDefault: true},
		{Code: "ita1927", Name: "Riveduta 1927", Language: "Italian", LanguageCode: "it"},
	} {
		if err := store.UpsertTranslation(ctx, tr); err != nil {
			t.Fatalf("UpsertTranslation(%s) error = %v", tr.Code, err)
		}
	}
	for _, v := range []models.Verse{
		{Book: "John", Chapter: 3, Verse: 15, Translation: "web", Text: "that whoever believes in him should not perish."},
		{Book: "John", Chapter: 3, Verse: 16, Translation: "web", Text: "For God so loved the world.", Embedding: []float32{1, 0}},
		{Book: "John", Chapter: 3, Verse: 17, Translation: "web", Text: "For God didn't send his Son into the world to judge the world."},
		{Book: "John", Chapter: 3, Verse: 16, Translation: "ita1927", Text: "Poiché Iddio ha tanto amato il mondo.", Embedding: []float32{1, 0}},
	} {
		if _, err := store.InsertVerse(ctx, v); err != nil {
			t.Fatalf("InsertVerse(%s) error = %v", v.Reference(), err)
		}
	}

	a, err := app.Assemble(ctx, config.Defaults(), store, &stubEmbedder{}, model)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return NewServer(a, "test")
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("response is not JSON: %q (%v)", rec.Body.String(), err)
	}
	return v
}

func TestHealthRoutes(t *testing.T) {
	s := newTestServer(t, &stubModel{})

	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/health", http.StatusOK, `"status":"healthy"`},
		{"/health/live", http.StatusOK, `"alive"`},
		{"/health/ready", http.StatusOK, `"ready"`},
		{"/", http.StatusOK, `"bible-chat"`},
		{"/api/v1/config", http.StatusOK, `"defaultTranslation":"web"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.path, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body = %s, want it to contain %s", rec.Body.String(), tt.want)
			}
		})
	}
}

func TestHealth_ModelDownIsDegradedButServing(t *testing.T) {
	s := newTestServer(t, &stubModel{err: apperr.ErrProviderUnavailable})

	rec := do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	report := decode[app.HealthReport](t, rec)
	if report.Status != app.StatusDegraded {
		t.Errorf("status = %q, want degraded", report.Status)
	}
}

func TestChat(t *testing.T) {
	s := newTestServer(t, &stubModel{reply: "As John 3:16 says, you are loved."})

	rec := do(t, s, http.MethodPost, "/api/v1/chat", `{"message":"I feel alone"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("response has no request id")
	}

	resp := decode[models.ChatResponse](t, rec)
	if resp.Message != "As John 3:16 says, you are loved." {
		t.Errorf("message = %q", resp.Message)
	}
	if len(resp.VersesCited) != 1 || resp.VersesCited[0] != "John 3:16" {
		t.Errorf("versesCited = %v, want [John 3:16]", resp.VersesCited)
	}
	if resp.ScriptureContext == nil || len(resp.ScriptureContext.Verses) != 1 {
		t.Errorf("scriptureContext = %+v, want one verse (search on by default)", resp.ScriptureContext)
	}
	if resp.DetectedTranslation != "web" {
		t.Errorf("detectedTranslation = %q, want web", resp.DetectedTranslation)
	}
	if resp.TranslationInfo == nil || resp.TranslationInfo.Name != "World English Bible" {
		t.Errorf("translationInfo = %+v, want World English Bible", resp.TranslationInfo)
	}
}

func TestChat_SearchDisabled(t *testing.T) {
	s := newTestServer(t, &stubModel{reply: "Peace."})

	rec := do(t, s, http.MethodPost, "/api/v1/chat", `{"message":"hello","includeSearch":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if resp := decode[models.ChatResponse](t, rec); resp.ScriptureContext != nil {
		t.Errorf("scriptureContext = %+v, want none", resp.ScriptureContext)
	}
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name   string
		model  *stubModel
		body   string
		status int
		want   string
	}{
		{"empty message", &stubModel{}, `{"message":"  "}`, http.StatusBadRequest, "message"},
		{"malformed body", &stubModel{}, `{"message":`, http.StatusBadRequest, "invalid chat request"},
		{"unknown translation", &stubModel{}, `{"message":"hi","preferredTranslation":"xx999"}`, http.StatusBadRequest, "xx999"},
		{"rate limited", &stubModel{err: apperr.NewProviderError("openai", "chat", apperr.ErrProviderRateLimited, 429, errors.New("slow down"))}, `{"message":"hi"}`, http.StatusTooManyRequests, "too many requests"},
		{"provider down", &stubModel{err: apperr.ErrProviderUnavailable}, `{"message":"hi"}`, http.StatusServiceUnavailable, "temporarily unavailable"},
		{"bad credentials", &stubModel{err: apperr.ErrProviderAuth}, `{"message":"hi"}`, http.StatusBadGateway, "not available"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.model)
			rec := do(t, s, http.MethodPost, "/api/v1/chat", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			body := decode[ErrorBody](t, rec)
			if !strings.Contains(body.Error, tt.want) {
				t.Errorf("error = %q, want it to contain %q", body.Error, tt.want)
			}
		})
	}
}

func TestChatStream_SSE(t *testing.T) {
	s := newTestServer(t, &stubModel{chunks: []string{"Remember ", "John 3:16", "."}})

	rec := do(t, s, http.MethodPost, "/api/v1/chat/stream", `{"message":"I feel alone"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	var events []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		if line, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
			events = append(events, line)
		}
	}
	if len(events) != 5 {
		t.Fatalf("got %d events, want 3 chunks + done + [DONE]: %v", len(events), events)
	}
	if events[0] != `{"content":"Remember "}` {
		t.Errorf("first event = %s", events[0])
	}
	if events[4] != "[DONE]" {
		t.Errorf("last event = %s, want [DONE]", events[4])
	}

	var done doneFrame
	if err := json.Unmarshal([]byte(events[3]), &done); err != nil {
		t.Fatalf("done frame is not JSON: %v", err)
	}
	if !done.Done || done.MessageID == "" {
		t.Errorf("done frame = %+v", done)
	}
	if len(done.VersesCited) != 1 || done.VersesCited[0] != "John 3:16" {
		t.Errorf("versesCited = %v, want [John 3:16]", done.VersesCited)
	}
}

func TestChatStream_OpenFailureIsPlainError(t *testing.T) {
	s := newTestServer(t, &stubModel{err: apperr.ErrProviderUnavailable})

	rec := do(t, s, http.MethodPost, "/api/v1/chat/stream", `{"message":"hi"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestExplainVerse(t *testing.T) {
	s := newTestServer(t, &stubModel{reply: "John 3:16 is about love."})

	rec := do(t, s, http.MethodGet, "/api/v1/chat/verse/John/3/16", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if resp := decode[models.ChatResponse](t, rec); resp.Message != "John 3:16 is about love." {
		t.Errorf("message = %q", resp.Message)
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/chat/verse/John/three/16", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric chapter status = %d, want 400", rec.Code)
	}
}

func TestScriptureSearch(t *testing.T) {
	s := newTestServer(t, &stubModel{})

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		verses int
	}{
		{"get", http.MethodGet, "/api/v1/scripture/search?q=love&translation=web", "", http.StatusOK, 1},
		{"no passages", http.MethodGet, "/api/v1/scripture/search?q=love&max_passages=0", "", http.StatusOK, 2},
		{"post", http.MethodPost, "/api/v1/scripture/search", `{"query":"love","translation":"ita1927"}`, http.StatusOK, 1},
		{"query too short", http.MethodGet, "/api/v1/scripture/search?q=a", "", http.StatusBadRequest, 0},
		{"too many verses", http.MethodGet, "/api/v1/scripture/search?q=love&max_verses=21", "", http.StatusBadRequest, 0},
		{"too many passages", http.MethodGet, "/api/v1/scripture/search?q=love&max_passages=6", "", http.StatusBadRequest, 0},
		{"unknown translation", http.MethodGet, "/api/v1/scripture/search?q=love&translation=xx999", "", http.StatusBadRequest, 0},
		{"text", http.MethodGet, "/api/v1/scripture/search/text?q=loved&translation=web", "", http.StatusOK, 1},
		{"text limit", http.MethodGet, "/api/v1/scripture/search/text?q=loved&limit=101", "", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			var resp struct {
				Verses []models.SearchResult `json:"verses"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("bad JSON: %v", err)
			}
			if len(resp.Verses) != tt.verses {
				t.Errorf("got %d verses, want %d", len(resp.Verses), tt.verses)
			}
		})
	}
}

func TestScriptureLookups(t *testing.T) {
	s := newTestServer(t, &stubModel{})

	tests := []struct {
		name      string
		target    string
		status    int
		reference string
	}{
		{"verse", "/api/v1/scripture/verse/John/3/16", http.StatusOK, "John 3:16"},
		{"localized verse", "/api/v1/scripture/verse/John/3/16?translation=ita1927", http.StatusOK, "Giovanni 3:16"},
		{"missing verse", "/api/v1/scripture/verse/John/3/99", http.StatusNotFound, ""},
		{"unknown book", "/api/v1/scripture/verse/Hezekiah/1/1", http.StatusNotFound, ""},
		{"zero chapter", "/api/v1/scripture/verse/John/0/1", http.StatusBadRequest, ""},
		{"chapter", "/api/v1/scripture/chapter/John/3", http.StatusOK, "John 3:15-17"},
		{"range", "/api/v1/scripture/range/John/3/15/16", http.StatusOK, "John 3:15-16"},
		{"backwards range", "/api/v1/scripture/range/John/3/17/15", http.StatusBadRequest, ""},
		{"context", "/api/v1/scripture/context/John/3/16?size=1", http.StatusOK, "John 3:15-17"},
		{"context too wide", "/api/v1/scripture/context/John/3/16?size=11", http.StatusBadRequest, ""},
		{"reference", "/api/v1/scripture/reference?ref=John+3:16-17", http.StatusOK, "John 3:16-17"},
		{"bad reference", "/api/v1/scripture/reference?ref=not+a+verse", http.StatusBadRequest, ""},
		{"unknown translation", "/api/v1/scripture/verse/John/3/16?translation=xx999", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.target, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.reference == "" {
				return
			}
			if l := decode[struct {
				Reference string `json:"reference"`
			}](t, rec); l.Reference != tt.reference {
				t.Errorf("reference = %q, want %q", l.Reference, tt.reference)
			}
		})
	}
}

func TestScriptureListings(t *testing.T) {
	s := newTestServer(t, &stubModel{})

	rec := do(t, s, http.MethodGet, "/api/v1/scripture/translations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("translations status = %d", rec.Code)
	}
	translations := decode[struct {
		Translations []models.Translation `json:"translations"`
		Default      string               `json:"default"`
	}](t, rec)
	if len(translations.Translations) != 2 || translations.Default != "web" {
		t.Errorf("translations = %+v", translations)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/scripture/books", "")
	books := decode[struct {
		Count int `json:"count"`
	}](t, rec)
	if books.Count != 66 {
		t.Errorf("books count = %d, want 66", books.Count)
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/scripture/stats", ""); rec.Code != http.StatusOK {
		t.Errorf("stats status = %d", rec.Code)
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	s := newTestServer(t, &stubModel{})

	rec := do(t, s, http.MethodGet, "/api/v1/nothing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decode[ErrorBody](t, rec); body.Error != "Not Found" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperr.NewValidation("q", "too short"), http.StatusBadRequest},
		{"translation", &apperr.TranslationNotFoundError{Code: "zz"}, http.StatusBadRequest},
		{"not found", apperr.NewNotFound("verse", "John 3:99"), http.StatusNotFound},
		{"dimension mismatch", &apperr.DimensionMismatchError{Expected: 768, Got: 1536}, http.StatusInternalServerError},
		{"model mismatch", fmt.Errorf("%w: web", apperr.ErrEmbeddingModelMismatch), http.StatusInternalServerError},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"raw rate limit", apperr.ErrProviderRateLimited, http.StatusTooManyRequests},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorStatus(tt.err)
			if status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
			if status == http.StatusInternalServerError && strings.Contains(body.Error, "1536") {
				t.Errorf("internal detail leaked: %q", body.Error)
			}
		})
	}
}

func dialWS(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/chat/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

type wsReply struct {
	Type        string   `json:"type"`
	Content     string   `json:"content"`
	Error       string   `json:"error"`
	VersesCited []string `json:"versesCited"`
	MessageID   string   `json:"messageId"`
}

func TestChatWS(t *testing.T) {
	s := newTestServer(t, &stubModel{chunks: []string{"Remember ", "John 3:16", "."}})
	conn := dialWS(t, s)

	for round := range 2 {
		if err := conn.WriteJSON(map[string]string{"message": "I feel alone"}); err != nil {
			t.Fatalf("WriteJSON() error = %v", err)
		}

		var text strings.Builder
		for {
			var frame wsReply
			if err := conn.ReadJSON(&frame); err != nil {
				t.Fatalf("round %d: ReadJSON() error = %v", round, err)
			}
			if frame.Type == FrameChunk {
				text.WriteString(frame.Content)
				continue
			}
			if frame.Type != FrameDone {
				t.Fatalf("round %d: frame type = %q (%s), want done", round, frame.Type, frame.Error)
			}
			if frame.MessageID == "" || len(frame.VersesCited) != 1 {
				t.Errorf("round %d: done frame = %+v", round, frame)
			}
			break
		}
		if text.String() != "Remember John 3:16." {
			t.Errorf("round %d: text = %q", round, text.String())
		}
	}
}

func TestChatWS_ErrorFrame(t *testing.T) {
	s := newTestServer(t, &stubModel{})
	conn := dialWS(t, s)

	if err := conn.WriteJSON(map[string]string{"message": "hi", "preferredTranslation": "xx999"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var frame wsReply
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if frame.Type != FrameError || !strings.Contains(frame.Error, "xx999") {
		t.Errorf("frame = %+v, want error naming xx999", frame)
	}
}

// readWSReply reads frames until a non-chunk frame, returning it and the joined chunk text
func readWSReply(t *testing.T, conn *websocket.Conn) (wsReply, string) {
	t.Helper()
	var text strings.Builder
	for {
		var frame wsReply
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if frame.Type != FrameChunk {
			return frame, text.String()
		}
		text.WriteString(frame.Content)
	}
}

func TestChatWS_GroundedByDefault(t *testing.T) {
	tests := []struct {
		name          string
		request       map[string]any
		wantScripture bool
	}{
		{"includeSearch omitted", map[string]any{"message": "I feel alone"}, true},
		{"includeSearch true", map[string]any{"message": "I feel alone", "includeSearch": true}, true},
		{"includeSearch false", map[string]any{"message": "I feel alone", "includeSearch": false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &stubModel{chunks: []string{"Peace."}}
			conn := dialWS(t, newTestServer(t, model))

			if err := conn.WriteJSON(tt.request); err != nil {
				t.Fatalf("WriteJSON() error = %v", err)
			}
			if frame, _ := readWSReply(t, conn); frame.Type != FrameDone {
				t.Fatalf("frame = %+v, want done", frame)
			}

			got := strings.Contains(model.systemPrompt(), "## Scripture Context")
			if got != tt.wantScripture {
				t.Errorf("scripture context in prompt = %v, want %v", got, tt.wantScripture)
			}
		})
	}
}

func TestChatWS_SameGroundingAsSSE(t *testing.T) {
	wsModel := &stubModel{chunks: []string{"Peace."}}
	conn := dialWS(t, newTestServer(t, wsModel))
	if err := conn.WriteJSON(map[string]string{"message": "I feel alone"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	readWSReply(t, conn)

	sseModel := &stubModel{chunks: []string{"Peace."}}
	rec := do(t, newTestServer(t, sseModel), http.MethodPost, "/api/v1/chat/stream", `{"message":"I feel alone"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("sse status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if ws, sse := wsModel.systemPrompt(), sseModel.systemPrompt(); ws != sse {
		t.Errorf("websocket and SSE prompts differ:\nws:  %q\nsse: %q", ws, sse)
	}
}

func TestChatWS_Cancel(t *testing.T) {
	model := &stubModel{chunks: []string{"Be still, "}, block: true}
	conn := dialWS(t, newTestServer(t, model))

	if err := conn.WriteJSON(map[string]string{"message": "I am anxious"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var first wsReply
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if first.Type != FrameChunk || first.Content != "Be still, " {
		t.Fatalf("first frame = %+v, want the first chunk", first)
	}

	model.setBlock(false)
	if err := conn.WriteJSON(map[string]string{"type": "cancel"}); err != nil {
		t.Fatalf("WriteJSON(cancel) error = %v", err)
	}
	frame, _ := readWSReply(t, conn)
	if frame.Type != FrameCancelled {
		t.Fatalf("frame = %+v, want cancelled", frame)
	}
	if frame.MessageID == "" {
		t.Error("cancelled frame should carry the message id")
	}

	stream := model.stream(0)
	deadline := time.Now().Add(2 * time.Second)
	for !stream.closed.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !stream.closed.Load() {
		t.Error("provider stream was not closed after cancel")
	}

	if err := conn.WriteJSON(map[string]string{"message": "And now?"}); err != nil {
		t.Fatalf("WriteJSON() second request error = %v", err)
	}
	frame, text := readWSReply(t, conn)
	if frame.Type != FrameDone || text != "Be still, " {
		t.Errorf("second request: frame = %+v text = %q, want done with the full reply", frame, text)
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		allowed []string
		origin  string
		want    bool
	}{
		{[]string{"*"}, "https://evil.example", true},
		{[]string{"https://app.example"}, "https://app.example", true},
		{[]string{"https://app.example"}, "https://evil.example", false},
		{[]string{"https://app.example"}, "", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/chat/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := originChecker(tt.allowed)(r); got != tt.want {
			t.Errorf("originChecker(%v)(%q) = %v, want %v", tt.allowed, tt.origin, got, tt.want)
		}
	}
}

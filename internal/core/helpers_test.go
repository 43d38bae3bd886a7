// ABOUTME: Shared fixtures for core tests: mock provider backends and an in-memory corpus
// ABOUTME: Verse vectors are chosen so similarity to the query vector is exactly known
package core

import (
	"context"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/harper/bible-chat/internal/llm"
	"github.com/harper/bible-chat/internal/models"
	"github.com/harper/bible-chat/internal/storage/sqlite"
)

// queryVector is what mockEmbedder returns for every text
var queryVector = []float32{1, 0}

// unit returns a unit vector whose cosine similarity to queryVector is s
func unit(s float64) []float32 {
	return []float32{float32(s), float32(math.Sqrt(1 - s*s))}
}

type mockEmbedder struct {
	err   error
	model string
	calls atomic.Int32
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return append([]float32(nil), queryVector...), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) HealthCheck(ctx context.Context) bool { return m.err == nil }
func (m *mockEmbedder) Name() string                         { return "mock" }
func (m *mockEmbedder) Dimensions() int                      { return len(queryVector) }
func (m *mockEmbedder) Model() string {
	if m.model == "" {
		return "mock-embed"
	}
	return m.model
}

// mockModel is a scripted language model. Streams yield chunks, then either
// io.EOF, recvErr, or (when block is set) wait for cancellation.
type mockModel struct {
	reply     string
	err       error
	streamErr error
	chunks    []string
	recvErr   error
	block     bool

	mu       sync.Mutex
	messages []llm.Message
	streams  []*mockStream
}

func (m *mockModel) Converse(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Completion, error) {
	m.mu.Lock()
	m.messages = messages
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Completion{Text: m.reply, Model: "mock-chat-v1", Provider: "mock", FinishReason: "stop"}, nil
}

func (m *mockModel) ConverseStream(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = messages
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	s := &mockStream{ctx: ctx, chunks: m.chunks, recvErr: m.recvErr, block: m.block}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *mockModel) HealthCheck(ctx context.Context) bool { return m.err == nil }
func (m *mockModel) Name() string                         { return "mock" }
func (m *mockModel) Model() string                        { return "mock-chat" }

func (m *mockModel) lastMessages() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages
}

func (m *mockModel) lastStream() *mockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

type mockStream struct {
	ctx     context.Context
	chunks  []string
	next    int
	recvErr error
	block   bool
	closed  atomic.Int32
}

func (s *mockStream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.next < len(s.chunks) {
		chunk := s.chunks[s.next]
		s.next++
		return chunk, nil
	}
	if s.recvErr != nil {
		return "", s.recvErr
	}
	if s.block {
		<-s.ctx.Done()
		return "", s.ctx.Err()
	}
	return "", io.EOF
}

func (s *mockStream) Close() error {
	s.closed.Add(1)
	return nil
}

// newCorpus builds an in-memory corpus. Against queryVector, web verses
// score John 3:16 = 0.9, Psalms 23:1 = 0.6 and Genesis 1:1 = 0.3.
func newCorpus(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.OpenStoreInMemory()
	if err != nil {
		t.Fatalf("OpenStoreInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	translations := []models.Translation{
		{Code: "web", Name: "World English Bible", ShortName: "WEB", Language: "English", LanguageCode: "en", IsDefault: true},
		{Code: "kjv", Name: "King James Version", ShortName: "KJV", Language: "English", LanguageCode: "en"},
		{Code: "ita1927", Name: "Riveduta 1927", ShortName: "Riveduta", Language: "Italian", LanguageCode: "it"},
		{Code: "schlachter", Name: "Schlachter 1951", ShortName: "Schlachter", Language: "German", LanguageCode: "de", EmbeddingModel: "text-embedding-3-small"},
	}
	for _, tr := range translations {
		if err := store.UpsertTranslation(ctx, tr); err != nil {
			t.Fatalf("UpsertTranslation(%s) error = %v", tr.Code, err)
		}
	}

	verses := []models.Verse{
		{Book: "John", Chapter: 3, Verse: 16, Translation: "web", Text: "For God so loved the world, that he gave his one and only Son.", Embedding: unit(0.9)},
		{Book: "Psalms", Chapter: 23, Verse: 1, Translation: "web", Text: "Yahweh is my shepherd: I shall lack nothing.", Embedding: unit(0.6)},
		{Book: "Genesis", Chapter: 1, Verse: 1, Translation: "web", Text: "In the beginning, God created the heavens and the earth.", Embedding: unit(0.3)},
		{Book: "John", Chapter: 3, Verse: 15, Translation: "web", Text: "that whoever believes in him should not perish, but have eternal life."},
		{Book: "John", Chapter: 3, Verse: 17, Translation: "web", Text: "For God didn't send his Son into the world to judge the world."},
		{Book: "John", Chapter: 3, Verse: 16, Translation: "kjv", Text: "For God so loved the world, that he gave his only begotten Son.", Embedding: unit(0.9)},
		{Book: "John", Chapter: 3, Verse: 16, Translation: "ita1927", Text: "Poiché Iddio ha tanto amato il mondo.", Embedding: unit(0.9)},
		{Book: "John", Chapter: 3, Verse: 16, Translation: "schlachter", Text: "Denn so sehr hat Gott die Welt geliebt.", Embedding: unit(0.9)},
	}
	for _, v := range verses {
		if _, err := store.InsertVerse(ctx, v); err != nil {
			t.Fatalf("InsertVerse(%s) error = %v", v.Reference(), err)
		}
	}

	passage := models.Passage{
		Title: "The Good Shepherd", Book: "Psalms", StartChapter: 23, StartVerse: 1, EndChapter: 23, EndVerse: 6,
		Text: "Yahweh is my shepherd: I shall lack nothing.", Topics: []string{"comfort"}, Embedding: unit(0.8),
	}
	if _, err := store.InsertPassage(ctx, passage); err != nil {
		t.Fatalf("InsertPassage() error = %v", err)
	}
	return store
}

type fixture struct {
	store     *sqlite.Store
	catalog   *Catalog
	embedder  *mockEmbedder
	model     *mockModel
	search    *SearchService
	scripture *ScriptureService
	chat      *ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    newCorpus(t),
		embedder: &mockEmbedder{},
		model:    &mockModel{reply: "Take heart. As John 3:16 reminds us, you are loved."},
	}

	catalog, err := LoadCatalog(context.Background(), f.store)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	f.catalog = catalog
	f.search = NewSearchService(f.store, f.embedder, catalog, 0.35)
	f.scripture = NewScriptureService(f.store, catalog)
	f.chat = NewChatService(
		NewResolver(catalog, NewKeywordDetector(), "web"),
		f.search,
		f.scripture,
		f.model,
		ChatConfig{MaxHistory: 10, MaxVerses: 5, MaxPassages: 2, Threshold: 0.35, Temperature: 0.7, MaxTokens: 512},
	)
	return f
}

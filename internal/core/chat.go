// ABOUTME: Chat orchestrator: resolve translation, search, assemble prompt, call the language model
// ABOUTME: Blocking Chat, cancellable ChatStream and ExplainVerse share one preparation path
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/citation"
	"github.com/harper/bible-chat/internal/llm"
	"github.com/harper/bible-chat/internal/logging"
	"github.com/harper/bible-chat/internal/models"
)

// explainContextSize is how many verses either side ExplainVerse includes
const explainContextSize = 3

// RequestState tracks one chat request through the orchestrator
type RequestState string

const (
	StateIdle                RequestState = "idle"
	StateTranslationResolved RequestState = "translation_resolved"
	StateSearchCompleted     RequestState = "search_completed"
	StateSearchSkipped       RequestState = "search_skipped"
	StateSearchDegraded      RequestState = "search_degraded"
	StatePromptAssembled     RequestState = "prompt_assembled"
	StateModelInvoked        RequestState = "model_invoked"
	StateCompleted           RequestState = "completed"
	StateFailed              RequestState = "failed"
)

// Terminal reports whether no further transitions follow
func (s RequestState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

type stateTracker struct {
	ctx       context.Context
	messageID string
	mu        sync.Mutex
	state     RequestState
}

func newStateTracker(ctx context.Context, messageID string) *stateTracker {
	return &stateTracker{ctx: ctx, messageID: messageID, state: StateIdle}
}

func (t *stateTracker) transition(next RequestState) {
	t.mu.Lock()
	prev := t.state
	t.state = next
	t.mu.Unlock()
	logging.FromContext(t.ctx).Debug("chat_state", "message_id", t.messageID, "from", prev, "to", next)
}

func (t *stateTracker) current() RequestState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// ChatConfig holds the orchestrator's per-deployment settings
type ChatConfig struct {
	MaxHistory  int
	MaxVerses   int
	MaxPassages int
	Threshold   float64
	Temperature float64
	MaxTokens   int
}

// ChatRequest is one user message plus caller-owned history
type ChatRequest struct {
	Message              string                    `json:"message"`
	History              []models.ConversationTurn `json:"conversationHistory"`
	IncludeSearch        bool                      `json:"includeSearch"`
	PreferredTranslation string                    `json:"preferredTranslation,omitempty"`
	StoredPreference     string                    `json:"storedPreference,omitempty"`
}

// ExplainRequest asks the model to explain one verse in its context
type ExplainRequest struct {
	Book        string `json:"book"`
	Chapter     int    `json:"chapter"`
	Verse       int    `json:"verse"`
	Translation string `json:"translation,omitempty"`
	Question    string `json:"question,omitempty"`
}

// ChatService orchestrates grounded chat. It keeps no conversation state.
type ChatService struct {
	resolver  *Resolver
	search    *SearchService
	scripture *ScriptureService
	model     llm.LanguageModelBackend
	cfg       ChatConfig
}

// NewChatService wires the orchestrator. A nil search service disables retrieval.
func NewChatService(resolver *Resolver, search *SearchService, scripture *ScriptureService, model llm.LanguageModelBackend, cfg ChatConfig) *ChatService {
	return &ChatService{resolver: resolver, search: search, scripture: scripture, model: model, cfg: cfg}
}

type preparedChat struct {
	messageID  string
	resolution Resolution
	search     *SearchResponse
	messages   []llm.Message
	tracker    *stateTracker
}

func (p *preparedChat) scriptureContext() *models.ScriptureContext {
	if p.search == nil {
		return nil
	}
	return &models.ScriptureContext{
		Query:    p.search.Query,
		Verses:   p.search.Verses,
		Passages: p.search.Passages,
		Degraded: p.search.Degraded,
	}
}

func (p *preparedChat) response(text, provider, model string) *models.ChatResponse {
	return &models.ChatResponse{
		Message:             text,
		ScriptureContext:    p.scriptureContext(),
		DetectedTranslation: p.resolution.Code,
		TranslationInfo:     p.resolution.Translation.Info(),
		VersesCited:         citation.Extract(text),
		Provider:            provider,
		Model:               model,
		MessageID:           p.messageID,
	}
}

func (s *ChatService) prepare(ctx context.Context, req ChatRequest) (*preparedChat, error) {
	p := &preparedChat{messageID: uuid.NewString()}
	p.tracker = newStateTracker(ctx, p.messageID)

	message := strings.TrimSpace(req.Message)
	if message == "" {
		p.tracker.transition(StateFailed)
		return nil, apperr.NewValidation("message", "cannot be empty")
	}
	for i, turn := range req.History {
		if err := turn.Validate(); err != nil {
			p.tracker.transition(StateFailed)
			return nil, apperr.NewValidation(fmt.Sprintf("conversationHistory[%d]", i), err.Error())
		}
	}

	resolution, err := s.resolver.Resolve(ctx, ResolveInput{
		Explicit:         req.PreferredTranslation,
		Message:          message,
		StoredPreference: req.StoredPreference,
	})
	if err != nil {
		p.tracker.transition(StateFailed)
		return nil, err
	}
	p.resolution = resolution
	p.tracker.transition(StateTranslationResolved)

	if req.IncludeSearch && s.search != nil {
		search, err := s.runSearch(ctx, message, resolution.Code)
		if err != nil {
			p.tracker.transition(StateFailed)
			return nil, err
		}
		p.search = search
		if search.Degraded {
			p.tracker.transition(StateSearchDegraded)
		} else {
			p.tracker.transition(StateSearchCompleted)
		}
	} else {
		p.tracker.transition(StateSearchSkipped)
	}

	p.messages = BuildMessages(PromptInput{
		Message:    message,
		History:    req.History,
		MaxHistory: s.cfg.MaxHistory,
		Language:   resolution.Language,
		Search:     p.search,
	})
	p.tracker.transition(StatePromptAssembled)
	return p, nil
}

// runSearch degrades every failure except cancellation and fatal configuration errors
func (s *ChatService) runSearch(ctx context.Context, message, translation string) (*SearchResponse, error) {
	req := SearchRequest{
		Query:       message,
		Translation: translation,
		MaxVerses:   s.cfg.MaxVerses,
		MaxPassages: s.cfg.MaxPassages,
		Threshold:   s.cfg.Threshold,
	}
	resp, err := s.search.Search(ctx, req)
	if err == nil {
		return resp, nil
	}
	if apperr.IsFatal(err) || ctx.Err() != nil {
		return nil, err
	}

	logging.FromContext(ctx).Warn("search_failed_continuing_without_context", "error", err)
	return &SearchResponse{
		Query:       message,
		Translation: translation,
		Verses:      []models.SearchResult{},
		Passages:    []models.SearchResult{},
		Degraded:    true,
	}, nil
}

func (s *ChatService) options() llm.Options {
	return llm.Options{Temperature: s.cfg.Temperature, MaxTokens: s.cfg.MaxTokens}
}

// Chat answers one message and returns the packaged response
func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*models.ChatResponse, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, p)
}

func (s *ChatService) complete(ctx context.Context, p *preparedChat) (*models.ChatResponse, error) {
	p.tracker.transition(StateModelInvoked)
	completion, err := s.model.Converse(ctx, p.messages, s.options())
	if err != nil {
		p.tracker.transition(StateFailed)
		logging.FromContext(ctx).Error("chat_failed", "message_id", p.messageID, "provider", s.model.Name(), "error", err)
		return nil, userFacing(err)
	}
	p.tracker.transition(StateCompleted)

	provider, model := completion.Provider, completion.Model
	if provider == "" {
		provider = s.model.Name()
	}
	if model == "" {
		model = s.model.Model()
	}
	return p.response(completion.Text, provider, model), nil
}

// ExplainVerse looks up a verse with surrounding context and asks the model to explain it
func (s *ChatService) ExplainVerse(ctx context.Context, req ExplainRequest) (*models.ChatResponse, error) {
	resolution, err := s.resolver.Resolve(ctx, ResolveInput{Explicit: req.Translation})
	if err != nil {
		return nil, err
	}
	lookup, err := s.scripture.Context(ctx, req.Book, req.Chapter, req.Verse, explainContextSize, resolution.Code)
	if err != nil {
		return nil, err
	}

	messageID := uuid.NewString()
	tracker := newStateTracker(ctx, messageID)
	tracker.transition(StateTranslationResolved)

	verses := make([]models.SearchResult, len(lookup.Verses))
	for i, v := range lookup.Verses {
		verses[i] = models.VerseResult(v, 1)
	}
	search := &SearchResponse{
		Query:       lookup.Reference,
		Translation: resolution.Code,
		Verses:      verses,
		Passages:    []models.SearchResult{},
	}
	tracker.transition(StateSearchCompleted)

	target := models.FormatReference(lookup.Book, req.Chapter, req.Verse, 0, 0)
	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = fmt.Sprintf("Please explain %s.", target)
	}

	p := &preparedChat{
		messageID:  messageID,
		resolution: resolution,
		search:     search,
		tracker:    tracker,
		messages: BuildMessages(PromptInput{
			Message:  question,
			Language: resolution.Language,
			Search:   search,
			Extra:    VerseExplanationPrompt,
		}),
	}
	tracker.transition(StatePromptAssembled)
	return s.complete(ctx, p)
}

// StreamMeta is known before the first chunk arrives
type StreamMeta struct {
	MessageID        string                   `json:"messageId"`
	Translation      string                   `json:"detectedTranslation"`
	TranslationInfo  *models.TranslationInfo  `json:"translationInfo,omitempty"`
	ScriptureContext *models.ScriptureContext `json:"scriptureContext,omitempty"`
	Provider         string                   `json:"provider"`
	Model            string                   `json:"model"`
}

// ChatStream delivers generated text chunk by chunk. Chunks is closed when
// generation ends, fails or is cancelled; Err then reports why. Close stops
// generation early and releases the provider connection.
type ChatStream struct {
	chunks chan string
	done   chan struct{}
	cancel context.CancelFunc
	meta   StreamMeta
	p      *preparedChat

	// written only by run, read after done is closed
	text strings.Builder
	err  error
}

// ChatStream starts a streamed chat. Errors before the first chunk (bad
// input, unknown translation, unreachable model) are returned directly.
func (s *ChatService) ChatStream(ctx context.Context, req ChatRequest) (*ChatStream, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	p.tracker.transition(StateModelInvoked)
	stream, err := s.model.ConverseStream(streamCtx, p.messages, s.options())
	if err != nil {
		cancel()
		p.tracker.transition(StateFailed)
		logging.FromContext(ctx).Error("chat_stream_failed", "message_id", p.messageID, "provider", s.model.Name(), "error", err)
		return nil, userFacing(err)
	}

	cs := &ChatStream{
		chunks: make(chan string),
		done:   make(chan struct{}),
		cancel: cancel,
		p:      p,
		meta: StreamMeta{
			MessageID:        p.messageID,
			Translation:      p.resolution.Code,
			TranslationInfo:  p.resolution.Translation.Info(),
			ScriptureContext: p.scriptureContext(),
			Provider:         s.model.Name(),
			Model:            s.model.Model(),
		},
	}
	go cs.run(streamCtx, stream)
	return cs, nil
}

// run is the only reader and the only closer of the provider stream
func (c *ChatStream) run(ctx context.Context, stream llm.Stream) {
	defer close(c.done)
	defer close(c.chunks)
	defer func() { _ = stream.Close() }()

	logger := logging.FromContext(ctx)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			c.p.tracker.transition(StateCompleted)
			return
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				c.err = ctxErr
			} else {
				logger.Error("chat_stream_failed", "message_id", c.meta.MessageID, "error", err)
				c.err = userFacing(err)
			}
			c.p.tracker.transition(StateFailed)
			return
		}
		if chunk == "" {
			continue
		}
		if ctx.Err() != nil {
			c.err = ctx.Err()
			c.p.tracker.transition(StateFailed)
			return
		}

		select {
		case c.chunks <- chunk:
			c.text.WriteString(chunk)
		case <-ctx.Done():
			c.err = ctx.Err()
			c.p.tracker.transition(StateFailed)
			return
		}
	}
}

// Chunks yields generated text. The channel is unbuffered.
func (c *ChatStream) Chunks() <-chan string { return c.chunks }

// Meta returns the message id, translation and retrieval of this stream
func (c *ChatStream) Meta() StreamMeta { return c.meta }

// Err waits for the stream to end and reports why it stopped. It is nil
// after a complete generation. Callers must drain Chunks or call Close first.
func (c *ChatStream) Err() error {
	<-c.done
	return c.err
}

// Result waits for the stream to end and packages the full response with
// citations. Callers must drain Chunks or call Close first.
func (c *ChatStream) Result() (*models.ChatResponse, error) {
	<-c.done
	if c.err != nil {
		return nil, c.err
	}
	return c.p.response(c.text.String(), c.meta.Provider, c.meta.Model), nil
}

// Close cancels generation and waits until the provider stream is released.
// It is safe to call more than once.
func (c *ChatStream) Close() error {
	c.cancel()
	<-c.done
	return nil
}

// State reports where the request currently is
func (c *ChatStream) State() RequestState { return c.p.tracker.current() }

// userFacing converts a language model failure into a message safe to show
// callers. Cancellation passes through unchanged.
func userFacing(err error) error {
	switch {
	case errors.Is(err, apperr.ErrProviderAuth):
		return &apperr.UserFacingError{
			Message: "The assistant is not available right now.",
			Hint:    "language model rejected credentials",
			Err:     err,
		}
	case errors.Is(err, apperr.ErrProviderRateLimited):
		return &apperr.UserFacingError{
			Message: "The assistant is receiving too many requests. Please try again shortly.",
			Hint:    "language model is rate limiting requests",
			Err:     err,
		}
	case errors.Is(err, apperr.ErrProviderUnavailable):
		return &apperr.UserFacingError{
			Message: "The assistant is temporarily unavailable. Please try again later.",
			Hint:    "language model backend unreachable",
			Err:     err,
		}
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &apperr.UserFacingError{
			Message: "The assistant could not answer this message.",
			Hint:    "language model request failed",
			Err:     err,
		}
	}
}

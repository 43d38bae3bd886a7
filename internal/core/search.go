// ABOUTME: Scripture search service: embed the query, then search verse and passage pools concurrently
// ABOUTME: Embedding outages degrade to an empty result instead of failing the request
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/llm"
	"github.com/harper/bible-chat/internal/logging"
	"github.com/harper/bible-chat/internal/models"
	"github.com/harper/bible-chat/internal/storage"
)

// Search limits
const (
	DefaultMaxVerses    = 5
	DefaultMaxPassages  = 2
	MaxVersesLimit      = 20
	MaxPassagesLimit    = 5
	DefaultTextLimit    = 20
	MaxTextLimit        = 100
	DefaultSimThreshold = 0.35
)

// SearchRequest asks for the closest verses and passages to Query.
// MaxVerses 0 means DefaultMaxVerses; MaxPassages 0 skips the passage pool.
// Threshold 0 means the service default. Translation "" searches every translation.
type SearchRequest struct {
	Query       string  `json:"query"`
	Translation string  `json:"translation,omitempty"`
	MaxVerses   int     `json:"maxVerses,omitempty"`
	MaxPassages int     `json:"maxPassages,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// NewSearchRequest returns a request with the default limits
func NewSearchRequest(query, translation string) SearchRequest {
	return SearchRequest{
		Query:       query,
		Translation: translation,
		MaxVerses:   DefaultMaxVerses,
		MaxPassages: DefaultMaxPassages,
	}
}

// SearchResponse holds the ranked results of one search. Slices are never nil.
// Degraded is set when the query could not be embedded.
type SearchResponse struct {
	Query       string                `json:"query"`
	Translation string                `json:"translation,omitempty"`
	Verses      []models.SearchResult `json:"verses"`
	Passages    []models.SearchResult `json:"passages"`
	Degraded    bool                  `json:"degraded,omitempty"`
}

// SearchService runs semantic and text search over the corpus. It holds no
// per-request state and is safe for concurrent use.
type SearchService struct {
	repo      storage.Repository
	embedder  llm.EmbeddingBackend
	catalog   *Catalog
	threshold float64
}

// NewSearchService creates a search service. A nil catalog skips translation
// validation. threshold <= 0 uses DefaultSimThreshold.
func NewSearchService(repo storage.Repository, embedder llm.EmbeddingBackend, catalog *Catalog, threshold float64) *SearchService {
	if threshold <= 0 {
		threshold = DefaultSimThreshold
	}
	return &SearchService{repo: repo, embedder: embedder, catalog: catalog, threshold: threshold}
}

// Threshold returns the default similarity threshold
func (s *SearchService) Threshold() float64 { return s.threshold }

// Search embeds the query and returns the closest verses and passages.
// Provider failures while embedding yield an empty, degraded response and a
// nil error. Dimension or model mismatches are returned.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	req = s.normalize(req)
	if req.Query == "" {
		return nil, apperr.NewValidation("query", "cannot be empty")
	}
	if err := s.checkTranslation(req.Translation); err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)
	resp := &SearchResponse{
		Query:       req.Query,
		Translation: req.Translation,
		Verses:      []models.SearchResult{},
		Passages:    []models.SearchResult{},
	}

	start := time.Now()
	vector, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		if apperr.IsFatal(err) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !apperr.IsProviderFailure(err) {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		logger.Warn("search_degraded", "reason", "embedding unavailable", "provider", s.embedder.Name(), "error", err)
		resp.Degraded = true
		return resp, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		verses, err := s.repo.SearchBySimilarity(gctx, storage.SimilarityQuery{
			Vector:      vector,
			Kind:        models.KindVerse,
			Translation: req.Translation,
			Limit:       req.MaxVerses,
			Threshold:   req.Threshold,
		})
		if err != nil {
			return fmt.Errorf("searching verses: %w", err)
		}
		resp.Verses = localize(verses, req.Translation)
		return nil
	})
	if req.MaxPassages > 0 {
		g.Go(func() error {
			passages, err := s.repo.SearchBySimilarity(gctx, storage.SimilarityQuery{
				Vector:      vector,
				Kind:        models.KindPassage,
				Translation: req.Translation,
				Limit:       req.MaxPassages,
				Threshold:   req.Threshold,
			})
			if err != nil {
				return fmt.Errorf("searching passages: %w", err)
			}
			resp.Passages = localize(passages, req.Translation)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Debug("search_completed",
		"translation", req.Translation,
		"verses", len(resp.Verses),
		"passages", len(resp.Passages),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

// TextSearch is the substring fallback. limit <= 0 uses DefaultTextLimit.
func (s *SearchService) TextSearch(ctx context.Context, pattern, translation string, limit int) (*SearchResponse, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, apperr.NewValidation("query", "cannot be empty")
	}
	translation = normalizeCode(translation)
	if s.catalog != nil && translation != "" {
		if _, ok := s.catalog.Get(translation); !ok {
			return nil, &apperr.TranslationNotFoundError{Code: translation}
		}
	}
	if limit <= 0 {
		limit = DefaultTextLimit
	}
	if limit > MaxTextLimit {
		limit = MaxTextLimit
	}

	verses, err := s.repo.SearchByText(ctx, pattern, translation, limit)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	return &SearchResponse{
		Query:       pattern,
		Translation: translation,
		Verses:      localize(verses, translation),
		Passages:    []models.SearchResult{},
	}, nil
}

func (s *SearchService) normalize(req SearchRequest) SearchRequest {
	req.Query = strings.TrimSpace(req.Query)
	req.Translation = normalizeCode(req.Translation)

	switch {
	case req.MaxVerses <= 0:
		req.MaxVerses = DefaultMaxVerses
	case req.MaxVerses > MaxVersesLimit:
		req.MaxVerses = MaxVersesLimit
	}
	switch {
	case req.MaxPassages < 0:
		req.MaxPassages = 0
	case req.MaxPassages > MaxPassagesLimit:
		req.MaxPassages = MaxPassagesLimit
	}
	if req.Threshold <= 0 {
		req.Threshold = s.threshold
	}
	return req
}

// checkTranslation rejects unknown codes and translations embedded with a
// different model than the one configured.
func (s *SearchService) checkTranslation(code string) error {
	if s.catalog == nil || code == "" {
		return nil
	}
	t, ok := s.catalog.Get(code)
	if !ok {
		return &apperr.TranslationNotFoundError{Code: code}
	}
	if t.EmbeddingModel != "" && t.EmbeddingModel != s.embedder.Model() {
		return fmt.Errorf("%w: %s was embedded with %s, configured model is %s",
			apperr.ErrEmbeddingModelMismatch, code, t.EmbeddingModel, s.embedder.Model())
	}
	return nil
}

// localize rewrites references with the book names of each result's
// translation. Shared passages take the requested translation's names.
func localize(results []models.SearchResult, requested string) []models.SearchResult {
	out := make([]models.SearchResult, len(results))
	for i, r := range results {
		translation := r.Translation
		if translation == "" {
			translation = requested
		}
		book := models.LocalizedBookName(r.Book, translation)
		r.Reference = models.FormatReference(book, r.Chapter, r.Verse, r.EndChapter, r.EndVerse)
		out[i] = r
	}
	return out
}

// ABOUTME: Scripture repository contract shared by the sqlite, postgres and qdrant backends
// ABOUTME: Hybrid composes a vector index with a relational corpus store
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/harper/bible-chat/internal/models"
)

// SimilarityQuery describes one nearest-neighbour search against a single pool
type SimilarityQuery struct {
	Vector      []float32
	Kind        models.ResultKind
	Translation string // empty searches every translation
	Limit       int
	Threshold   float64
}

// Repository is the read-only view of the corpus the core depends on.
// Every implementation returns similarity results ranked by Rank.
type Repository interface {
	SearchBySimilarity(ctx context.Context, q SimilarityQuery) ([]models.SearchResult, error)
	SearchByText(ctx context.Context, pattern, translation string, limit int) ([]models.SearchResult, error)

	GetVerse(ctx context.Context, book string, chapter, verse int, translation string) (*models.Verse, error)
	GetVerseRange(ctx context.Context, book string, chapter, start, end int, translation string) ([]models.Verse, error)
	GetChapter(ctx context.Context, book string, chapter int, translation string) ([]models.Verse, error)
	GetContext(ctx context.Context, book string, chapter, verse, size int, translation string) ([]models.Verse, error)

	ListBooks(ctx context.Context) ([]models.Book, error)
	ListTranslations(ctx context.Context) ([]models.Translation, error)
	Stats(ctx context.Context) (*models.CorpusStats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Writer loads corpus content. The sqlite and postgres stores implement it.
type Writer interface {
	UpsertTranslation(ctx context.Context, t models.Translation) error
	InsertVerse(ctx context.Context, v models.Verse) (int64, error)
	InsertPassage(ctx context.Context, p models.Passage) (int64, error)
}

// VectorIndex is a similarity-only index such as qdrant
type VectorIndex interface {
	SearchBySimilarity(ctx context.Context, q SimilarityQuery) ([]models.SearchResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// Hybrid serves similarity search from a vector index and everything else
// from the relational corpus.
type Hybrid struct {
	Repository
	index VectorIndex
}

// NewHybrid composes a relational corpus with a vector index
func NewHybrid(corpus Repository, index VectorIndex) *Hybrid {
	return &Hybrid{Repository: corpus, index: index}
}

func (h *Hybrid) SearchBySimilarity(ctx context.Context, q SimilarityQuery) ([]models.SearchResult, error) {
	return h.index.SearchBySimilarity(ctx, q)
}

func (h *Hybrid) Ping(ctx context.Context) error {
	return errors.Join(h.Repository.Ping(ctx), h.index.Ping(ctx))
}

func (h *Hybrid) Close() error {
	return errors.Join(h.index.Close(), h.Repository.Close())
}

// SplitTopics parses the comma-separated topics column
func SplitTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// JoinTopics renders topics for the comma-separated topics column
func JoinTopics(topics []string) string {
	return strings.Join(topics, ",")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// LikePattern builds a lower-cased substring pattern for LIKE ... ESCAPE '\'
func LikePattern(pattern string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(pattern)) + "%"
}

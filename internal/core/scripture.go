// ABOUTME: Verse, range, chapter and context lookups with localized book names
// ABOUTME: Also exposes the book list, corpus stats and translation catalog to transports
package core

import (
	"context"
	"strings"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/citation"
	"github.com/harper/bible-chat/internal/models"
	"github.com/harper/bible-chat/internal/storage"
)

// Lookup is the result of a verse, range or chapter lookup. Book and each
// verse's Book carry the translation's localized name.
type Lookup struct {
	Reference       string         `json:"reference"`
	Book            string         `json:"book"`
	Chapter         int            `json:"chapter"`
	Translation     string         `json:"translation"`
	TranslationName string         `json:"translationName"`
	Text            string         `json:"text"`
	Verses          []models.Verse `json:"verses"`
}

// ScriptureService serves direct corpus lookups
type ScriptureService struct {
	repo    storage.Repository
	catalog *Catalog
}

// NewScriptureService creates a lookup service over repo
func NewScriptureService(repo storage.Repository, catalog *Catalog) *ScriptureService {
	return &ScriptureService{repo: repo, catalog: catalog}
}

// Verse returns one verse
func (s *ScriptureService) Verse(ctx context.Context, book string, chapter, verse int, translation string) (*Lookup, error) {
	t, err := s.translation(translation)
	if err != nil {
		return nil, err
	}
	if err := validatePosition(chapter, verse); err != nil {
		return nil, err
	}
	v, err := s.repo.GetVerse(ctx, book, chapter, verse, t.Code)
	if err != nil {
		return nil, err
	}
	return s.lookup(t, []models.Verse{*v}), nil
}

// Range returns verses start..end of one chapter
func (s *ScriptureService) Range(ctx context.Context, book string, chapter, start, end int, translation string) (*Lookup, error) {
	t, err := s.translation(translation)
	if err != nil {
		return nil, err
	}
	if err := validatePosition(chapter, start); err != nil {
		return nil, err
	}
	verses, err := s.repo.GetVerseRange(ctx, book, chapter, start, end, t.Code)
	if err != nil {
		return nil, err
	}
	return s.lookup(t, verses), nil
}

// Chapter returns every verse of a chapter in order
func (s *ScriptureService) Chapter(ctx context.Context, book string, chapter int, translation string) (*Lookup, error) {
	t, err := s.translation(translation)
	if err != nil {
		return nil, err
	}
	if err := validatePosition(chapter, 1); err != nil {
		return nil, err
	}
	verses, err := s.repo.GetChapter(ctx, book, chapter, t.Code)
	if err != nil {
		return nil, err
	}
	return s.lookup(t, verses), nil
}

// Context returns a verse with size verses either side, clipped to the chapter
func (s *ScriptureService) Context(ctx context.Context, book string, chapter, verse, size int, translation string) (*Lookup, error) {
	t, err := s.translation(translation)
	if err != nil {
		return nil, err
	}
	if err := validatePosition(chapter, verse); err != nil {
		return nil, err
	}
	verses, err := s.repo.GetContext(ctx, book, chapter, verse, size, t.Code)
	if err != nil {
		return nil, err
	}
	return s.lookup(t, verses), nil
}

// maxVersesPerChapter bounds open-ended chapter ranges; Psalm 119 has 176
const maxVersesPerChapter = 200

// Reference parses a written reference such as "Giovanni 3:16" or
// "John 3:16-4:2" and returns its verses.
func (s *ScriptureService) Reference(ctx context.Context, text, translation string) (*Lookup, error) {
	ref, err := citation.Parse(text)
	if err != nil {
		return nil, apperr.NewValidation("reference", err.Error())
	}
	switch {
	case !ref.IsRange():
		return s.Verse(ctx, ref.Canonical, ref.Chapter, ref.Verse, translation)
	case ref.EndChapter == ref.Chapter:
		return s.Range(ctx, ref.Canonical, ref.Chapter, ref.Verse, ref.EndVerse, translation)
	}

	t, err := s.translation(translation)
	if err != nil {
		return nil, err
	}
	var verses []models.Verse
	for ch := ref.Chapter; ch <= ref.EndChapter; ch++ {
		start, end := 1, maxVersesPerChapter
		if ch == ref.Chapter {
			start = ref.Verse
		}
		if ch == ref.EndChapter {
			end = ref.EndVerse
		}
		part, err := s.repo.GetVerseRange(ctx, ref.Canonical, ch, start, end, t.Code)
		if err != nil {
			return nil, err
		}
		verses = append(verses, part...)
	}
	return s.lookup(t, verses), nil
}

// Books lists the canonical books
func (s *ScriptureService) Books(ctx context.Context) ([]models.Book, error) {
	return s.repo.ListBooks(ctx)
}

// Stats summarises the corpus
func (s *ScriptureService) Stats(ctx context.Context) (*models.CorpusStats, error) {
	return s.repo.Stats(ctx)
}

// Translations lists the catalog, default first
func (s *ScriptureService) Translations() []models.Translation {
	return s.catalog.All()
}

func (s *ScriptureService) translation(code string) (models.Translation, error) {
	if code = normalizeCode(code); code == "" {
		code = s.catalog.Default()
	}
	t, ok := s.catalog.Get(code)
	if !ok {
		return models.Translation{}, &apperr.TranslationNotFoundError{Code: code}
	}
	return t, nil
}

func (s *ScriptureService) lookup(t models.Translation, verses []models.Verse) *Lookup {
	out := &Lookup{
		Translation:     t.Code,
		TranslationName: t.Name,
		Verses:          make([]models.Verse, len(verses)),
	}

	texts := make([]string, len(verses))
	for i, v := range verses {
		v.Book = models.LocalizedBookName(v.Book, t.Code)
		out.Verses[i] = v
		texts[i] = v.Text
	}
	out.Text = strings.Join(texts, " ")

	if len(out.Verses) > 0 {
		first, last := out.Verses[0], out.Verses[len(out.Verses)-1]
		out.Book = first.Book
		out.Chapter = first.Chapter
		out.Reference = models.FormatReference(first.Book, first.Chapter, first.Verse, last.Chapter, last.Verse)
	}
	return out
}

func validatePosition(chapter, verse int) error {
	if chapter < 1 {
		return apperr.NewValidation("chapter", "must be positive")
	}
	if verse < 1 {
		return apperr.NewValidation("verse", "must be positive")
	}
	return nil
}

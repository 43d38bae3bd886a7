// ABOUTME: SQLite implementation of the scripture repository
// ABOUTME: Verse and chapter lookups, text search, catalog listing and corpus loading
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/models"
	"github.com/harper/bible-chat/internal/storage"
)

// FallbackTranslation is used when the catalog marks no default
const FallbackTranslation = "web"

// Store is the SQLite scripture repository
type Store struct {
	db *DB
}

var (
	_ storage.Repository = (*Store)(nil)
	_ storage.Writer     = (*Store)(nil)
)

// NewStore wraps an open database
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// OpenStore opens the corpus at path
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// OpenStoreInMemory creates an empty in-memory corpus
func OpenStoreInMemory() (*Store, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

const verseColumns = `b.name, b.position, v.id, v.chapter_number, v.verse_number, v.translation, v.text`

func scanVerses(rows *sql.Rows) ([]models.Verse, error) {
	defer func() { _ = rows.Close() }()

	var verses []models.Verse
	for rows.Next() {
		var v models.Verse
		if err := rows.Scan(&v.Book, &v.BookPosition, &v.ID, &v.Chapter, &v.Verse, &v.Translation, &v.Text); err != nil {
			return nil, err
		}
		verses = append(verses, v)
	}
	return verses, rows.Err()
}

func resolveBook(name string) (models.Book, error) {
	book, ok := models.LookupBook(name)
	if !ok {
		return models.Book{}, apperr.NewNotFound("book", name)
	}
	return book, nil
}

// translationOrDefault returns code, or the catalog default when code is empty
func (s *Store) translationOrDefault(ctx context.Context, code string) (string, error) {
	if code != "" {
		return code, nil
	}
	err := s.db.QueryRow(ctx, `
		SELECT code FROM translations WHERE is_default = 1 ORDER BY code LIMIT 1
	`).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return FallbackTranslation, nil
	}
	return code, err
}

// GetVerse returns a single verse
func (s *Store) GetVerse(ctx context.Context, book string, chapter, verse int, translation string) (*models.Verse, error) {
	b, err := resolveBook(book)
	if err != nil {
		return nil, err
	}
	translation, err = s.translationOrDefault(ctx, translation)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+verseColumns+`
		FROM verses v
		JOIN books b ON b.id = v.book_id
		WHERE v.book_id = ? AND v.chapter_number = ? AND v.verse_number = ? AND v.translation = ?
	`, b.Position, chapter, verse, translation)
	if err != nil {
		return nil, fmt.Errorf("failed to query verse: %w", err)
	}
	verses, err := scanVerses(rows)
	if err != nil {
		return nil, err
	}
	if len(verses) == 0 {
		return nil, apperr.NewNotFound("verse", models.FormatReference(b.Name, chapter, verse, 0, 0)+" ("+translation+")")
	}
	return &verses[0], nil
}

// GetVerseRange returns verses start..end of one chapter in order
func (s *Store) GetVerseRange(ctx context.Context, book string, chapter, start, end int, translation string) ([]models.Verse, error) {
	if start > end {
		return nil, apperr.NewValidation("end", "must not be before start")
	}
	b, err := resolveBook(book)
	if err != nil {
		return nil, err
	}
	translation, err = s.translationOrDefault(ctx, translation)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+verseColumns+`
		FROM verses v
		JOIN books b ON b.id = v.book_id
		WHERE v.book_id = ? AND v.chapter_number = ? AND v.verse_number BETWEEN ? AND ? AND v.translation = ?
		ORDER BY v.verse_number
	`, b.Position, chapter, start, end, translation)
	if err != nil {
		return nil, fmt.Errorf("failed to query verse range: %w", err)
	}
	verses, err := scanVerses(rows)
	if err != nil {
		return nil, err
	}
	if len(verses) == 0 {
		return nil, apperr.NewNotFound("verses", models.FormatReference(b.Name, chapter, start, chapter, end)+" ("+translation+")")
	}
	return verses, nil
}

// GetChapter returns every verse of a chapter in order
func (s *Store) GetChapter(ctx context.Context, book string, chapter int, translation string) ([]models.Verse, error) {
	b, err := resolveBook(book)
	if err != nil {
		return nil, err
	}
	translation, err = s.translationOrDefault(ctx, translation)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+verseColumns+`
		FROM verses v
		JOIN books b ON b.id = v.book_id
		WHERE v.book_id = ? AND v.chapter_number = ? AND v.translation = ?
		ORDER BY v.verse_number
	`, b.Position, chapter, translation)
	if err != nil {
		return nil, fmt.Errorf("failed to query chapter: %w", err)
	}
	verses, err := scanVerses(rows)
	if err != nil {
		return nil, err
	}
	if len(verses) == 0 {
		return nil, apperr.NewNotFound("chapter", fmt.Sprintf("%s %d (%s)", b.Name, chapter, translation))
	}
	return verses, nil
}

// GetContext returns the verse plus up to size verses either side within its chapter
func (s *Store) GetContext(ctx context.Context, book string, chapter, verse, size int, translation string) ([]models.Verse, error) {
	if size < 0 {
		size = 0
	}
	start := verse - size
	if start < 1 {
		start = 1
	}
	return s.GetVerseRange(ctx, book, chapter, start, verse+size, translation)
}

// SearchByText finds verses containing pattern, case-insensitively, in canonical order
func (s *Store) SearchByText(ctx context.Context, pattern, translation string, limit int) ([]models.SearchResult, error) {
	if pattern == "" {
		return nil, apperr.NewValidation("pattern", "must not be empty")
	}
	if limit <= 0 {
		return []models.SearchResult{}, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+verseColumns+`
		FROM verses v
		JOIN books b ON b.id = v.book_id
		WHERE lower(v.text) LIKE ? ESCAPE '\'
		  AND (? = '' OR v.translation = ?)
		ORDER BY b.position, v.chapter_number, v.verse_number, v.translation
		LIMIT ?
	`, storage.LikePattern(pattern), translation, translation, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search verse text: %w", err)
	}
	verses, err := scanVerses(rows)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(verses))
	for _, v := range verses {
		results = append(results, models.VerseResult(v, 0))
	}
	return results, nil
}

// ListBooks returns the canonical books in corpus order
func (s *Store) ListBooks(ctx context.Context) ([]models.Book, error) {
	rows, err := s.db.Query(ctx, `
		SELECT name, abbreviation, testament, position FROM books ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var books []models.Book
	for rows.Next() {
		var b models.Book
		if err := rows.Scan(&b.Name, &b.Abbreviation, &b.Testament, &b.Position); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// ListTranslations returns the catalog, defaults first
func (s *Store) ListTranslations(ctx context.Context) ([]models.Translation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT code, name, short_name, language, language_code, is_default, embedding_model
		FROM translations
		ORDER BY is_default DESC, language_code, code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list translations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var translations []models.Translation
	for rows.Next() {
		var t models.Translation
		if err := rows.Scan(&t.Code, &t.Name, &t.ShortName, &t.Language, &t.LanguageCode, &t.IsDefault, &t.EmbeddingModel); err != nil {
			return nil, err
		}
		translations = append(translations, t)
	}
	return translations, rows.Err()
}

// Stats summarises corpus contents
func (s *Store) Stats(ctx context.Context) (*models.CorpusStats, error) {
	stats := &models.CorpusStats{VersesByTranslation: make(map[string]int)}

	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM books),
			(SELECT COUNT(*) FROM verses),
			(SELECT COUNT(*) FROM verses WHERE embedding IS NOT NULL),
			(SELECT COUNT(*) FROM passages),
			(SELECT COUNT(*) FROM passages WHERE embedding IS NOT NULL)
	`).Scan(&stats.Books, &stats.Verses, &stats.VersesEmbedded, &stats.Passages, &stats.PassagesEmbedded)
	if err != nil {
		return nil, fmt.Errorf("failed to count corpus: %w", err)
	}

	rows, err := s.db.Query(ctx, `SELECT translation, COUNT(*) FROM verses GROUP BY translation`)
	if err != nil {
		return nil, fmt.Errorf("failed to count verses by translation: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			code  string
			count int
		)
		if err := rows.Scan(&code, &count); err != nil {
			return nil, err
		}
		stats.VersesByTranslation[code] = count
	}
	return stats, rows.Err()
}

// UpsertTranslation adds or replaces a catalog entry
func (s *Store) UpsertTranslation(ctx context.Context, t models.Translation) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO translations (code, name, short_name, language, language_code, is_default, embedding_model)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			short_name = excluded.short_name,
			language = excluded.language,
			language_code = excluded.language_code,
			is_default = excluded.is_default,
			embedding_model = excluded.embedding_model
	`, t.Code, t.Name, t.ShortName, t.Language, t.LanguageCode, t.IsDefault, t.EmbeddingModel)
	return err
}

// InsertVerse adds or replaces one verse, keyed by (book, chapter, verse, translation)
func (s *Store) InsertVerse(ctx context.Context, v models.Verse) (int64, error) {
	b, err := resolveBook(v.Book)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.QueryRow(ctx, `
		INSERT INTO verses (book_id, chapter_number, verse_number, translation, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id, chapter_number, verse_number, translation) DO UPDATE SET
			text = excluded.text,
			embedding = excluded.embedding
		RETURNING id
	`, b.Position, v.Chapter, v.Verse, v.Translation, v.Text, VectorToBlob(v.Embedding)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert verse %s: %w", v.Reference(), err)
	}
	return id, nil
}

// InsertPassage adds a passage. An empty translation shares it across every scope.
func (s *Store) InsertPassage(ctx context.Context, p models.Passage) (int64, error) {
	b, err := resolveBook(p.Book)
	if err != nil {
		return 0, err
	}

	var translation any
	if p.Translation != "" {
		translation = p.Translation
	}

	res, err := s.db.Exec(ctx, `
		INSERT INTO passages (title, start_book_id, start_chapter, start_verse, end_chapter, end_verse, text, topics, translation, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Title, b.Position, p.StartChapter, p.StartVerse, p.EndChapter, p.EndVerse, p.Text,
		storage.JoinTopics(p.Topics), translation, VectorToBlob(p.Embedding))
	if err != nil {
		return 0, fmt.Errorf("failed to insert passage %q: %w", p.Title, err)
	}
	return res.LastInsertId()
}

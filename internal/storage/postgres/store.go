// ABOUTME: PostgreSQL + pgvector implementation of the scripture repository
// ABOUTME: Similarity is computed in SQL with the cosine distance operator and re-ranked in Go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/models"
	"github.com/harper/bible-chat/internal/storage"
)

// FallbackTranslation is used when the catalog marks no default
const FallbackTranslation = "web"

// Store is the PostgreSQL scripture repository
type Store struct {
	db *sql.DB
}

var (
	_ storage.Repository = (*Store)(nil)
	_ storage.Writer     = (*Store)(nil)
)

// Open connects to url, creates the schema if needed and seeds the canonical books
func Open(ctx context.Context, url string, dimensions int) (*Store, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx, dimensions); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context, dimensions int) error {
	if _, err := s.db.ExecContext(ctx, Schema(dimensions)); err != nil {
		return err
	}
	for _, b := range models.CanonicalBooks() {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO books (id, name, abbreviation, testament, position)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, b.Position, b.Name, b.Abbreviation, b.Testament, b.Position)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SearchBySimilarity ranks candidates by 1 - cosine distance
func (s *Store) SearchBySimilarity(ctx context.Context, q storage.SimilarityQuery) ([]models.SearchResult, error) {
	if q.Limit <= 0 {
		return []models.SearchResult{}, nil
	}
	vec := pgvector.NewVector(q.Vector)

	switch q.Kind {
	case models.KindVerse, "":
		rows, err := s.db.QueryContext(ctx, `
			SELECT b.name, b.position, v.id, v.chapter_number, v.verse_number, v.translation, v.text,
			       1 - (v.embedding <=> $1) AS similarity
			FROM verses v
			JOIN books b ON b.id = v.book_id
			WHERE v.embedding IS NOT NULL
			  AND ($2 = '' OR v.translation = $2)
			  AND 1 - (v.embedding <=> $1) >= $3
			ORDER BY similarity DESC, b.position, v.chapter_number, v.verse_number, v.translation
			LIMIT $4
		`, vec, q.Translation, q.Threshold, q.Limit)
		if err != nil {
			return nil, fmt.Errorf("failed to search verses: %w", err)
		}
		defer func() { _ = rows.Close() }()

		var results []models.SearchResult
		for rows.Next() {
			var (
				v   models.Verse
				sim float64
			)
			if err := rows.Scan(&v.Book, &v.BookPosition, &v.ID, &v.Chapter, &v.Verse, &v.Translation, &v.Text, &sim); err != nil {
				return nil, err
			}
			results = append(results, models.VerseResult(v, sim))
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return storage.Rank(results, q.Threshold, q.Limit), nil

	case models.KindPassage:
		rows, err := s.db.QueryContext(ctx, `
			SELECT b.name, b.position, p.id, p.title, p.start_chapter, p.start_verse,
			       p.end_chapter, p.end_verse, p.text, p.topics, COALESCE(p.translation, ''),
			       1 - (p.embedding <=> $1) AS similarity
			FROM passages p
			JOIN books b ON b.id = p.start_book_id
			WHERE p.embedding IS NOT NULL
			  AND ($2 = '' OR p.translation IS NULL OR p.translation = '' OR p.translation = $2)
			  AND 1 - (p.embedding <=> $1) >= $3
			ORDER BY similarity DESC, b.position, p.start_chapter, p.start_verse, COALESCE(p.translation, '')
			LIMIT $4
		`, vec, q.Translation, q.Threshold, q.Limit)
		if err != nil {
			return nil, fmt.Errorf("failed to search passages: %w", err)
		}
		defer func() { _ = rows.Close() }()

		var results []models.SearchResult
		for rows.Next() {
			var (
				p      models.Passage
				topics string
				sim    float64
			)
			if err := rows.Scan(&p.Book, &p.BookPosition, &p.ID, &p.Title, &p.StartChapter, &p.StartVerse,
				&p.EndChapter, &p.EndVerse, &p.Text, &topics, &p.Translation, &sim); err != nil {
				return nil, err
			}
			p.Topics = storage.SplitTopics(topics)
			results = append(results, models.PassageResult(p, sim))
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return storage.Rank(results, q.Threshold, q.Limit), nil

	default:
		return nil, fmt.Errorf("unknown result kind %q", q.Kind)
	}
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

func (s *Store) translationOrDefault(ctx context.Context, code string) (string, error) {
	if code != "" {
		return code, nil
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT code FROM translations WHERE is_default ORDER BY code LIMIT 1
	`).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return FallbackTranslation, nil
	}
	return code, err
}

// verseRange loads verses start..end of a chapter; end < 0 means the whole chapter
func (s *Store) verseRange(ctx context.Context, book string, chapter, start, end int, translation string) (models.Book, string, []models.Verse, error) {
	b, ok := models.LookupBook(book)
	if !ok {
		return b, "", nil, apperr.NewNotFound("book", book)
	}
	translation, err := s.translationOrDefault(ctx, translation)
	if err != nil {
		return b, "", nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+verseColumns+`
		FROM verses v
		JOIN books b ON b.id = v.book_id
		WHERE v.book_id = $1 AND v.chapter_number = $2 AND v.translation = $3
		  AND v.verse_number >= $4 AND ($5 < 0 OR v.verse_number <= $5)
		ORDER BY v.verse_number
	`, b.Position, chapter, translation, start, end)
	if err != nil {
		return b, translation, nil, fmt.Errorf("failed to query verses: %w", err)
	}
	verses, err := scanVerses(rows)
	return b, translation, verses, err
}

func (s *Store) GetVerse(ctx context.Context, book string, chapter, verse int, translation string) (*models.Verse, error) {
	b, tr, verses, err := s.verseRange(ctx, book, chapter, verse, verse, translation)
	if err != nil {
		return nil, err
	}
	if len(verses) == 0 {
		return nil, apperr.NewNotFound("verse", models.FormatReference(b.Name, chapter, verse, 0, 0)+" ("+tr+")")
	}
	return &verses[0], nil
}

func (s *Store) GetVerseRange(ctx context.Context, book string, chapter, start, end int, translation string) ([]models.Verse, error) {
	if start > end {
		return nil, apperr.NewValidation("end", "must not be before start")
	}
	b, tr, verses, err := s.verseRange(ctx, book, chapter, start, end, translation)
	if err != nil {
		return nil, err
	}
	if len(verses) == 0 {
		return nil, apperr.NewNotFound("verses", models.FormatReference(b.Name, chapter, start, chapter, end)+" ("+tr+")")
	}
	return verses, nil
}

func (s *Store) GetChapter(ctx context.Context, book string, chapter int, translation string) ([]models.Verse, error) {
	b, tr, verses, err := s.verseRange(ctx, book, chapter, 1, -1, translation)
	if err != nil {
		return nil, err
	}
	if len(verses) == 0 {
		return nil, apperr.NewNotFound("chapter", fmt.Sprintf("%s %d (%s)", b.Name, chapter, tr))
	}
	return verses, nil
}

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

func (s *Store) SearchByText(ctx context.Context, pattern, translation string, limit int) ([]models.SearchResult, error) {
	if pattern == "" {
		return nil, apperr.NewValidation("pattern", "must not be empty")
	}
	if limit <= 0 {
		return []models.SearchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+verseColumns+`
		FROM verses v
		JOIN books b ON b.id = v.book_id
		WHERE v.text ILIKE $1
		  AND ($2 = '' OR v.translation = $2)
		ORDER BY b.position, v.chapter_number, v.verse_number, v.translation
		LIMIT $3
	`, storage.LikePattern(pattern), translation, limit)
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

func (s *Store) ListBooks(ctx context.Context) ([]models.Book, error) {
	rows, err := s.db.QueryContext(ctx, `
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

func (s *Store) ListTranslations(ctx context.Context) ([]models.Translation, error) {
	rows, err := s.db.QueryContext(ctx, `
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

func (s *Store) Stats(ctx context.Context) (*models.CorpusStats, error) {
	stats := &models.CorpusStats{VersesByTranslation: make(map[string]int)}

	err := s.db.QueryRowContext(ctx, `
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

	rows, err := s.db.QueryContext(ctx, `SELECT translation, COUNT(*) FROM verses GROUP BY translation`)
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO translations (code, name, short_name, language, language_code, is_default, embedding_model)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			short_name = EXCLUDED.short_name,
			language = EXCLUDED.language,
			language_code = EXCLUDED.language_code,
			is_default = EXCLUDED.is_default,
			embedding_model = EXCLUDED.embedding_model
	`, t.Code, t.Name, t.ShortName, t.Language, t.LanguageCode, t.IsDefault, t.EmbeddingModel)
	return err
}

// InsertVerse adds or replaces one verse
func (s *Store) InsertVerse(ctx context.Context, v models.Verse) (int64, error) {
	b, ok := models.LookupBook(v.Book)
	if !ok {
		return 0, apperr.NewNotFound("book", v.Book)
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO verses (book_id, chapter_number, verse_number, translation, text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (book_id, chapter_number, verse_number, translation) DO UPDATE SET
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding
		RETURNING id
	`, b.Position, v.Chapter, v.Verse, v.Translation, v.Text, nullableVector(v.Embedding)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert verse %s: %w", v.Reference(), err)
	}
	return id, nil
}

// InsertPassage adds a passage. An empty translation shares it across every scope.
func (s *Store) InsertPassage(ctx context.Context, p models.Passage) (int64, error) {
	b, ok := models.LookupBook(p.Book)
	if !ok {
		return 0, apperr.NewNotFound("book", p.Book)
	}

	var translation any
	if p.Translation != "" {
		translation = p.Translation
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO passages (title, start_book_id, start_chapter, start_verse, end_chapter, end_verse, text, topics, translation, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, p.Title, b.Position, p.StartChapter, p.StartVerse, p.EndChapter, p.EndVerse, p.Text,
		storage.JoinTopics(p.Topics), translation, nullableVector(p.Embedding)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert passage %q: %w", p.Title, err)
	}
	return id, nil
}

func nullableVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

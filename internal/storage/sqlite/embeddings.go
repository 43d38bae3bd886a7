// ABOUTME: Embedding similarity search over the verse and passage pools
// ABOUTME: Stores vectors as float32 BLOBs and ranks with brute-force cosine similarity
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/harper/bible-chat/internal/models"
	"github.com/harper/bible-chat/internal/storage"
)

// SearchBySimilarity scores every embedded candidate in the translation scope
// and ranks them. Passages without a translation belong to every scope.
func (s *Store) SearchBySimilarity(ctx context.Context, q storage.SimilarityQuery) ([]models.SearchResult, error) {
	if q.Limit <= 0 {
		return []models.SearchResult{}, nil
	}

	switch q.Kind {
	case models.KindVerse, "":
		return s.searchVerses(ctx, q)
	case models.KindPassage:
		return s.searchPassages(ctx, q)
	default:
		return nil, fmt.Errorf("unknown result kind %q", q.Kind)
	}
}

func (s *Store) searchVerses(ctx context.Context, q storage.SimilarityQuery) ([]models.SearchResult, error) {
	rows, err := s.db.Query(ctx, `
		SELECT b.name, b.position, v.id, v.chapter_number, v.verse_number, v.translation, v.text, v.embedding
		FROM verses v
		JOIN books b ON b.id = v.book_id
		WHERE v.embedding IS NOT NULL
		  AND (? = '' OR v.translation = ?)
	`, q.Translation, q.Translation)
	if err != nil {
		return nil, fmt.Errorf("failed to query verse embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scored []models.SearchResult
	for rows.Next() {
		var (
			v    models.Verse
			blob []byte
		)
		if err := rows.Scan(&v.Book, &v.BookPosition, &v.ID, &v.Chapter, &v.Verse, &v.Translation, &v.Text, &blob); err != nil {
			return nil, err
		}

		vector := BlobToVector(blob)
		if len(vector) != len(q.Vector) {
			continue
		}
		scored = append(scored, models.VerseResult(v, storage.CosineSimilarity(q.Vector, vector)))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return storage.Rank(scored, q.Threshold, q.Limit), nil
}

func (s *Store) searchPassages(ctx context.Context, q storage.SimilarityQuery) ([]models.SearchResult, error) {
	rows, err := s.db.Query(ctx, `
		SELECT b.name, b.position, p.id, p.title, p.start_chapter, p.start_verse,
		       p.end_chapter, p.end_verse, p.text, p.topics, p.translation, p.embedding
		FROM passages p
		JOIN books b ON b.id = p.start_book_id
		WHERE p.embedding IS NOT NULL
		  AND (? = '' OR p.translation IS NULL OR p.translation = '' OR p.translation = ?)
	`, q.Translation, q.Translation)
	if err != nil {
		return nil, fmt.Errorf("failed to query passage embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scored []models.SearchResult
	for rows.Next() {
		p, blob, err := scanPassage(rows)
		if err != nil {
			return nil, err
		}

		vector := BlobToVector(blob)
		if len(vector) != len(q.Vector) {
			continue
		}
		scored = append(scored, models.PassageResult(p, storage.CosineSimilarity(q.Vector, vector)))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return storage.Rank(scored, q.Threshold, q.Limit), nil
}

func scanPassage(rows *sql.Rows) (models.Passage, []byte, error) {
	var (
		p           models.Passage
		topics      string
		translation sql.NullString
		blob        []byte
	)
	err := rows.Scan(&p.Book, &p.BookPosition, &p.ID, &p.Title, &p.StartChapter, &p.StartVerse,
		&p.EndChapter, &p.EndVerse, &p.Text, &topics, &translation, &blob)
	if err != nil {
		return p, nil, err
	}
	p.Topics = storage.SplitTopics(topics)
	if translation.Valid {
		p.Translation = translation.String
	}
	return p, blob, nil
}

// VectorToBlob encodes a vector as little-endian float32
func VectorToBlob(vector []float32) []byte {
	if vector == nil {
		return nil
	}
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// BlobToVector decodes a little-endian float32 BLOB
func BlobToVector(blob []byte) []float32 {
	count := len(blob) / 4
	vector := make([]float32, count)
	for i := 0; i < count; i++ {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

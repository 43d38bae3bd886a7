// ABOUTME: PostgreSQL schema for the scripture corpus with pgvector columns
// ABOUTME: Vector width follows the configured embedding dimensions
package postgres

import "fmt"

// Schema returns the corpus DDL for embeddings of the given width
func Schema(dimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS translations (
    code VARCHAR(20) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    short_name VARCHAR(50) NOT NULL DEFAULT '',
    language VARCHAR(50) NOT NULL,
    language_code VARCHAR(10) NOT NULL,
    is_default BOOLEAN NOT NULL DEFAULT FALSE,
    embedding_model VARCHAR(100) NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS books (
    id INTEGER PRIMARY KEY,
    name VARCHAR(50) NOT NULL UNIQUE,
    abbreviation VARCHAR(10) NOT NULL,
    testament VARCHAR(20) NOT NULL,
    position INTEGER NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS verses (
    id BIGSERIAL PRIMARY KEY,
    book_id INTEGER NOT NULL REFERENCES books(id),
    chapter_number INTEGER NOT NULL,
    verse_number INTEGER NOT NULL,
    translation VARCHAR(20) NOT NULL REFERENCES translations(code),
    text TEXT NOT NULL,
    embedding vector(%[1]d),
    UNIQUE(book_id, chapter_number, verse_number, translation)
);

CREATE INDEX IF NOT EXISTS idx_verses_translation ON verses(translation);
CREATE INDEX IF NOT EXISTS idx_verses_embedding ON verses
    USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);

CREATE TABLE IF NOT EXISTS passages (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    start_book_id INTEGER NOT NULL REFERENCES books(id),
    start_chapter INTEGER NOT NULL,
    start_verse INTEGER NOT NULL,
    end_chapter INTEGER NOT NULL,
    end_verse INTEGER NOT NULL,
    text TEXT NOT NULL,
    topics VARCHAR(500) NOT NULL DEFAULT '',
    translation VARCHAR(20),
    embedding vector(%[1]d)
);

CREATE INDEX IF NOT EXISTS idx_passages_embedding ON passages
    USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`, dimensions)
}

// ABOUTME: SQLite schema definitions for the scripture corpus
// ABOUTME: Translations, canonical books, verses and passages with BLOB embeddings
package sqlite

import (
	"context"
	"database/sql"

	"github.com/harper/bible-chat/internal/models"
)

// SchemaVersion is stored in PRAGMA user_version once the schema is applied
const SchemaVersion = 1

// Schema contains all table definitions. Embeddings are little-endian float32 BLOBs.
const Schema = `
CREATE TABLE IF NOT EXISTS translations (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    short_name TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL,
    language_code TEXT NOT NULL,
    is_default INTEGER NOT NULL DEFAULT 0,
    embedding_model TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS books (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    abbreviation TEXT NOT NULL,
    testament TEXT NOT NULL,
    position INTEGER NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS verses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    book_id INTEGER NOT NULL REFERENCES books(id),
    chapter_number INTEGER NOT NULL,
    verse_number INTEGER NOT NULL,
    translation TEXT NOT NULL REFERENCES translations(code),
    text TEXT NOT NULL,
    embedding BLOB,
    UNIQUE(book_id, chapter_number, verse_number, translation)
);

CREATE INDEX IF NOT EXISTS idx_verses_translation ON verses(translation);
CREATE INDEX IF NOT EXISTS idx_verses_location ON verses(book_id, chapter_number, verse_number);

CREATE TABLE IF NOT EXISTS passages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    start_book_id INTEGER NOT NULL REFERENCES books(id),
    start_chapter INTEGER NOT NULL,
    start_verse INTEGER NOT NULL,
    end_chapter INTEGER NOT NULL,
    end_verse INTEGER NOT NULL,
    text TEXT NOT NULL,
    topics TEXT NOT NULL DEFAULT '',
    translation TEXT,
    embedding BLOB
);

CREATE INDEX IF NOT EXISTS idx_passages_book ON passages(start_book_id);
`

// seedBooks inserts the canonical book list; existing rows are kept
func seedBooks(ctx context.Context, tx *sql.Tx) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO books (id, name, abbreviation, testament, position)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, b := range models.CanonicalBooks() {
		if _, err := stmt.ExecContext(ctx, b.Position, b.Name, b.Abbreviation, b.Testament, b.Position); err != nil {
			return err
		}
	}
	return nil
}

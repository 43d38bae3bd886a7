// ABOUTME: Tests for the PostgreSQL repository
// ABOUTME: Integration tests run only when BIBLECHAT_TEST_DATABASE_URL points at a pgvector database
package postgres

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/harper/bible-chat/internal/models"
	"github.com/harper/bible-chat/internal/storage"
)

func TestSchemaUsesDimensions(t *testing.T) {
	ddl := Schema(384)
	if strings.Count(ddl, "vector(384)") != 2 {
		t.Errorf("schema should declare both embedding columns as vector(384)")
	}
	if !strings.Contains(ddl, "vector_cosine_ops") {
		t.Error("schema should index embeddings for cosine distance")
	}
}

func TestNullableVector(t *testing.T) {
	if nullableVector(nil) != nil {
		t.Error("empty embedding should be stored as NULL")
	}
	if nullableVector([]float32{1}) == nil {
		t.Error("non-empty embedding should be stored")
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("BIBLECHAT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BIBLECHAT_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, url, 3)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	for _, table := range []string{"verses", "passages", "translations"} {
		if _, err := store.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
	return store
}

func TestPostgres_SimilarityAndLookup(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.UpsertTranslation(ctx, models.Translation{Code: "web", Name: "World English Bible", Language: "English", LanguageCode: "en", IsDefault: true}); err != nil {
		t.Fatalf("UpsertTranslation() error = %v", err)
	}
	for _, v := range []models.Verse{
		{Book: "John", Chapter: 3, Verse: 17, Translation: "web", Text: "to judge the world", Embedding: []float32{1, 0, 0}},
		{Book: "Genesis", Chapter: 1, Verse: 1, Translation: "web", Text: "In the beginning", Embedding: []float32{1, 0, 0}},
	} {
		if _, err := store.InsertVerse(ctx, v); err != nil {
			t.Fatalf("InsertVerse() error = %v", err)
		}
	}

	results, err := store.SearchBySimilarity(ctx, storage.SimilarityQuery{
		Vector: []float32{1, 0, 0}, Kind: models.KindVerse, Translation: "web", Limit: 5, Threshold: 0.35,
	})
	if err != nil {
		t.Fatalf("SearchBySimilarity() error = %v", err)
	}
	if len(results) != 2 || results[0].Reference != "Genesis 1:1" {
		t.Errorf("results = %+v, want canonical tie-break", results)
	}

	v, err := store.GetVerse(ctx, "Genesis", 1, 1, "")
	if err != nil {
		t.Fatalf("GetVerse() error = %v", err)
	}
	if v.Text != "In the beginning" {
		t.Errorf("Text = %q", v.Text)
	}
}

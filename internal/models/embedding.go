// ABOUTME: Search result models produced by similarity and text search
// ABOUTME: Defines SearchResult, canonical ordering and reference formatting
package models

import "fmt"

// ResultKind distinguishes the verse and passage pools
type ResultKind string

const (
	KindVerse   ResultKind = "verse"
	KindPassage ResultKind = "passage"
)

// SearchResult is a verse or passage plus its similarity to the query in [0,1].
// It is built per request and never persisted.
type SearchResult struct {
	Kind         ResultKind `json:"kind"`
	Reference    string     `json:"reference"`
	Title        string     `json:"title,omitempty"`
	Book         string     `json:"book"`
	BookPosition int        `json:"bookPosition"`
	Chapter      int        `json:"chapter"`
	Verse        int        `json:"verse"`
	EndChapter   int        `json:"endChapter,omitempty"`
	EndVerse     int        `json:"endVerse,omitempty"`
	Translation  string     `json:"translation,omitempty"`
	Text         string     `json:"text"`
	Topics       []string   `json:"topics,omitempty"`
	Similarity   float64    `json:"similarity"`
}

// CanonicalLess orders two results by book position, chapter, verse, then
// translation code
func CanonicalLess(a, b SearchResult) bool {
	if a.BookPosition != b.BookPosition {
		return a.BookPosition < b.BookPosition
	}
	if a.Chapter != b.Chapter {
		return a.Chapter < b.Chapter
	}
	if a.Verse != b.Verse {
		return a.Verse < b.Verse
	}
	return a.Translation < b.Translation
}

// VerseResult converts a verse into an unscored search result
func VerseResult(v Verse, similarity float64) SearchResult {
	return SearchResult{
		Kind:         KindVerse,
		Reference:    v.Reference(),
		Book:         v.Book,
		BookPosition: v.BookPosition,
		Chapter:      v.Chapter,
		Verse:        v.Verse,
		Translation:  v.Translation,
		Text:         v.Text,
		Similarity:   similarity,
	}
}

// PassageResult converts a passage into a search result
func PassageResult(p Passage, similarity float64) SearchResult {
	return SearchResult{
		Kind:         KindPassage,
		Reference:    FormatReference(p.Book, p.StartChapter, p.StartVerse, p.EndChapter, p.EndVerse),
		Title:        p.Title,
		Book:         p.Book,
		BookPosition: p.BookPosition,
		Chapter:      p.StartChapter,
		Verse:        p.StartVerse,
		EndChapter:   p.EndChapter,
		EndVerse:     p.EndVerse,
		Translation:  p.Translation,
		Text:         p.Text,
		Topics:       p.Topics,
		Similarity:   similarity,
	}
}

// FormatReference renders "Book c:v", "Book c:v-v" or "Book c:v-c:v".
// endChapter 0 means a single verse.
func FormatReference(book string, chapter, verse, endChapter, endVerse int) string {
	switch {
	case endChapter == 0 || (endChapter == chapter && endVerse == verse):
		return fmt.Sprintf("%s %d:%d", book, chapter, verse)
	case endChapter == chapter:
		return fmt.Sprintf("%s %d:%d-%d", book, chapter, verse, endVerse)
	default:
		return fmt.Sprintf("%s %d:%d-%d:%d", book, chapter, verse, endChapter, endVerse)
	}
}

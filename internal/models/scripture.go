// ABOUTME: Corpus entities read by the scripture repository
// ABOUTME: Defines Verse, Passage, Book, Translation and corpus statistics
package models

// Verse is one verse of one translation. (Book, Chapter, Verse, Translation) is unique.
type Verse struct {
	ID           int64     `json:"id"`
	Book         string    `json:"book"`
	BookPosition int       `json:"bookPosition"`
	Chapter      int       `json:"chapter"`
	Verse        int       `json:"verse"`
	Translation  string    `json:"translation"`
	Text         string    `json:"text"`
	Embedding    []float32 `json:"-"`
}

// Passage is a named multi-verse range with its own embedding. An empty
// Translation means the passage is shared by every translation scope.
type Passage struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Book         string    `json:"book"`
	BookPosition int       `json:"bookPosition"`
	StartChapter int       `json:"startChapter"`
	StartVerse   int       `json:"startVerse"`
	EndChapter   int       `json:"endChapter"`
	EndVerse     int       `json:"endVerse"`
	Text         string    `json:"text"`
	Topics       []string  `json:"topics,omitempty"`
	Translation  string    `json:"translation,omitempty"`
	Embedding    []float32 `json:"-"`
}

// Book is a canonical book of the corpus, ordered by Position.
type Book struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Testament    string `json:"testament"`
	Position     int    `json:"position"`
}

// Translation describes one edition of the corpus.
type Translation struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	ShortName    string `json:"shortName"`
	Language     string `json:"language"`
	LanguageCode string `json:"languageCode"`
	IsDefault    bool   `json:"isDefault"`
	// EmbeddingModel is the model that produced this translation's vectors.
	// Empty when unknown.
	EmbeddingModel string `json:"embeddingModel,omitempty"`
}

// CorpusStats summarises corpus contents.
type CorpusStats struct {
	Books               int            `json:"books"`
	Verses              int            `json:"verses"`
	VersesEmbedded      int            `json:"versesEmbedded"`
	Passages            int            `json:"passages"`
	PassagesEmbedded    int            `json:"passagesEmbedded"`
	VersesByTranslation map[string]int `json:"versesByTranslation"`
}

// Reference returns the verse reference using the stored (English) book name.
func (v Verse) Reference() string {
	return FormatReference(v.Book, v.Chapter, v.Verse, 0, 0)
}

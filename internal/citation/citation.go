// ABOUTME: Verse reference parsing and best-effort citation extraction from generated text
// ABOUTME: Candidates are found by pattern, then validated by a participle grammar and the book table
package citation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/harper/bible-chat/internal/models"
)

// Reference is a validated verse or verse range. EndChapter is 0 for a
// single verse.
type Reference struct {
	Book       string `json:"book"`
	Canonical  string `json:"canonical"`
	Position   int    `json:"position"`
	Chapter    int    `json:"chapter"`
	Verse      int    `json:"verse"`
	EndChapter int    `json:"endChapter,omitempty"`
	EndVerse   int    `json:"endVerse,omitempty"`
}

// String renders "Book c:v", "Book c:v-v" or "Book c:v-c:v"
func (r Reference) String() string {
	return models.FormatReference(r.Book, r.Chapter, r.Verse, r.EndChapter, r.EndVerse)
}

// IsRange reports whether the reference spans more than one verse
func (r Reference) IsRange() bool {
	return r.EndChapter != 0 && (r.EndChapter != r.Chapter || r.EndVerse != r.Verse)
}

// referenceAST is the grammar of one reference:
// Book chapter ":" verse [ "-" number [ ":" number ] ]
type referenceAST struct {
	Book    string `@Book`
	Chapter int    `@Number ":"`
	Verse   int    `@Number`
	RangeA  *int   `( "-" @Number`
	RangeB  *int   `  ( ":" @Number )? )?`
}

var referenceLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Book names: optional 1-3 prefix, one or more words, optional trailing period.
	// Examples: John, 1 John, 1. Mose, Song of Solomon, Cantico dei Cantici, Gen.
	{Name: "Book", Pattern: `(?:[1-3]\.?\s*)?\p{L}+(?:\s+\p{L}+)*\.?`},
	{Name: "Number", Pattern: `\d+`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Dash", Pattern: `-`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var referenceParser = participle.MustBuild[referenceAST](
	participle.Lexer(referenceLexer),
	participle.Elide("Whitespace"),
)

var dashReplacer = strings.NewReplacer("–", "-", "—", "-")

// Parse parses and validates a single reference such as "John 3:16",
// "1 Cor 13:4-7" or "Giovanni 3:16-4:2". The book must be known.
func Parse(input string) (Reference, error) {
	normalized := strings.TrimSpace(dashReplacer.Replace(input))
	ast, err := referenceParser.ParseString("", normalized)
	if err != nil {
		return Reference{}, fmt.Errorf("parsing reference %q: %w", input, err)
	}

	written := strings.TrimSuffix(strings.Join(strings.Fields(ast.Book), " "), ".")
	book, ok := models.LookupBook(written)
	if !ok {
		return Reference{}, fmt.Errorf("unknown book %q", written)
	}
	display, _ := models.DisplayName(written)

	ref := Reference{
		Book:      display,
		Canonical: book.Name,
		Position:  book.Position,
		Chapter:   ast.Chapter,
		Verse:     ast.Verse,
	}
	switch {
	case ast.RangeA != nil && ast.RangeB != nil:
		ref.EndChapter, ref.EndVerse = *ast.RangeA, *ast.RangeB
	case ast.RangeA != nil:
		ref.EndChapter, ref.EndVerse = ast.Chapter, *ast.RangeA
	}

	if ref.Chapter < 1 || ref.Verse < 1 {
		return Reference{}, fmt.Errorf("reference %q: chapter and verse must be positive", input)
	}
	if ref.EndChapter != 0 {
		if ref.EndChapter < ref.Chapter || (ref.EndChapter == ref.Chapter && ref.EndVerse < ref.Verse) {
			return Reference{}, fmt.Errorf("reference %q: range ends before it starts", input)
		}
		if !ref.IsRange() {
			ref.EndChapter, ref.EndVerse = 0, 0
		}
	}
	return ref, nil
}

// candidatePattern finds things that look like references: an optional 1-3
// prefix, one capitalised word plus up to three more (or "of"/"dei"), then
// chapter:verse with an optional range.
var candidatePattern = regexp.MustCompile(
	`(?:\b[1-3]\.?\s?)?\p{Lu}\p{L}+(?:\s+(?:of|dei|\p{Lu}\p{L}+)){0,3}\s+\d{1,3}:\d{1,3}(?:\s*[-–—]\s*\d{1,3}(?::\d{1,3})?)?`,
)

// Extract returns the normalised references cited in text, deduplicated, in
// order of first appearance. It is best-effort: a cited reference need not
// exist in the corpus. The result is never nil.
func Extract(text string) []string {
	refs := ExtractReferences(text)
	cited := make([]string, len(refs))
	for i, ref := range refs {
		cited[i] = ref.String()
	}
	return cited
}

// ExtractReferences is Extract returning parsed references
func ExtractReferences(text string) []Reference {
	refs := []Reference{}
	seen := make(map[string]bool)
	for _, candidate := range candidatePattern.FindAllString(text, -1) {
		ref, ok := parseCandidate(candidate)
		if !ok || seen[ref.String()] {
			continue
		}
		seen[ref.String()] = true
		refs = append(refs, ref)
	}
	return refs
}

// parseCandidate drops leading words until the remainder parses, so
// "In John 3:16" yields John 3:16.
func parseCandidate(candidate string) (Reference, bool) {
	s := candidate
	for {
		if ref, err := Parse(s); err == nil {
			return ref, true
		}
		i := strings.IndexAny(s, " \t\n")
		if i < 0 {
			return Reference{}, false
		}
		s = strings.TrimSpace(s[i+1:])
	}
}

// ABOUTME: Pluggable language detection used by the translation resolver
// ABOUTME: KeywordDetector scores stop-word and diacritic hits for English, Italian and German
package core

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// LanguageDetector guesses the ISO 639-1 language of a message. ok is false
// when the detector has no confident opinion.
type LanguageDetector interface {
	Detect(text string) (lang string, ok bool)
}

// minDetectRunes is the shortest text the keyword detector will judge
const minDetectRunes = 10

// minDetectHits is the score a language needs before it can win
const minDetectHits = 2

var stopWords = map[string][]string{
	"en": {
		"the", "and", "is", "are", "what", "how", "why", "who", "does", "do",
		"you", "my", "me", "about", "with", "for", "this", "that", "when",
		"where", "god", "jesus", "bible", "can", "of", "to", "i'm", "feel",
	},
	"it": {
		"il", "la", "lo", "gli", "le", "che", "di", "del", "della", "non",
		"per", "cosa", "sono", "mi", "ti", "una", "uno", "con", "perché",
		"dio", "gesù", "bibbia", "chi", "quando", "dove", "è", "ho", "sul",
	},
	"de": {
		"der", "die", "das", "und", "ist", "nicht", "ich", "wie", "warum",
		"wer", "mit", "für", "ein", "eine", "mein", "mich", "gott", "bibel",
		"über", "auch", "sind", "zu", "sagt", "fühle", "den", "dem",
	},
}

// diacritic hints for words outside the stop-word lists
var diacriticHints = map[rune]string{
	'ß': "de", 'ä': "de", 'ö': "de", 'ü': "de",
	'è': "it", 'à': "it", 'ù': "it", 'ì': "it", 'ò': "it",
}

// KeywordDetector is the default LanguageDetector. It counts stop-word hits
// per language plus one hit for every other word carrying a language-specific
// diacritic. The winner needs at least two hits and a strict lead.
type KeywordDetector struct {
	words map[string]string
}

// NewKeywordDetector builds the detector over the built-in word lists
func NewKeywordDetector() *KeywordDetector {
	words := make(map[string]string)
	for lang, list := range stopWords {
		for _, w := range list {
			words[w] = lang
		}
	}
	return &KeywordDetector{words: words}
}

// Detect implements LanguageDetector
func (d *KeywordDetector) Detect(text string) (string, bool) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minDetectRunes {
		return "", false
	}

	scores := make(map[string]int)
	for _, token := range tokenize(text) {
		if lang, ok := d.words[token]; ok {
			scores[lang]++
			continue
		}
		if lang := hintFor(token); lang != "" {
			scores[lang]++
		}
	}

	best, bestScore, runnerUp := "", 0, 0
	for lang, score := range scores {
		switch {
		case score > bestScore:
			runnerUp = bestScore
			best, bestScore = lang, score
		case score > runnerUp:
			runnerUp = score
		}
	}

	if bestScore < minDetectHits || bestScore == runnerUp {
		return "", false
	}
	return best, true
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

func hintFor(token string) string {
	for _, r := range token {
		if lang, ok := diacriticHints[r]; ok {
			return lang
		}
	}
	return ""
}

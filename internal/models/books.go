// ABOUTME: Canonical book table with positions, abbreviations and localized names
// ABOUTME: Resolves English, Italian, German and abbreviated book names to canonical books
package models

import "strings"

// Canonical books in corpus order. Position is the index + 1.
var canonicalBooks = []struct {
	name, abbr, it, de string
}{
	{"Genesis", "Gen", "Genesi", "1. Mose"},
	{"Exodus", "Exod", "Esodo", "2. Mose"},
	{"Leviticus", "Lev", "Levitico", "3. Mose"},
	{"Numbers", "Num", "Numeri", "4. Mose"},
	{"Deuteronomy", "Deut", "Deuteronomio", "5. Mose"},
	{"Joshua", "Josh", "Giosuè", "Josua"},
	{"Judges", "Judg", "Giudici", "Richter"},
	{"Ruth", "Ruth", "Rut", "Ruth"},
	{"1 Samuel", "1Sam", "1 Samuele", "1. Samuel"},
	{"2 Samuel", "2Sam", "2 Samuele", "2. Samuel"},
	{"1 Kings", "1Kgs", "1 Re", "1. Könige"},
	{"2 Kings", "2Kgs", "2 Re", "2. Könige"},
	{"1 Chronicles", "1Chr", "1 Cronache", "1. Chronik"},
	{"2 Chronicles", "2Chr", "2 Cronache", "2. Chronik"},
	{"Ezra", "Ezra", "Esdra", "Esra"},
	{"Nehemiah", "Neh", "Neemia", "Nehemia"},
	{"Esther", "Esth", "Ester", "Esther"},
	{"Job", "Job", "Giobbe", "Hiob"},
	{"Psalms", "Ps", "Salmi", "Psalmen"},
	{"Proverbs", "Prov", "Proverbi", "Sprüche"},
	{"Ecclesiastes", "Eccl", "Ecclesiaste", "Prediger"},
	{"Song of Solomon", "Song", "Cantico dei Cantici", "Hohelied"},
	{"Isaiah", "Isa", "Isaia", "Jesaja"},
	{"Jeremiah", "Jer", "Geremia", "Jeremia"},
	{"Lamentations", "Lam", "Lamentazioni", "Klagelieder"},
	{"Ezekiel", "Ezek", "Ezechiele", "Hesekiel"},
	{"Daniel", "Dan", "Daniele", "Daniel"},
	{"Hosea", "Hos", "Osea", "Hosea"},
	{"Joel", "Joel", "Gioele", "Joel"},
	{"Amos", "Amos", "Amos", "Amos"},
	{"Obadiah", "Obad", "Abdia", "Obadja"},
	{"Jonah", "Jonah", "Giona", "Jona"},
	{"Micah", "Mic", "Michea", "Micha"},
	{"Nahum", "Nah", "Naum", "Nahum"},
	{"Habakkuk", "Hab", "Abacuc", "Habakuk"},
	{"Zephaniah", "Zeph", "Sofonia", "Zephanja"},
	{"Haggai", "Hag", "Aggeo", "Haggai"},
	{"Zechariah", "Zech", "Zaccaria", "Sacharja"},
	{"Malachi", "Mal", "Malachia", "Maleachi"},
	{"Matthew", "Matt", "Matteo", "Matthäus"},
	{"Mark", "Mark", "Marco", "Markus"},
	{"Luke", "Luke", "Luca", "Lukas"},
	{"John", "John", "Giovanni", "Johannes"},
	{"Acts", "Acts", "Atti", "Apostelgeschichte"},
	{"Romans", "Rom", "Romani", "Römer"},
	{"1 Corinthians", "1Cor", "1 Corinzi", "1. Korinther"},
	{"2 Corinthians", "2Cor", "2 Corinzi", "2. Korinther"},
	{"Galatians", "Gal", "Galati", "Galater"},
	{"Ephesians", "Eph", "Efesini", "Epheser"},
	{"Philippians", "Phil", "Filippesi", "Philipper"},
	{"Colossians", "Col", "Colossesi", "Kolosser"},
	{"1 Thessalonians", "1Thess", "1 Tessalonicesi", "1. Thessalonicher"},
	{"2 Thessalonians", "2Thess", "2 Tessalonicesi", "2. Thessalonicher"},
	{"1 Timothy", "1Tim", "1 Timoteo", "1. Timotheus"},
	{"2 Timothy", "2Tim", "2 Timoteo", "2. Timotheus"},
	{"Titus", "Titus", "Tito", "Titus"},
	{"Philemon", "Phlm", "Filemone", "Philemon"},
	{"Hebrews", "Heb", "Ebrei", "Hebräer"},
	{"James", "Jas", "Giacomo", "Jakobus"},
	{"1 Peter", "1Pet", "1 Pietro", "1. Petrus"},
	{"2 Peter", "2Pet", "2 Pietro", "2. Petrus"},
	{"1 John", "1John", "1 Giovanni", "1. Johannes"},
	{"2 John", "2John", "2 Giovanni", "2. Johannes"},
	{"3 John", "3John", "3 Giovanni", "3. Johannes"},
	{"Jude", "Jude", "Giuda", "Judas"},
	{"Revelation", "Rev", "Apocalisse", "Offenbarung"},
}

// translation code -> language used for book names
var bookLanguageByTranslation = map[string]string{
	"ita1927":    "it",
	"schlachter": "de",
}

var bookIndex = buildBookIndex()

// normalized key -> full spelling in the language the key belongs to.
// Abbreviations and aliases map to a full name.
var spellingIndex = buildSpellingIndex()

func buildBookIndex() map[string]int {
	idx := make(map[string]int, len(canonicalBooks)*5)
	for i, b := range canonicalBooks {
		for _, name := range []string{b.name, b.abbr, b.it, b.de} {
			idx[normalizeBookKey(name)] = i
		}
	}
	// Common aliases
	idx[normalizeBookKey("Psalm")] = 18
	idx[normalizeBookKey("Salmo")] = 18
	idx[normalizeBookKey("Revelations")] = 65
	idx[normalizeBookKey("Song of Songs")] = 21
	return idx
}

func buildSpellingIndex() map[string]string {
	idx := make(map[string]string, len(canonicalBooks)*4)
	for _, b := range canonicalBooks {
		idx[normalizeBookKey(b.abbr)] = b.name
	}
	// Full names win over abbreviations that share a key, e.g. "Ruth"
	for _, b := range canonicalBooks {
		for _, name := range []string{b.de, b.it, b.name} {
			idx[normalizeBookKey(name)] = name
		}
	}
	idx[normalizeBookKey("Psalm")] = "Psalms"
	idx[normalizeBookKey("Salmo")] = "Salmi"
	idx[normalizeBookKey("Revelations")] = "Revelation"
	idx[normalizeBookKey("Song of Songs")] = "Song of Solomon"
	return idx
}

// normalizeBookKey lowercases and drops spaces and dots so "1. Mose",
// "1 Mose" and "1mose" share a key.
func normalizeBookKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r == ' ' || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CanonicalBooks returns the canonical book list in corpus order
func CanonicalBooks() []Book {
	books := make([]Book, len(canonicalBooks))
	for i, b := range canonicalBooks {
		testament := "Old Testament"
		if i >= 39 {
			testament = "New Testament"
		}
		books[i] = Book{Name: b.name, Abbreviation: b.abbr, Testament: testament, Position: i + 1}
	}
	return books
}

// LookupBook resolves an English, localized or abbreviated name to the canonical book
func LookupBook(name string) (Book, bool) {
	i, ok := bookIndex[normalizeBookKey(name)]
	if !ok {
		return Book{}, false
	}
	return CanonicalBooks()[i], true
}

// BookPosition returns the canonical position of a book, or 0 if unknown
func BookPosition(name string) int {
	i, ok := bookIndex[normalizeBookKey(name)]
	if !ok {
		return 0
	}
	return i + 1
}

// LocalizedBookName returns the book name used by a translation. Translations
// without localized names use the English name.
func LocalizedBookName(english, translation string) string {
	lang, ok := bookLanguageByTranslation[translation]
	if !ok {
		return english
	}
	i, ok := bookIndex[normalizeBookKey(english)]
	if !ok {
		return english
	}
	switch lang {
	case "it":
		return canonicalBooks[i].it
	case "de":
		return canonicalBooks[i].de
	}
	return english
}

// LocalizedNames returns every known spelling of every book, for reference scanning
func LocalizedNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, b := range canonicalBooks {
		for _, n := range []string{b.name, b.it, b.de} {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}

// DisplayName returns the full spelling of a book name in the language it
// was written in. Abbreviations expand to the English name.
func DisplayName(name string) (string, bool) {
	display, ok := spellingIndex[normalizeBookKey(name)]
	return display, ok
}

// ABOUTME: Tests for prompt assembly
// ABOUTME: Context block variants, passage truncation, language instruction and history window
package core

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/harper/bible-chat/internal/llm"
	"github.com/harper/bible-chat/internal/models"
)

func TestScriptureContextBlock(t *testing.T) {
	if got := ScriptureContextBlock(nil); got != "" {
		t.Errorf("skipped search should render nothing, got %q", got)
	}

	empty := ScriptureContextBlock(&SearchResponse{})
	if !strings.Contains(empty, "No relevant verses were found") {
		t.Errorf("empty search should render the no-verses block, got %q", empty)
	}

	block := ScriptureContextBlock(&SearchResponse{
		Verses: []models.SearchResult{{Reference: "John 3:16", Text: "For God so loved the world."}},
		Passages: []models.SearchResult{{
			Reference: "Psalms 23:1-6",
			Title:     "The Good Shepherd",
			Text:      strings.Repeat("é", 600),
		}},
	})
	for _, want := range []string{
		"## Scripture Context - ONLY USE THESE VERSES",
		"### ALLOWED VERSES:",
		`**John 3:16**: "For God so loved the world."`,
		"## Relevant Passages Found",
		"**The Good Shepherd** (Psalms 23:1-6)",
		"### END OF ALLOWED VERSES",
	} {
		if !strings.Contains(block, want) {
			t.Errorf("block missing %q", want)
		}
	}
	if strings.Contains(block, strings.Repeat("é", 501)) {
		t.Error("passage text should be truncated to 500 runes")
	}
	if !strings.Contains(block, strings.Repeat("é", 500)+"...") {
		t.Error("truncated passage should end with an ellipsis")
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("truncateRunes() = %q, want unchanged", got)
	}
	got := truncateRunes(strings.Repeat("ü", 12), 10)
	if utf8.RuneCountInString(got) != 13 || !utf8.ValidString(got) {
		t.Errorf("truncateRunes() = %q, want 10 runes plus ellipsis", got)
	}
}

func TestLanguageInstruction(t *testing.T) {
	if got := LanguageInstruction("en"); got != "" {
		t.Errorf("English should need no instruction, got %q", got)
	}
	if got := LanguageInstruction("xx"); got != "" {
		t.Errorf("unknown language should need no instruction, got %q", got)
	}
	if got := LanguageInstruction("it"); !strings.Contains(got, "Respond in Italian") {
		t.Errorf("LanguageInstruction(it) = %q", got)
	}
}

func TestBuildMessages(t *testing.T) {
	history := []models.ConversationTurn{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
		{Role: "user", Content: "three"},
		{Role: "assistant", Content: "four"},
	}

	messages := BuildMessages(PromptInput{
		Message:    "five",
		History:    history,
		MaxHistory: 2,
		Language:   "de",
		Search:     &SearchResponse{Verses: []models.SearchResult{{Reference: "Johannes 3:16", Text: "Denn also hat Gott die Welt geliebt."}}},
		Extra:      VerseExplanationPrompt,
	})

	if len(messages) != 4 {
		t.Fatalf("len(messages) = %d, want system + 2 history + user", len(messages))
	}
	system := messages[0]
	if system.Role != llm.RoleSystem {
		t.Errorf("first message role = %s, want system", system.Role)
	}
	if !strings.HasPrefix(system.Content, "\n## Scripture Context - ONLY USE THESE VERSES") {
		t.Error("scripture context should precede the system prompt")
	}
	for _, want := range []string{SystemPrompt, "Respond in German", VerseExplanationPrompt, "Johannes 3:16"} {
		if !strings.Contains(system.Content, want) {
			t.Errorf("system message missing %q", want)
		}
	}
	if messages[1].Content != "three" || messages[2].Role != llm.RoleAssistant {
		t.Errorf("history window = %v, want the last two turns", messages[1:3])
	}
	if messages[3].Role != llm.RoleUser || messages[3].Content != "five" {
		t.Errorf("last message = %+v, want the user message", messages[3])
	}
}

func TestBuildMessages_NoSearchNoHistory(t *testing.T) {
	messages := BuildMessages(PromptInput{Message: "hello", Language: "en"})
	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(messages))
	}
	if messages[0].Content != SystemPrompt {
		t.Error("system message should be the bare system prompt when search is skipped")
	}
}

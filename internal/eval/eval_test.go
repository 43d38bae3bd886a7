// ABOUTME: Tests for evaluation scoring, scenario loading and the runner
// ABOUTME: The runner is driven by a scripted chatter instead of a live model
package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harper/bible-chat/internal/core"
	"github.com/harper/bible-chat/internal/models"
)

func verse(book string, chapter, v int) models.SearchResult {
	return models.SearchResult{
		Kind:         models.KindVerse,
		Book:         book,
		BookPosition: models.BookPosition(book),
		Chapter:      chapter,
		Verse:        v,
		Reference:    models.FormatReference(book, chapter, v, 0, 0),
	}
}

func passage(book string, chapter, start, endChapter, end int) models.SearchResult {
	return models.SearchResult{
		Kind:         models.KindPassage,
		Book:         book,
		BookPosition: models.BookPosition(book),
		Chapter:      chapter,
		Verse:        start,
		EndChapter:   endChapter,
		EndVerse:     end,
	}
}

func TestFaithfulness(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		expected  []string
		forbidden []string
		want      float64
	}{
		{"nothing required", "Peace be with you.", nil, nil, 1.0},
		{"expected present, case-insensitive", "You are LOVED.", []string{"loved"}, nil, 1.0},
		{"expected missing", "Peace.", []string{"loved"}, nil, 0.5},
		{"forbidden present", "Just pray about it.", nil, []string{"just pray about it"}, 0.5},
		{"both violated", "Just pray about it.", []string{"loved"}, []string{"pray"}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, detail := Faithfulness(tt.response, tt.expected, tt.forbidden)
			if got != tt.want {
				t.Errorf("Faithfulness() = %v (%s), want %v", got, detail, tt.want)
			}
		})
	}
}

func TestContextRecall(t *testing.T) {
	retrieved := []models.SearchResult{
		verse("John", 3, 16),
		passage("Psalms", 23, 1, 23, 6),
	}

	tests := []struct {
		name     string
		expected []string
		want     float64
	}{
		{"nothing expected", nil, 1.0},
		{"exact verse", []string{"John 3:16"}, 1.0},
		{"inside passage", []string{"Psalms 23:4"}, 1.0},
		{"localized name", []string{"Giovanni 3:16"}, 1.0},
		{"half retrieved", []string{"John 3:16", "Romans 8:28"}, 0.5},
		{"unparseable counts as missing", []string{"not a reference"}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, detail := ContextRecall(retrieved, tt.expected)
			if got != tt.want {
				t.Errorf("ContextRecall() = %v (%s), want %v", got, detail, tt.want)
			}
		})
	}
}

func TestGrounding(t *testing.T) {
	retrieved := []models.SearchResult{
		verse("John", 3, 16),
		passage("Psalms", 23, 1, 23, 6),
	}

	tests := []struct {
		name  string
		cited []string
		want  float64
	}{
		{"no citations", nil, 1.0},
		{"all grounded", []string{"John 3:16", "Psalms 23:1"}, 1.0},
		{"one invented", []string{"John 3:16", "Jeremiah 29:11"}, 0.5},
		{"outside passage", []string{"Psalms 24:1"}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, detail := Grounding(tt.cited, retrieved)
			if got != tt.want {
				t.Errorf("Grounding() = %v (%s), want %v", got, detail, tt.want)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	scenario := Scenario{
		ID:   "love",
		Name: "Love",
		GroundTruth: GroundTruth{
			ExpectedReferences:  []string{"John 3:16"},
			ExpectedTranslation: "web",
		},
	}
	resp := &models.ChatResponse{
		Message:             "As John 3:16 says, you are loved.",
		ScriptureContext:    &models.ScriptureContext{Verses: []models.SearchResult{verse("John", 3, 16)}},
		DetectedTranslation: "web",
		VersesCited:         []string{"John 3:16"},
	}

	got := Evaluate(scenario, resp)
	if got.Status != StatusPass {
		t.Fatalf("Status = %s, want %s (%v)", got.Status, StatusPass, got.Details)
	}
	if got.Overall != 1.0 {
		t.Errorf("Overall = %v, want 1.0", got.Overall)
	}

	resp.DetectedTranslation = "kjv"
	if got := Evaluate(scenario, resp); got.Status != StatusFail || got.TranslationCorrect {
		t.Errorf("wrong translation: Status = %s, TranslationCorrect = %v", got.Status, got.TranslationCorrect)
	}

	resp.DetectedTranslation = "web"
	resp.VersesCited = []string{"Jeremiah 29:11"}
	if got := Evaluate(scenario, resp); got.Status != StatusFail || got.Grounding != 0 {
		t.Errorf("ungrounded citation: Status = %s, Grounding = %v", got.Status, got.Grounding)
	}

	resp.ScriptureContext = nil
	resp.VersesCited = nil
	if got := Evaluate(scenario, resp); got.ContextRecall != 0 {
		t.Errorf("no retrieval: ContextRecall = %v, want 0", got.ContextRecall)
	}
}

func TestLoadScenarios(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.yaml")
	content := `scenarios:
  - id: anxiety
    name: Anxiety
    message: I am worried about tomorrow
    translation: web
    history:
      - role: user
        content: hello
    ground_truth:
      expected_references: ["Matthew 6:34"]
      forbidden_in_response: ["just pray about it"]
`
	if err := os.WriteFile(valid, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	scenarios, err := LoadScenarios(valid)
	if err != nil {
		t.Fatalf("LoadScenarios() error = %v", err)
	}
	if len(scenarios) != 1 {
		t.Fatalf("len(scenarios) = %d, want 1", len(scenarios))
	}
	s := scenarios[0]
	if s.ID != "anxiety" || s.Translation != "web" {
		t.Errorf("scenario = %+v", s)
	}
	if len(s.History) != 1 || s.History[0].Role != models.RoleUser {
		t.Errorf("History = %+v", s.History)
	}
	if len(s.GroundTruth.ExpectedReferences) != 1 || s.GroundTruth.ExpectedReferences[0] != "Matthew 6:34" {
		t.Errorf("ExpectedReferences = %v", s.GroundTruth.ExpectedReferences)
	}

	invalid := map[string]string{
		"empty.yaml":     "scenarios: []\n",
		"noid.yaml":      "scenarios:\n  - message: hi\n",
		"nomessage.yaml": "scenarios:\n  - id: a\n",
		"dupe.yaml":      "scenarios:\n  - id: a\n    message: hi\n  - id: a\n    message: again\n",
		"broken.yaml":    "scenarios: [\n",
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := LoadScenarios(path); err == nil {
				t.Error("LoadScenarios() error = nil, want error")
			}
		})
	}

	if _, err := LoadScenarios(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadScenarios(missing) error = nil, want error")
	}
}

func TestDefaultScenarios(t *testing.T) {
	scenarios := DefaultScenarios()
	if len(scenarios) == 0 {
		t.Fatal("DefaultScenarios() is empty")
	}
	for _, s := range scenarios {
		if s.ID == "" || s.Message == "" {
			t.Errorf("incomplete scenario %+v", s)
		}
	}
}

type scriptedChatter struct {
	responses map[string]*models.ChatResponse
	requests  []core.ChatRequest
}

func (c *scriptedChatter) Chat(ctx context.Context, req core.ChatRequest) (*models.ChatResponse, error) {
	c.requests = append(c.requests, req)
	resp, ok := c.responses[req.Message]
	if !ok {
		return nil, errors.New("model unavailable")
	}
	return resp, nil
}

func TestRunner_RunAll(t *testing.T) {
	chatter := &scriptedChatter{responses: map[string]*models.ChatResponse{
		"love": {
			Message:             "John 3:16 tells us you are loved.",
			ScriptureContext:    &models.ScriptureContext{Verses: []models.SearchResult{verse("John", 3, 16)}},
			DetectedTranslation: "web",
			VersesCited:         []string{"John 3:16"},
		},
	}}
	scenarios := []Scenario{
		{ID: "pass", Name: "Pass", Message: "love", Translation: "web", GroundTruth: GroundTruth{ExpectedReferences: []string{"John 3:16"}}},
		{ID: "error", Name: "Error", Message: "unknown"},
	}

	var out bytes.Buffer
	summary, err := NewRunner(chatter, &out, true).RunAll(context.Background(), scenarios)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if summary.Total != 2 || summary.Passed != 1 || summary.Failed != 1 {
		t.Errorf("summary = %d total, %d passed, %d failed; want 2, 1, 1", summary.Total, summary.Passed, summary.Failed)
	}
	if summary.Results[1].Status != StatusError || summary.Results[1].Error == "" {
		t.Errorf("second result = %+v, want ERROR with message", summary.Results[1])
	}
	if !chatter.requests[0].IncludeSearch || chatter.requests[0].PreferredTranslation != "web" {
		t.Errorf("request = %+v, want search on and preferred web", chatter.requests[0])
	}
	if !strings.Contains(out.String(), "RUNNING pass") {
		t.Errorf("verbose output missing progress: %q", out.String())
	}

	path := filepath.Join(t.TempDir(), "results.json")
	if err := summary.Export(path); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var exported Summary
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("exported JSON invalid: %v", err)
	}
	if exported.Passed != 1 {
		t.Errorf("exported Passed = %d, want 1", exported.Passed)
	}
}

func TestRunner_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chatter := &scriptedChatter{}
	summary, err := NewRunner(chatter, nil, false).RunAll(ctx, DefaultScenarios())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunAll() error = %v, want context.Canceled", err)
	}
	if summary.Total != 0 || len(chatter.requests) != 0 {
		t.Errorf("ran %d scenarios after cancel", summary.Total)
	}
}

func TestSelect(t *testing.T) {
	all := DefaultScenarios()

	got, err := Select(all)
	if err != nil || len(got) != len(all) {
		t.Fatalf("Select() = %d scenarios, %v; want all", len(got), err)
	}

	got, err = Select(all, "italian", "comfort")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "italian" || got[1].ID != "comfort" {
		t.Errorf("Select() order = %v", got)
	}

	if _, err := Select(all, "nope"); err == nil {
		t.Error("Select(unknown) error = nil, want error")
	}
}

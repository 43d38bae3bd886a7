// ABOUTME: Scoring for evaluated chat responses: faithfulness, context recall and grounding
// ABOUTME: Deterministic comparisons against ground truth, no model-graded metrics
package eval

import (
	"fmt"
	"strings"

	"github.com/harper/bible-chat/internal/citation"
	"github.com/harper/bible-chat/internal/models"
)

// PassThreshold is the minimum score every metric needs for a scenario to pass
const PassThreshold = 0.9

// Result statuses
const (
	StatusPass  = "PASS"
	StatusFail  = "FAIL"
	StatusError = "ERROR"
)

// Result is the scored outcome of one scenario
type Result struct {
	ScenarioID          string         `json:"scenarioId"`
	ScenarioName        string         `json:"scenarioName"`
	Faithfulness        float64        `json:"faithfulness"`
	ContextRecall       float64        `json:"contextRecall"`
	Grounding           float64        `json:"grounding"`
	TranslationCorrect  bool           `json:"translationCorrect"`
	Overall             float64        `json:"overall"`
	Status              string         `json:"status"`
	DetectedTranslation string         `json:"detectedTranslation,omitempty"`
	VersesCited         []string       `json:"versesCited,omitempty"`
	Details             map[string]any `json:"details,omitempty"`
	Error               string         `json:"error,omitempty"`
}

// Faithfulness scores a response against required and forbidden phrases.
// Both satisfied is 1.0, one violated is 0.5, both violated is 0.
func Faithfulness(response string, expected, forbidden []string) (float64, string) {
	upper := strings.ToUpper(response)

	var missing, found []string
	for _, e := range expected {
		if !strings.Contains(upper, strings.ToUpper(e)) {
			missing = append(missing, e)
		}
	}
	for _, f := range forbidden {
		if strings.Contains(upper, strings.ToUpper(f)) {
			found = append(found, f)
		}
	}

	switch {
	case len(missing) == 0 && len(found) == 0:
		return 1.0, "response matches ground truth"
	case len(missing) > 0 && len(found) > 0:
		return 0.0, fmt.Sprintf("missing %v, forbidden %v", missing, found)
	case len(missing) > 0:
		return 0.5, fmt.Sprintf("missing %v", missing)
	default:
		return 0.5, fmt.Sprintf("forbidden %v", found)
	}
}

// ContextRecall is the share of expected references covered by the
// retrieved results. Nothing expected scores 1.0.
func ContextRecall(retrieved []models.SearchResult, expected []string) (float64, string) {
	if len(expected) == 0 {
		return 1.0, "no retrieval expected"
	}

	var missing []string
	for _, e := range expected {
		ref, err := citation.Parse(e)
		if err != nil || !covered(ref, retrieved) {
			missing = append(missing, e)
		}
	}

	recall := float64(len(expected)-len(missing)) / float64(len(expected))
	if len(missing) == 0 {
		return recall, "all expected references retrieved"
	}
	return recall, fmt.Sprintf("recall %.2f, missing %v", recall, missing)
}

// Grounding is the share of cited references that the retrieval supplied.
// A response that cites nothing is fully grounded.
func Grounding(cited []string, retrieved []models.SearchResult) (float64, string) {
	if len(cited) == 0 {
		return 1.0, "no citations"
	}

	var ungrounded []string
	for _, c := range cited {
		ref, err := citation.Parse(c)
		if err != nil || !covered(ref, retrieved) {
			ungrounded = append(ungrounded, c)
		}
	}

	score := float64(len(cited)-len(ungrounded)) / float64(len(cited))
	if len(ungrounded) == 0 {
		return score, "every citation was retrieved"
	}
	return score, fmt.Sprintf("cited outside retrieval: %v", ungrounded)
}

// Evaluate scores one response against its scenario
func Evaluate(s Scenario, resp *models.ChatResponse) Result {
	var retrieved []models.SearchResult
	if resp.ScriptureContext != nil {
		retrieved = append(retrieved, resp.ScriptureContext.Verses...)
		retrieved = append(retrieved, resp.ScriptureContext.Passages...)
	}

	faithfulness, faithfulnessDetail := Faithfulness(resp.Message, s.GroundTruth.ExpectedInResponse, s.GroundTruth.ForbiddenInResponse)
	recall, recallDetail := ContextRecall(retrieved, s.GroundTruth.ExpectedReferences)
	grounding, groundingDetail := Grounding(resp.VersesCited, retrieved)
	translationOK := s.GroundTruth.ExpectedTranslation == "" ||
		strings.EqualFold(s.GroundTruth.ExpectedTranslation, resp.DetectedTranslation)

	status := StatusFail
	if faithfulness >= PassThreshold && recall >= PassThreshold && grounding >= PassThreshold && translationOK {
		status = StatusPass
	}

	return Result{
		ScenarioID:          s.ID,
		ScenarioName:        s.Name,
		Faithfulness:        faithfulness,
		ContextRecall:       recall,
		Grounding:           grounding,
		TranslationCorrect:  translationOK,
		Overall:             (faithfulness + recall + grounding) / 3,
		Status:              status,
		DetectedTranslation: resp.DetectedTranslation,
		VersesCited:         resp.VersesCited,
		Details: map[string]any{
			"faithfulness":   faithfulnessDetail,
			"context_recall": recallDetail,
			"grounding":      groundingDetail,
			"retrieved":      len(retrieved),
			"response":       preview(resp.Message, 200),
		},
	}
}

// covered reports whether ref's first verse falls inside any retrieved
// verse or passage. Book names are compared canonically so localized
// references match their English ground truth.
func covered(ref citation.Reference, retrieved []models.SearchResult) bool {
	want := ref.Position
	for _, r := range retrieved {
		pos := r.BookPosition
		if pos == 0 {
			pos = models.BookPosition(r.Book)
		}
		if pos != want {
			continue
		}
		endChapter, endVerse := r.EndChapter, r.EndVerse
		if endChapter == 0 {
			endChapter, endVerse = r.Chapter, r.Verse
		}
		if !before(ref.Chapter, ref.Verse, r.Chapter, r.Verse) && !before(endChapter, endVerse, ref.Chapter, ref.Verse) {
			return true
		}
	}
	return false
}

func before(c1, v1, c2, v2 int) bool {
	return c1 < c2 || (c1 == c2 && v1 < v2)
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

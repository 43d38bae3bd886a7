// ABOUTME: Evaluation scenarios for the grounded chat pipeline: a question plus its ground truth
// ABOUTME: Scenarios come from a YAML file or the built-in set
package eval

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/harper/bible-chat/internal/models"
)

// Scenario is one evaluated chat exchange
type Scenario struct {
	ID          string                    `yaml:"id" json:"id"`
	Name        string                    `yaml:"name" json:"name"`
	Description string                    `yaml:"description,omitempty" json:"description,omitempty"`
	Message     string                    `yaml:"message" json:"message"`
	Translation string                    `yaml:"translation,omitempty" json:"translation,omitempty"`
	History     []models.ConversationTurn `yaml:"history,omitempty" json:"history,omitempty"`
	GroundTruth GroundTruth               `yaml:"ground_truth" json:"groundTruth"`
}

// GroundTruth is what a good answer to a scenario looks like
type GroundTruth struct {
	// References that retrieval should surface, e.g. "Psalms 23:1"
	ExpectedReferences []string `yaml:"expected_references,omitempty" json:"expectedReferences,omitempty"`

	ExpectedInResponse  []string `yaml:"expected_in_response,omitempty" json:"expectedInResponse,omitempty"`
	ForbiddenInResponse []string `yaml:"forbidden_in_response,omitempty" json:"forbiddenInResponse,omitempty"`

	// Translation the resolver should settle on; empty skips the check
	ExpectedTranslation string `yaml:"expected_translation,omitempty" json:"expectedTranslation,omitempty"`
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios reads a YAML file with a top-level "scenarios" list
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios: %w", err)
	}

	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios in %s", path)
	}

	seen := make(map[string]bool, len(file.Scenarios))
	for i, s := range file.Scenarios {
		if s.ID == "" {
			return nil, fmt.Errorf("scenario %d: missing id", i+1)
		}
		if s.Message == "" {
			return nil, fmt.Errorf("scenario %s: missing message", s.ID)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("scenario %s: duplicate id", s.ID)
		}
		seen[s.ID] = true
	}
	return file.Scenarios, nil
}

// DefaultScenarios is the built-in set run when no file is given
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			ID:          "comfort",
			Name:        "Comfort in grief",
			Description: "Retrieval should surface a shepherd or comfort passage",
			Message:     "I lost my father last month and I feel alone. Where can I find comfort?",
			GroundTruth: GroundTruth{
				ExpectedReferences:  []string{"Psalms 23:4"},
				ForbiddenInResponse: []string{"just pray about it"},
			},
		},
		{
			ID:          "italian",
			Name:        "Italian request",
			Description: "An Italian message should resolve to the Italian translation",
			Message:     "Mi sento molto ansioso per il futuro. Cosa dice la Bibbia?",
			GroundTruth: GroundTruth{
				ExpectedReferences:  []string{"Philippians 4:6"},
				ExpectedTranslation: "ita1927",
			},
		},
		{
			ID:          "explicit",
			Name:        "Explicit translation mention",
			Description: "Naming a translation in the message overrides language detection",
			Message:     "Using the KJV, what does the Bible say about love?",
			GroundTruth: GroundTruth{
				ExpectedReferences:  []string{"1 Corinthians 13:4"},
				ExpectedTranslation: "kjv",
			},
		},
	}
}

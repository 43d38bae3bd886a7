// ABOUTME: Runner for chat evaluations: sends each scenario through the chat service and scores it
// ABOUTME: Collects results into a summary that can be exported as JSON
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harper/bible-chat/internal/core"
	"github.com/harper/bible-chat/internal/logging"
	"github.com/harper/bible-chat/internal/models"
)

// Chatter answers one chat request; *core.ChatService satisfies it
type Chatter interface {
	Chat(ctx context.Context, req core.ChatRequest) (*models.ChatResponse, error)
}

// Summary is an evaluation run
type Summary struct {
	Timestamp string   `json:"timestamp"`
	Total     int      `json:"total"`
	Passed    int      `json:"passed"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"results"`
}

// Runner executes scenarios against a chat service
type Runner struct {
	chat    Chatter
	out     io.Writer
	verbose bool
}

// NewRunner creates a runner. Verbose progress goes to out.
func NewRunner(chat Chatter, out io.Writer, verbose bool) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{chat: chat, out: out, verbose: verbose}
}

// Run scores a single scenario. Chat failures produce an ERROR result
// rather than an error so a run always covers every scenario.
func (r *Runner) Run(ctx context.Context, s Scenario) Result {
	if r.verbose {
		_, _ = fmt.Fprintf(r.out, "RUNNING %s: %s\n", s.ID, s.Name)
	}

	start := time.Now()
	resp, err := r.chat.Chat(ctx, core.ChatRequest{
		Message:              s.Message,
		History:              s.History,
		IncludeSearch:        true,
		PreferredTranslation: s.Translation,
	})
	if err != nil {
		logging.FromContext(ctx).Warn("eval_scenario_failed", "scenario", s.ID, "error", err)
		return Result{ScenarioID: s.ID, ScenarioName: s.Name, Status: StatusError, Error: err.Error()}
	}

	result := Evaluate(s, resp)
	result.Details["duration_ms"] = time.Since(start).Milliseconds()

	if r.verbose {
		_, _ = fmt.Fprintf(r.out, "  faithfulness %.2f  recall %.2f  grounding %.2f  translation %s  %s\n",
			result.Faithfulness, result.ContextRecall, result.Grounding, resp.DetectedTranslation, result.Status)
	}
	return result
}

// RunAll scores every scenario in order. It stops early only when ctx is done.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) (*Summary, error) {
	summary := &Summary{
		Timestamp: time.Now().Format(time.RFC3339),
		Results:   make([]Result, 0, len(scenarios)),
	}
	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result := r.Run(ctx, s)
		summary.Results = append(summary.Results, result)
		summary.Total++
		if result.Status == StatusPass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary, nil
}

// Export writes the summary as indented JSON
func (s *Summary) Export(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	return nil
}

// Select returns the scenarios whose IDs are listed, in the listed order
func Select(scenarios []Scenario, ids ...string) ([]Scenario, error) {
	if len(ids) == 0 {
		return scenarios, nil
	}
	byID := make(map[string]Scenario, len(scenarios))
	for _, s := range scenarios {
		byID[s.ID] = s
	}
	out := make([]Scenario, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", id)
		}
		out = append(out, s)
	}
	return out, nil
}

// ABOUTME: Eval command runs grounding scenarios through the chat pipeline and scores them
// ABOUTME: Exits non-zero when any scenario fails, so it can gate a model or corpus change
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/bible-chat/internal/eval"
)

var (
	evalScenarios string
	evalOnly      []string
	evalOutput    string
)

// NewEvalCmd creates the eval command
func NewEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score chat answers for retrieval recall and grounding",
		Long: `Run evaluation scenarios against the configured providers and corpus.

Each scenario is scored for faithfulness (required and forbidden phrases),
context recall (expected references retrieved) and grounding (every cited
verse was retrieved). Without --scenarios the built-in set is used.`,
		Example: `  biblechat eval
  biblechat eval --scenarios scenarios.yaml --only comfort,italian
  biblechat eval --output results.json`,
		Args: cobra.NoArgs,
		RunE: runEval,
	}

	cmd.Flags().StringVar(&evalScenarios, "scenarios", "", "YAML scenario file")
	cmd.Flags().StringSliceVar(&evalOnly, "only", nil, "Run only these scenario IDs")
	cmd.Flags().StringVarP(&evalOutput, "output", "o", "", "Write JSON results to this file")

	return cmd
}

func runEval(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}

	scenarios := eval.DefaultScenarios()
	if evalScenarios != "" {
		loaded, err := eval.LoadScenarios(evalScenarios)
		if err != nil {
			return err
		}
		scenarios = loaded
	}
	scenarios, err := eval.Select(scenarios, evalOnly...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	runner := eval.NewRunner(a.Chat, cmd.ErrOrStderr(), verbose)
	summary, err := runner.RunAll(ctx, scenarios)
	if err != nil {
		return err
	}

	if evalOutput != "" {
		if err := summary.Export(evalOutput); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Results exported to %s\n", evalOutput)
		}
	}

	if jsonOutput() {
		if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	} else {
		printEval(cmd, summary)
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", summary.Failed, summary.Total)
	}
	return nil
}

func printEval(cmd *cobra.Command, summary *eval.Summary) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCENARIO\tFAITHFUL\tRECALL\tGROUNDED\tTRANSLATION\tSTATUS\n")
	fmt.Fprintf(w, "--------\t--------\t------\t--------\t-----------\t------\n")
	for _, r := range summary.Results {
		if r.Status == eval.StatusError {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%s: %s\n", r.ScenarioID, r.Status, truncate(r.Error, 50))
			continue
		}
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
			r.ScenarioID, r.Faithfulness, r.ContextRecall, r.Grounding, r.DetectedTranslation, r.Status)
	}
	_ = w.Flush()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nPassed %d of %d\n", summary.Passed, summary.Total)
	}
}

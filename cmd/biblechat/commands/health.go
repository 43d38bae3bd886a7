// ABOUTME: Health command checks the corpus and both providers
// ABOUTME: Exits non-zero when the database is unreachable
package commands

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/bible-chat/internal/app"
)

// NewHealthCmd creates the health command
func NewHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check database and provider health",
		Long: `Check database and provider health.

The database is critical; a failing language model or embedding
provider only degrades the service.`,
		Args: cobra.NoArgs,
		RunE: runHealth,
	}

	return cmd
}

func runHealth(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	report := a.Health(ctx)
	if jsonOutput() {
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		printHealth(cmd, report)
	}

	if report.Status == app.StatusUnhealthy {
		return errors.New("service is unhealthy")
	}
	return nil
}

func printHealth(cmd *cobra.Command, report app.HealthReport) {
	names := make([]string, 0, len(report.Components))
	for name := range report.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "COMPONENT\tSTATUS\tLATENCY\tDETAIL\n")
	fmt.Fprintf(w, "---------\t------\t-------\t------\n")
	for _, name := range names {
		c := report.Components[name]
		detail := c.Error
		if provider, ok := c.Details["provider"]; ok && detail == "" {
			detail = fmt.Sprintf("%v %v", provider, c.Details["model"])
		}
		fmt.Fprintf(w, "%s\t%s\t%.0fms\t%s\n", name, c.Status, c.LatencyMS, truncate(detail, 60))
	}
	_ = w.Flush()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "\nOverall: %s\n", report.Status)
	}
}

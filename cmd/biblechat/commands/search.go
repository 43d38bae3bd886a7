// ABOUTME: CLI command to search scripture
// ABOUTME: Semantic search by default, substring search with --text
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/bible-chat/internal/core"
	"github.com/harper/bible-chat/internal/models"
)

var (
	searchLimit       int
	searchPassages    int
	searchTranslation string
	searchText        bool
)

// NewSearchCmd creates search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search scripture",
		Long: `Search verses and passages by meaning.

The query is embedded and compared against the corpus with cosine
similarity. Use --text for a plain substring search that needs no
embedding provider.

Examples:
  biblechat search "comfort when grieving"
  biblechat search --limit 10 --translation kjv "fear not"
  biblechat search --text "shepherd"
  biblechat search --format json "hope"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum verses to return")
	cmd.Flags().IntVar(&searchPassages, "passages", core.DefaultMaxPassages, "Maximum passages to return (0 to skip)")
	cmd.Flags().StringVarP(&searchTranslation, "translation", "t", "", "Translation code (default: all translations)")
	cmd.Flags().BoolVar(&searchText, "text", false, "Substring search instead of semantic search")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}
	maxLimit := core.MaxVersesLimit
	if searchText {
		maxLimit = core.MaxTextLimit
	}
	if err := validateRange(searchLimit, 1, maxLimit, "limit"); err != nil {
		return err
	}
	if err := validateRange(searchPassages, 0, core.MaxPassagesLimit, "passages"); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var resp *core.SearchResponse
	if searchText {
		resp, err = a.Search.TextSearch(ctx, args[0], searchTranslation, searchLimit)
	} else {
		req := core.NewSearchRequest(args[0], searchTranslation)
		req.MaxVerses = searchLimit
		req.MaxPassages = searchPassages
		resp, err = a.Search.Search(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("searching scripture: %w", err)
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), resp)
	}

	out := cmd.OutOrStdout()
	if resp.Degraded && !quiet {
		fmt.Fprintln(out, "Semantic search is unavailable right now (embedding provider unreachable).")
	}
	if len(resp.Verses) == 0 && len(resp.Passages) == 0 {
		if !quiet {
			fmt.Fprintf(out, "No scripture found for query: %s\n", args[0])
		}
		return nil
	}

	printResults(cmd, resp.Verses, resp.Passages)
	if !quiet {
		fmt.Fprintf(out, "\nFound %d verse(s), %d passage(s)\n", len(resp.Verses), len(resp.Passages))
	}
	return nil
}

func printResults(cmd *cobra.Command, verses, passages []models.SearchResult) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tREFERENCE\tTRANSLATION\tTEXT\n")
	fmt.Fprintf(w, "-----\t---------\t-----------\t----\n")
	for _, r := range verses {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", r.Similarity, r.Reference, r.Translation, truncate(r.Text, 70))
	}
	for _, r := range passages {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", r.Similarity, r.Reference, "passage", truncate(r.Title+": "+r.Text, 70))
	}
	_ = w.Flush()
}

// ABOUTME: CLI command to look up verses by reference
// ABOUTME: Accepts localized book names and ranges, optionally with surrounding context
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/bible-chat/internal/citation"
	"github.com/harper/bible-chat/internal/core"
)

var (
	verseTranslation string
	verseContext     int
	verseExplain     bool
)

// NewVerseCmd creates the verse command
func NewVerseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verse <reference>",
		Short: "Look up a verse or range",
		Long: `Look up a verse or range by reference.

References may use English or localized book names and may span
chapters: "John 3:16", "Psalm 23:1-6", "Giovanni 3:16-4:2".

Examples:
  biblechat verse "John 3:16"
  biblechat verse --translation ita1927 "Giovanni 3:16"
  biblechat verse --context 2 "Romans 8:28"
  biblechat verse --explain "Romans 8:28"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runVerse,
	}

	cmd.Flags().StringVarP(&verseTranslation, "translation", "t", "", "Translation code (default: configured default)")
	cmd.Flags().IntVar(&verseContext, "context", 0, "Verses of context either side of a single verse")
	cmd.Flags().BoolVar(&verseExplain, "explain", false, "Ask the language model to explain the verse")

	return cmd
}

func runVerse(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}
	if err := validateRange(verseContext, 0, 10, "context"); err != nil {
		return err
	}

	reference := strings.Join(args, " ")
	ref, err := citation.Parse(reference)
	if err != nil {
		return err
	}
	if (verseContext > 0 || verseExplain) && ref.IsRange() {
		return fmt.Errorf("--context and --explain need a single verse, got %s", ref)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if verseExplain {
		resp, err := a.Chat.ExplainVerse(ctx, core.ExplainRequest{
			Book:        ref.Canonical,
			Chapter:     ref.Chapter,
			Verse:       ref.Verse,
			Translation: verseTranslation,
		})
		if err != nil {
			return err
		}
		if jsonOutput() {
			return writeJSON(cmd.OutOrStdout(), resp)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	}

	var lookup *core.Lookup
	if verseContext > 0 {
		lookup, err = a.Scripture.Context(ctx, ref.Canonical, ref.Chapter, ref.Verse, verseContext, verseTranslation)
	} else {
		lookup, err = a.Scripture.Reference(ctx, reference, verseTranslation)
	}
	if err != nil {
		return err
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), lookup)
	}

	out := cmd.OutOrStdout()
	if !quiet {
		fmt.Fprintf(out, "%s (%s)\n\n", lookup.Reference, lookup.TranslationName)
	}
	for _, v := range lookup.Verses {
		marker := " "
		if verseContext > 0 && v.Chapter == ref.Chapter && v.Verse == ref.Verse {
			marker = ">"
		}
		fmt.Fprintf(out, "%s %d:%d  %s\n", marker, v.Chapter, v.Verse, v.Text)
	}
	return nil
}

// ABOUTME: CLI commands to list translations and remember a preferred one
// ABOUTME: The preference is stored in the XDG config directory and used by chat
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/models"
)

// NewTranslationsCmd creates the translations command and its set subcommand
func NewTranslationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "translations",
		Aliases: []string{"translation"},
		Short:   "List available translations",
		Long: `List the translations in the corpus.

The default translation is marked with *, the saved preference with >.

Examples:
  biblechat translations
  biblechat translations --format json
  biblechat translations set kjv`,
		Args: cobra.NoArgs,
		RunE: runTranslations,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <code>",
		Short: "Remember a preferred translation",
		Long: `Remember a preferred translation for chat.

The preference applies when a message gives no stronger signal, such
as --translation or text written in another language.`,
		Args: cobra.ExactArgs(1),
		RunE: runTranslationsSet,
	})

	return cmd
}

func runTranslations(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	translations := a.Scripture.Translations()
	def := a.Resolver.Catalog().Default()
	prefs, err := models.LoadPreferences()
	if err != nil {
		prefs = &models.Preferences{}
	}

	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"translations": translations,
			"default":      def,
			"preferred":    prefs.Translation,
		})
	}

	if len(translations) == 0 {
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "No translations loaded. Check the corpus database configuration.")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, " \tCODE\tNAME\tLANGUAGE\tEMBEDDING MODEL\n")
	fmt.Fprintf(w, " \t----\t----\t--------\t---------------\n")
	for _, t := range translations {
		marker := ""
		if t.Code == def {
			marker += "*"
		}
		if t.Code == prefs.Translation {
			marker += ">"
		}
		model := t.EmbeddingModel
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", marker, t.Code, truncate(t.Name, 40), t.Language, model)
	}
	return w.Flush()
}

func runTranslationsSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	code := strings.ToLower(strings.TrimSpace(args[0]))
	t, ok := a.Resolver.Catalog().Get(code)
	if !ok {
		return &apperr.TranslationNotFoundError{Code: code}
	}

	prefs, err := models.LoadPreferences()
	if err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}
	prefs.Merge(models.Preferences{Translation: t.Code, Language: t.LanguageCode})
	if err := prefs.Save(); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Preferred translation set to %s (%s)\n", t.Code, t.Name)
	}
	return nil
}

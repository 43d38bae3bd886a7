// ABOUTME: Root command, global flags and shared setup for every subcommand
// ABOUTME: Loads .env and configuration lazily so version and help work without a corpus
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harper/bible-chat/internal/app"
	"github.com/harper/bible-chat/internal/config"
	"github.com/harper/bible-chat/internal/logging"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
	configPath   string
)

const banner = `
██████╗ ██╗██████╗ ██╗     ███████╗     ██████╗██╗  ██╗ █████╗ ████████╗
██╔══██╗██║██╔══██╗██║     ██╔════╝    ██╔════╝██║  ██║██╔══██╗╚══██╔══╝
██████╔╝██║██████╔╝██║     █████╗      ██║     ███████║███████║   ██║
██╔══██╗██║██╔══██╗██║     ██╔══╝      ██║     ██╔══██║██╔══██║   ██║
██████╔╝██║██████╔╝███████╗███████╗    ╚██████╗██║  ██║██║  ██║   ██║
╚═════╝ ╚═╝╚═════╝ ╚══════╝╚══════╝     ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "biblechat",
		Short: "Scripture-grounded chat and search",
		Long: banner + `

Bible Chat answers questions with encouragement grounded in retrieved
scripture. It searches verses and passages semantically, looks up
references in several languages, and serves the same features over
HTTP and MCP.

Providers are configured with environment variables (LLM_PROVIDER,
EMBEDDING_PROVIDER, OPENAI_API_KEY, ...) or a YAML file via --config.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// a missing .env is normal outside development
			_ = godotenv.Load()
			if configPath != "" {
				_ = os.Setenv("BIBLECHAT_CONFIG", configPath)
			}
			setupLogging()
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, table, json")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewServeCmd(),
		NewMCPCmd(),
		NewChatCmd(),
		NewSearchCmd(),
		NewVerseCmd(),
		NewTranslationsCmd(),
		NewHealthCmd(),
		NewEvalCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func setupLogging() {
	level, format := "info", "text"
	if cfg, err := config.Load(); err == nil {
		level, format = cfg.LogLevel, cfg.LogFormat
	}
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	logging.Init(level, format, os.Stderr)
}

// openApp loads configuration and opens the corpus and providers
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("starting bible chat: %w", err)
	}
	return a, nil
}

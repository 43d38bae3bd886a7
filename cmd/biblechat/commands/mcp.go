// ABOUTME: mcp command serves the scripture tools over the Model Context Protocol on stdio
// ABOUTME: Stdout carries protocol frames only; all logging goes to stderr
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/harper/bible-chat/internal/logging"
	"github.com/harper/bible-chat/internal/mcp"
)

const mcpServerName = "Bible Chat"

// NewMCPCmd creates the mcp command
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve scripture tools to MCP clients over stdio",
		Long: `Serve scripture tools to MCP clients over stdio.

Agents connected through the Model Context Protocol can search the
corpus, look up and explain verses, hold grounded conversations and
store a preferred translation. The process reads requests on stdin and
writes responses on stdout until the client disconnects or it receives
SIGINT or SIGTERM.`,
		Example: `  biblechat mcp

  # claude_desktop_config.json
  # {"mcpServers": {"bible-chat": {"command": "biblechat", "args": ["mcp"]}}}`,
		Args: cobra.NoArgs,
		RunE: runMCP,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	server := mcpserver.NewMCPServer(mcpServerName, resolvedVersion().Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	mcp.RegisterTools(server, a)

	stdio := mcpserver.NewStdioServer(server)
	stdio.SetErrorLogger(slog.NewLogLogger(logging.Logger().Handler(), slog.LevelError))

	logger := logging.Logger()
	logger.Info("mcp_server_starting", "transport", "stdio", "version", resolvedVersion().Version)

	err = stdio.Listen(ctx, os.Stdin, os.Stdout)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("mcp server: %w", err)
	}
}

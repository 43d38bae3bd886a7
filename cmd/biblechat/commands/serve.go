// ABOUTME: Serve command runs the HTTP API until interrupted
// ABOUTME: Shuts down gracefully on SIGINT or SIGTERM, draining in-flight streams
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/bible-chat/internal/api"
	"github.com/harper/bible-chat/internal/logging"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API

Serves chat (JSON, server-sent events and WebSocket), scripture search
and lookups under /api/v1, plus /health, /health/live and /health/ready.`,
		Example: `  # Listen on the configured SERVER_ADDR (default :8080)
  biblechat serve

  # Listen on another port
  biblechat serve --addr :9000`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides SERVER_ADDR)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	addr := a.Config.ServerAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	server := api.NewServer(a, resolvedVersion().Version)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(addr)
	}()
	logging.Logger().Info("server_started", "addr", addr)

	select {
	case <-ctx.Done():
		logging.Logger().Info("server_stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

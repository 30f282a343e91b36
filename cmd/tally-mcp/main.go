// Command tally-mcp serves the intake pipeline as MCP tools over stdio or
// streamable HTTP, chosen by MCP_TRANSPORT.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/p-blackswan/tally/internal/app"
	"github.com/p-blackswan/tally/internal/config"
	"github.com/p-blackswan/tally/internal/mcpserver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := app.NewLogger("", "info", os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	// stdout carries the protocol in stdio mode, so logs always go to stderr.
	logger := app.NewLogger("", cfg.LogLevel, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline")
	}
	defer a.Close()

	srv := mcpserver.New(a.Intake, a.Store, a.Namer, logger)

	switch cfg.MCPTransport {
	case "http":
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return srv
		}, nil)
		server := &http.Server{Addr: cfg.MCPListenAddr, Handler: handler}

		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		logger.Info().Str("addr", cfg.MCPListenAddr).Msg("MCP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("MCP HTTP server error")
		}
	default:
		logger.Info().Msg("MCP server starting (stdio)")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("MCP server error")
		}
	}
	logger.Info().Msg("MCP server stopped")
}

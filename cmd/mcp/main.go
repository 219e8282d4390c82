package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	mcpadapter "github.com/kirillkom/legal-assistant/internal/adapters/mcp"
	"github.com/kirillkom/legal-assistant/internal/bootstrap"
	"github.com/kirillkom/legal-assistant/internal/config"
	"github.com/kirillkom/legal-assistant/internal/observability/logging"
)

const (
	serviceName = "legal-mcp"
	version     = "0.1.0"
)

// stdout carries the MCP protocol, so logs go to stderr.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewTextLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if _, err := app.Indexer.Rebuild(ctx); err != nil {
		logger.Error("initial_index_build_failed", "error", err)
	}
	if app.Queue != nil {
		go func() {
			if err := app.Queue.SubscribeRebuild(ctx, app.Indexer.HandleRebuildRequest); err != nil {
				logger.Error("rebuild_subscription_failed", "error", err)
			}
		}()
	}

	if err := mcpadapter.NewServer(app.Assistant, version, logger).ServeStdio(); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}

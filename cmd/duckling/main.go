package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/comigor/duckling-go/internal/agent"
	"github.com/comigor/duckling-go/internal/config"
	"github.com/comigor/duckling-go/internal/conversation"
	"github.com/comigor/duckling-go/internal/dedupe"
	"github.com/comigor/duckling-go/internal/history"
	"github.com/comigor/duckling-go/internal/kv"
	"github.com/comigor/duckling-go/internal/line"
	"github.com/comigor/duckling-go/internal/llm"
	"github.com/comigor/duckling-go/internal/logger"
	"github.com/comigor/duckling-go/internal/schedule"
	"github.com/comigor/duckling-go/internal/session"
	"github.com/comigor/duckling-go/internal/webhook"
	"github.com/comigor/duckling-go/pkg/tools"
)

func main() {
	if err := run(); err != nil {
		logger.L.Error("duckling stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := kv.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	manager := tools.NewToolManager(
		tools.NewDocumentTool(cfg.Documents),
		tools.NewCurrentTimeTool(cfg.Tools.Timezone),
	)

	if cfg.Events.Enabled {
		events, err := schedule.Open(ctx, cfg.Events.SQLitePath)
		if err != nil {
			return err
		}
		defer events.Close()
		manager.RegisterTool(tools.NewCreateEventTool(events, cfg.Tools.Timezone))
		manager.RegisterTool(tools.NewUpcomingEventsTool(events, cfg.Tools.Timezone, cfg.Events.UpcomingLimit))
	}

	mcpTools, mcpClients := tools.ConnectMCPServers(ctx, cfg.MCPServers)
	// built-in tools win over MCP tools of the same name
	for _, t := range mcpTools {
		manager.AddTool(t)
	}
	defer func() {
		for _, c := range mcpClients {
			if err := c.Close(); err != nil {
				logger.L.Warn("MCP client close error", "error", err)
			}
		}
	}()

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return err
	}

	controller := conversation.New(*cfg,
		history.NewStore(store, cfg.Conversation.HistoryLimit),
		session.NewStore(store),
		line.NewClient(cfg.LINE),
		agent.New(llmClient, cfg.LLM, manager),
	)

	seen := dedupe.New(cfg.Server.DedupeTTL, cfg.Server.DedupeSize)
	defer seen.Close()

	hooks := webhook.New(controller, cfg.LINE.ChannelSecret, seen)
	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           hooks.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("starting server", "address", srv.Addr, "tools", len(manager.List()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L.Warn("http shutdown", "error", err)
	}

	done := make(chan struct{})
	go func() {
		hooks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.L.Warn("shutdown timeout reached with events still in flight")
	}
	return nil
}

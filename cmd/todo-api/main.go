package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/PabloGalante/todo-agent/internal/adapters/http"
	"github.com/PabloGalante/todo-agent/internal/app/agentflow"
	"github.com/PabloGalante/todo-agent/internal/app/conversation"
	"github.com/PabloGalante/todo-agent/internal/app/intent"
	"github.com/PabloGalante/todo-agent/internal/app/tools"
	"github.com/PabloGalante/todo-agent/internal/bootstrap"
	"github.com/PabloGalante/todo-agent/internal/config"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

func main() {
	log := observability.Logger()

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("could not read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	observability.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Error("error initializing storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	llmClient, err := bootstrap.NewLLM(ctx, cfg)
	if err != nil {
		log.Error("error initializing llm client", "error", err)
		os.Exit(1)
	}

	pipeline := bootstrap.NewPipeline(cfg, stores)
	defer pipeline.Close()

	registry := tools.NewRegistry(tools.NewTaskTools(pipeline.Tasks)...)
	orchestrator := agentflow.NewDefaultOrchestrator(llmClient, intent.NewExtractor(), registry)
	conversations := conversation.NewService(
		stores.Sessions,
		stores.Messages,
		orchestrator,
		conversation.WithHistoryLimit(cfg.HistoryLimit),
	)

	handler := httpadapter.NewServer(httpadapter.Deps{
		Conversations: conversations,
		Tasks:         pipeline.Tasks,
		Audit:         pipeline.Audit,
		OnEvent:       pipeline.OnEvent,
		PubsubName:    cfg.PubsubName,
		EventsTopic:   cfg.EventsTopic,
		CORSOrigins:   cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	log.Info("todo api listening",
		"addr", srv.Addr,
		"mode", cfg.Mode,
		"storage_backend", cfg.StorageBackend,
		"event_transport", cfg.EventTransport,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("todo api stopped")
}

package main

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/PabloGalante/todo-agent/internal/adapters/mcp"
	"github.com/PabloGalante/todo-agent/internal/app/tools"
	"github.com/PabloGalante/todo-agent/internal/bootstrap"
	"github.com/PabloGalante/todo-agent/internal/config"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

var version = "dev"

func main() {
	log := observability.Logger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("could not read .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	observability.SetLevel(cfg.LogLevel)

	ctx := context.Background()
	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		log.Error("error initializing storage", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	pipeline := bootstrap.NewPipeline(cfg, stores)
	defer pipeline.Close()

	registry := tools.NewRegistry(tools.NewTaskTools(pipeline.Tasks)...)
	s := mcpadapter.NewServer(registry, version)

	log.Info("todo mcp server on stdio", "storage_backend", cfg.StorageBackend)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"badge-studio/internal/cache"
	"badge-studio/internal/config"
	"badge-studio/internal/generator"
	"badge-studio/internal/handlers"
	"badge-studio/internal/storage"

	"github.com/gofiber/fiber/v2/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	images, err := cache.New(cfg.CacheDir)
	if err != nil {
		log.Fatalf("❌ Failed to initialise cache: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open template store: %v", err)
	}
	defer store.Close()

	dir, err := storage.LoadDirectory(cfg.Directory)
	if err != nil {
		log.Fatalf("❌ Failed to load participant directory: %v", err)
	}

	renderer := generator.New(images,
		generator.WithDPI(cfg.Generation.DPI),
		generator.WithFontDir(cfg.Generation.FontDir),
		generator.WithCardSize(cfg.Generation.CardWidth, cfg.Generation.CardHeight),
		generator.WithConcurrency(cfg.Generation.Concurrency),
	)
	app := handlers.NewApp(handlers.New(store, dir, renderer, images, cfg.Generation), cfg)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down")
		app.Shutdown()
	}()

	log.Infof("🚀 Badge service starting on port %s", cfg.Port)
	log.Infof("📁 Cache directory: %s", images.Dir())
	if !cfg.Generation.Enabled {
		log.Warn("Badge generation is disabled")
	}

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Errorf("❌ Failed to start server: %v", err)
		os.Exit(1)
	}
}

// openStore uses Postgres when DATABASE_URL is set, migrating it first,
// and JSON files under DATA_DIR otherwise.
func openStore(cfg *config.Config) (storage.TemplateStore, error) {
	if cfg.DatabaseURL == "" {
		log.Infof("Storing templates in %s", cfg.DataDir)
		return storage.NewFileStore(filepath.Join(cfg.DataDir, "templates"))
	}

	changed, err := storage.Migrate(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if changed {
		log.Info("Database migrations applied")
	}
	return storage.NewPostgresStore(context.Background(), cfg.DatabaseURL)
}

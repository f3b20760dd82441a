package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atlas-graph/infrastructure/config"
	"atlas-graph/infrastructure/di"
	"atlas-graph/infrastructure/persistence/schema"
	"atlas-graph/interfaces/http/rest"
	"atlas-graph/interfaces/ops"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "config"
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Local development runs against dynamodb-local; make sure the table
	// exists before taking traffic.
	if cfg.IsDevelopment() && cfg.AWS.Endpoint != "" {
		bootstrap := schema.NewBootstrap(container.DynamoClient, container.Logger)
		if err := bootstrap.EnsureTable(ctx, cfg.AWS.TableName); err != nil {
			container.Logger.Fatal("Failed to bootstrap table", zap.Error(err))
		}
	}

	container.Start(ctx)

	watcher, err := config.NewWatcher(configDir, func(updated *config.Config) {
		container.Logger.Info("Engine configuration updated; restart to apply listener or backend changes",
			zap.Int("maxTraversalDepth", updated.DomainConfig().MaxTraversalDepth),
		)
	}, container.Logger)
	if err != nil {
		container.Logger.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		watcher.Start(ctx)
	}

	router := rest.NewRouter(
		container.CommandBus,
		container.QueryBus,
		cfg,
		container.Metrics,
		container.RateLimiter,
		container.Logger,
	)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	opsServer := ops.NewServer(cfg.Server.OpsAddress, container.Metrics, container.Logger, map[string]ops.ReadyCheck{
		"dynamodb": func(ctx context.Context) error {
			_, err := container.NodeRepo.ListActive(ctx, 1)
			return err
		},
	})

	go func() {
		container.Logger.Info("Starting server",
			zap.String("address", cfg.Server.Address),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	go func() {
		if err := opsServer.Start(); err != nil {
			container.Logger.Error("Ops server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Ops server shutdown error", zap.Error(err))
	}

	container.Shutdown()
	log.Println("Server stopped")
}

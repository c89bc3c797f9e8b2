package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/config"
	"github.com/garyjia/site-invoices/internal/container"
	httpapi "github.com/garyjia/site-invoices/internal/interfaces/http"
	"github.com/garyjia/site-invoices/pkg/utils"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "site-invoices",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting site invoice service",
		zap.String("config", configPath),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer c.Close()

	if err := c.StartWorkers(); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	services := c.Services()
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, httpapi.Dependencies{
		Drafts:      services.Drafts,
		Ledger:      services.Ledger,
		Capture:     c.Storage().Staging,
		Attachments: c.Store(),
		Extractor:   c.Extractor(),
		Health: func() (bool, interface{}) {
			status := c.Health()
			return status.Overall, status.Components
		},
	}, container.NewServiceLogger(logger))

	// Start blocks until a signal cancels ctx
	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server stopped with error", zap.Error(err))
		return
	}

	logger.Info("Server exited successfully")
}

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"detectionsite/internal/app"
	"detectionsite/internal/config"
	"detectionsite/internal/logger"
)

func main() {
	cfg := config.Load()
	appLogger := logger.NewLogger(cfg)
	defer appLogger.Close()

	application, err := app.NewApp(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

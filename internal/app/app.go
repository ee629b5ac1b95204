package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"detectionsite/internal/config"
	"detectionsite/internal/logger"
	"detectionsite/internal/repository/sqlite"
	"detectionsite/internal/route"
	"detectionsite/internal/service"
	"detectionsite/internal/service/ai"
	"detectionsite/internal/service/ai/detr"
	"detectionsite/internal/service/storage"
	"detectionsite/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	models     *ai.Registry
	hubService *websocket.HubService
	feeds      *service.FeedService
	pipeline   *service.Pipeline
}

func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	detections := sqlite.NewDetectionRepository(db)
	files := storage.NewFileStore(cfg, logger)
	feeds := service.NewFeedService(sqlite.NewUserRepository(db), sqlite.NewFeedRepository(db),
		detections, files, logger)

	models := ai.NewRegistry(cfg.CacheModels, logger)
	RegisterModels(models, cfg)

	hub := websocket.NewHubService(logger)

	return &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		models:     models,
		hubService: hub,
		feeds:      feeds,
		pipeline:   service.NewPipeline(feeds, detections, models, hub, logger),
	}, nil
}

func (a *App) Feeds() *service.FeedService {
	return a.feeds
}

func (a *App) Pipeline() *service.Pipeline {
	return a.pipeline
}

// Run serves HTTP until ctx is cancelled, then shuts the server down.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hubService.Run(hubCtx)

	router := route.SetupRoutes(a.config, a.logger, a.feeds, a.pipeline, a.hubService)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: router,
	}

	a.logger.Info("Object detection server on http://localhost:%d", a.config.Port)
	a.logger.Info("Media: %s, database: %s", a.feeds.Files().Root(), a.config.DatabasePath)
	a.logger.Info("Models: %v (cache: %v)", a.models.Names(), a.config.CacheModels)

	errCh := make(chan error, 1)
	go func() {
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

	a.logger.Info("Shutting down, %d viewer(s) connected", a.hubService.GetClientCount())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// Close releases models and the database.
func (a *App) Close() {
	a.models.Close()
	if err := detr.ShutdownRuntime(); err != nil {
		a.logger.Warning("Failed to shut down onnxruntime: %v", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warning("Failed to close database: %v", err)
	}
}

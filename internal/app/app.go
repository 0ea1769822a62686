package app

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"truckmeasure/internal/config"
	"truckmeasure/internal/logger"
	"truckmeasure/internal/repository/sqlite"
	"truckmeasure/internal/routes"
	"truckmeasure/internal/services"
	"truckmeasure/internal/services/ai"
	"truckmeasure/internal/services/storage"
	"truckmeasure/internal/services/websocket"
)

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	manager       *services.Manager
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg.LogDirectory)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	repo := sqlite.NewMeasurementRepository(db)

	// One detector per worker, the inference sessions are not concurrency safe.
	detectors := make([]ai.Detector, 0, cfg.ProcessingWorkers)
	for i := 0; i < cfg.ProcessingWorkers; i++ {
		detector, err := ai.NewDetector(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create detector: %w", err)
		}
		detectors = append(detectors, detector)
	}

	buffer := storage.NewBufferService(cfg.ImageDirectory, cfg.ImageBufferLimit, cfg.ThumbnailWidth, log)
	hub := websocket.NewHubService(log)

	manager := services.NewManager(detectors, buffer, hub, repo, cfg, log)

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		bufferService: buffer,
		hubService:    hub,
		manager:       manager,
	}, nil
}

func (a *App) Run() error {
	// Start background services
	go a.bufferService.Run(a.config.ImageBufferFlushInterval)
	go a.hubService.Run()

	// Setup routes
	router := routes.SetupRoutes(a.manager, a.config, a.logger)

	fmt.Printf("🚛 Truck Measurement Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🤖 Detector backend: %s (%s)\n", a.config.DetectorBackend, a.config.ModelPath)
	fmt.Printf("📁 Images: %s\n", a.config.ImageDirectory)
	fmt.Printf("🗄️  Database: %s\n", a.config.DatabasePath)

	return http.ListenAndServe(fmt.Sprintf(":%d", a.config.Port), router)
}

// Close flushes buffered images and releases the pipeline and database.
func (a *App) Close() {
	a.manager.Stop()
	a.bufferService.FlushImages()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database: %v", err)
	}
}

// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	_ "escpos-service/docs"
	"escpos-service/internal/capture"
	"escpos-service/internal/config"
	"escpos-service/internal/database"
	"escpos-service/internal/handler"
	"escpos-service/internal/repository"
	"escpos-service/internal/routes"
	"escpos-service/internal/service"
	"escpos-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB
	migrator *database.Migrator

	// Repositories
	jobRepo repository.JobRepository

	// Services
	jobService *service.JobService
	eventBus   *handler.EventBus
	wsHandler  *handler.WebSocketHandler

	// Capture
	sources    []capture.Source
	cancel     context.CancelFunc
	captureRun chan struct{}
}

// @title ESC/POS Capture Service API
// @version 1.0.0
// @description Captures raw ESC/POS print jobs, decodes them into commands and renders barcodes

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8084
// @BasePath /
func main() {
	configPath := flag.StringP("config", "c", "", "path to config file")
	flag.Parse()

	// Initialize application
	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Start the application
	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	// Load configuration
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "escpos-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg.App)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	// Initialize components
	if err := app.initializeStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.initializeServices()

	if err := app.initializeCapture(); err != nil {
		app.closeStorage()
		return nil, fmt.Errorf("failed to initialize capture: %w", err)
	}

	app.initializeServer()

	return app, nil
}

// initializeStorage selects the job repository and, for postgres, connects
// and runs migrations
func (app *Application) initializeStorage() error {
	if app.config.Storage.Driver != "postgres" {
		app.jobRepo = repository.NewMemoryJobRepository(app.logger)
		app.logger.Info("Using in-memory job history",
			zap.Int("max_jobs", app.config.Jobs.MaxJobs),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewConnection(ctx, app.config.GetDatabaseDSN(), &app.config.Storage.Database, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db
	app.migrator = database.NewMigrator(db, app.logger)

	if app.config.Storage.RunMigrations {
		if err := app.migrator.Up(); err != nil {
			db.Close()
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	app.jobRepo = repository.NewJobRepository(db, app.config.Storage.CompressPayloads, app.logger)

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeServices creates service instances
func (app *Application) initializeServices() {
	app.eventBus = handler.NewEventBus(app.logger)
	app.jobService = service.NewJobService(app.jobRepo, app.config, app.eventBus, app.logger)
	app.wsHandler = handler.NewWebSocketHandler(
		app.jobService,
		app.eventBus,
		app.config.Security.AllowedOrigins,
		app.logger,
	)

	app.logger.Info("Services initialized successfully")
}

// initializeCapture opens the configured capture sources
func (app *Application) initializeCapture() error {
	tcpCfg := app.config.Capture.TCP
	if tcpCfg.Enabled {
		listener, err := capture.Listen(capture.ListenerConfig{
			Address:            tcpCfg.Address,
			ReadTimeout:        tcpCfg.ReadTimeout,
			AcceptPollInterval: tcpCfg.AcceptPollInterval,
			ReadBufferSize:     tcpCfg.ReadBufferSize,
			QueueSize:          tcpCfg.QueueSize,
		}, app.logger)
		if err != nil {
			return err
		}
		app.sources = append(app.sources, listener)
	}

	serialCfg := app.config.Capture.Serial
	if serialCfg.Enabled {
		port, err := capture.OpenSerial(capture.SerialConfig{
			Port:           serialCfg.Port,
			BaudRate:       serialCfg.BaudRate,
			DataBits:       serialCfg.DataBits,
			StopBits:       serialCfg.StopBits,
			Parity:         serialCfg.Parity,
			IdleTimeout:    serialCfg.IdleTimeout,
			QueueSize:      tcpCfg.QueueSize,
		}, app.logger)
		if err != nil {
			for _, src := range app.sources {
				src.Stop()
			}
			app.sources = nil
			return err
		}
		app.sources = append(app.sources, port)
	}

	if len(app.sources) == 0 {
		app.logger.Warn("No capture source enabled, jobs can only be imported")
	}
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.migrator,
		app.jobService,
		app.wsHandler,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)
}

// startBackgroundServices starts event distribution and job capture
func (app *Application) startBackgroundServices() {
	go app.eventBus.Start()
	go app.wsHandler.Start()

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.captureRun = make(chan struct{})
	go func() {
		defer close(app.captureRun)
		app.jobService.Run(ctx, app.sources...)
	}()

	app.logger.Info("Background services started",
		zap.Int("capture_sources", len(app.sources)),
	)
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "escpos-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop capture first so no new jobs arrive
	if app.cancel != nil {
		app.cancel()
		select {
		case <-app.captureRun:
			app.logger.Info("Capture stopped")
		case <-ctx.Done():
			app.logger.Warn("Timed out waiting for capture to stop")
		}
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	app.wsHandler.Stop()
	app.eventBus.Stop()

	app.closeStorage()

	app.logger.Info("Application shutdown completed")

	// Flush logger
	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// closeStorage closes the database connection if one is open
func (app *Application) closeStorage() {
	if app.database == nil {
		return
	}
	if err := app.database.Close(); err != nil {
		app.logger.Error("Database close error", zap.Error(err))
	} else {
		app.logger.Info("Database connection closed")
	}
}

// Start runs the server and background services until a shutdown signal
func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(
				app.config.Server.TLS.CertFile,
				app.config.Server.TLS.KeyFile,
			)
		} else {
			err = app.server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()

	app.waitForShutdown()

	return nil
}

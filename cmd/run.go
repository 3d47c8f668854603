package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"arcade/api"
	"arcade/config"
	"arcade/database"
	"arcade/events"
	"arcade/observability"
	"arcade/repository"
	"arcade/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	// Load configuration
	cfg := config.Get()
	ConfigureLogging(cfg)

	log.WithField("environment", cfg.Environment).Info("Starting arcade ledger...")

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()

	if cfg.NATSServers != "" {
		natsConn, err := events.ConnectNATS(cfg.NATSServers)
		if err != nil {
			return err
		}
		defer natsConn.Drain()
		events.NewNATSForwarder(natsConn).Attach(eventBus)
	} else {
		log.Info("NATS_SERVERS not set, events stay in-process")
	}

	// Initialize metrics
	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to flush metrics")
		}
	}()
	metrics.Attach(eventBus)

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize services
	services, err := NewServices(uowFactory, cfg)
	if err != nil {
		return err
	}

	// Start background workers
	stopPurger := service.NewIdempotencyPurger(uowFactory, cfg).Start(ctx)
	defer stopPurger()

	// Initialize HTTP server
	mode := gin.DebugMode
	if cfg.Environment == "production" {
		mode = gin.ReleaseMode
	}
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(services, metrics, mode),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for context cancellation or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server did not shut down cleanly")
	}

	log.Info("Shutdown completed")
	return nil
}

// NewServices builds every service the HTTP layer depends on
func NewServices(uowFactory service.UnitOfWorkFactory, cfg *config.Config) (api.Services, error) {
	hasher, err := service.NewCredentialHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return api.Services{}, err
	}

	return api.Services{
		Users:        service.NewUserService(uowFactory, hasher, cfg),
		Sessions:     service.NewSessionService(uowFactory, cfg),
		Ledger:       service.NewLedgerService(uowFactory),
		Transfers:    service.NewTransferService(uowFactory, cfg),
		Leaderboards: service.NewLeaderboardService(uowFactory, cfg),
	}, nil
}

// ConfigureLogging applies the configured level, switching to JSON output in production
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

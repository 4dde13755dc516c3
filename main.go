package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"civicroute/auth"
	"civicroute/config"
	"civicroute/handler"
	"civicroute/middleware"
	"civicroute/models"
	"civicroute/notification"
	"civicroute/repository"
	"civicroute/routes"
	"civicroute/schema"
	"civicroute/service"
	"civicroute/worker"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	logger := newLogger(os.Getenv("LOG_LEVEL"))

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize database connection (UTC for consistent timestamps)
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
	)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database connection")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}
	logger.Info().Msg("Database connection established")

	if err := schema.InitializeDatabase(db, logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database schema")
	}
	if err := schema.ValidateRequiredColumns(db, logger); err != nil {
		logger.Fatal().Err(err).Msg("Database schema is out of date")
	}

	// Optional Redis: mapping cache and scan lock. Missing Redis is not fatal.
	ctx := context.Background()
	redisClient, locker, err := config.ConnectRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, continuing without mapping cache or scan lock")
	}

	// Initialize repositories
	complaintRepo := repository.NewComplaintRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	processedRepo := repository.NewProcessedRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	if err := mappingRepo.SeedDefaults(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default mappings")
	}

	// The resolver reads through the Redis cache when available; rule CRUD
	// always goes to the repository directly.
	var mappingStore service.MappingStore = mappingRepo
	var cacheInvalidator handler.MappingCacheInvalidator
	if redisClient != nil {
		cached := repository.NewCachedMappingStore(mappingRepo, redisClient, cfg.Redis.CacheTTL, logger)
		mappingStore = cached
		cacheInvalidator = cached
	}

	// Enrichment policy: compiled defaults with env overrides
	policy := models.DefaultEnrichmentPolicy()
	if cfg.Policy.DefaultDepartment != "" {
		policy.DefaultDepartment = cfg.Policy.DefaultDepartment
	}

	// Initialize services
	mappingService := service.NewMappingService(mappingStore, policy, logger)
	enrichmentService := service.NewEnrichmentService(mappingService, policy, logger)
	complaintService := service.NewComplaintService(complaintRepo, processedRepo, enrichmentService, policy, cfg.Workers.StatsScanLimit, logger)

	sinks := []notification.Sink{notification.NewLogSink(logger)}
	if cfg.Dashboard.WebhookURL != "" {
		sinks = append(sinks, notification.NewWebhookSink(cfg.Dashboard.WebhookURL))
		logger.Info().Msg("Webhook notification sink enabled")
	}
	notificationService := service.NewNotificationService(
		notificationRepo,
		sinks,
		nil, // Use default config
		logger,
	)

	slaService := service.NewSLAService(
		complaintRepo,
		enrichmentService,
		notificationService,
		policy,
		locker,
		cfg.Workers.SLAScanLimit,
		logger,
	)

	streamService := service.NewStreamService(complaintService, cfg.Workers.StreamInterval, logger)
	defer streamService.Close()

	// Start background workers (env-gated)
	if cfg.Workers.PipelineEnabled {
		pipelineWorker := worker.NewPipelineWorker(
			complaintRepo,
			processedRepo,
			enrichmentService,
			notificationService,
			cfg.Workers.PipelineInterval,
			cfg.Workers.PipelineBatchSize,
			logger,
		)
		pipelineWorker.Start()
	} else {
		logger.Info().Msg("Pipeline worker disabled")
	}

	if cfg.Workers.SLAEnabled {
		slaWorker := worker.NewSLAWorker(slaService, cfg.Workers.SLAInterval, logger)
		slaWorker.Start()
	} else {
		logger.Info().Msg("SLA worker disabled")
	}

	if cfg.Workers.NotificationEnabled {
		notificationWorker := worker.NewNotificationWorker(
			notificationService,
			cfg.Workers.NotificationInterval,
			cfg.Workers.NotificationBatchSize,
			logger,
		)
		notificationWorker.Start()
	} else {
		logger.Info().Msg("Notification worker disabled")
	}

	// Dashboard credentials
	credentials, err := auth.NewEnvCredentialStore(
		cfg.Dashboard.Username,
		cfg.Dashboard.Password,
		cfg.Dashboard.PasswordHash,
		cfg.Dashboard.JWTSecret,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize dashboard credentials")
	}

	// Setup routes
	router := routes.SetupRoutes(
		complaintService,
		streamService,
		slaService,
		mappingRepo,
		cacheInvalidator,
		credentials,
		cfg.Dashboard.TokenTTL,
		logger,
	)

	// Wrap router with CORS middleware
	httpHandler := middleware.CORS(router)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Info().Str("addr", addr).Msg("Server starting")
	if err := http.ListenAndServe(addr, httpHandler); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped")
	}
}

// newLogger builds the process logger. Level comes from LOG_LEVEL
// (debug, info, warn, error); unknown values fall back to info.
func newLogger(level string) zerolog.Logger {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "civicroute").Logger()
}

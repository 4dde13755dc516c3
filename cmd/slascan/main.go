// slascan runs one SLA breach scan and prints the result summary.
// Usage: from project root, run: go run ./cmd/slascan
// Requires .env (or env) with DB_* settings.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"civicroute/config"
	"civicroute/models"
	"civicroute/notification"
	"civicroute/repository"
	"civicroute/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env not found")
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := config.LoadConfig()

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.Database.User, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("DB open")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("DB ping")
	}

	complaintRepo := repository.NewComplaintRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	policy := models.DefaultEnrichmentPolicy()
	if cfg.Policy.DefaultDepartment != "" {
		policy.DefaultDepartment = cfg.Policy.DefaultDepartment
	}

	mappingService := service.NewMappingService(mappingRepo, policy, logger)
	enrichmentService := service.NewEnrichmentService(mappingService, policy, logger)
	notificationService := service.NewNotificationService(
		notificationRepo,
		[]notification.Sink{notification.NewLogSink(logger)},
		nil, // Use default config
		logger,
	)

	// No lock client: a one-shot scan racing the server worker is benign,
	// breach claims stay exactly-once either way.
	slaService := service.NewSLAService(
		complaintRepo,
		enrichmentService,
		notificationService,
		policy,
		nil,
		cfg.Workers.SLAScanLimit,
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := slaService.ScanOnce(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("SLA scan failed")
	}

	fmt.Printf("scanned=%d breached=%d newly_breached=%d warnings=%d\n",
		result.Scanned, result.Breached, result.NewlyBreached, result.Warnings)
}

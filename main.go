package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vigilo-inc/vigilo-engine/pkg/config"
	"github.com/vigilo-inc/vigilo-engine/pkg/database"
	"github.com/vigilo-inc/vigilo-engine/pkg/handlers"
	"github.com/vigilo-inc/vigilo-engine/pkg/logging"
	"github.com/vigilo-inc/vigilo-engine/pkg/retry"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// .env is optional; real deployments set environment variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database_host", cfg.Database.Host),
		zap.String("redis_host", cfg.Redis.Host))

	// Pool creation retries transient failures, e.g. the database still
	// coming up alongside the service.
	db, err := retry.DoWithResult(context.Background(), retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(context.Background(), &cfg.Database)
	})
	if err != nil {
		// Connection errors can echo the DSN; sanitize before logging.
		logger.Fatal("failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	mux := http.NewServeMux()
	healthHandler := handlers.NewHealthHandler(cfg, db, logger)
	healthHandler.RegisterRoutes(mux)

	logger.Info("starting vigilo-engine",
		zap.String("port", cfg.Port),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(cfg.BindAddr+":"+cfg.Port, mux); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// runMigrations opens a separate database/sql connection for golang-migrate;
// the pgx pool is not usable there.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return database.RunMigrations(sqlDB, "migrations", logger)
}

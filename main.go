// main.go
package main

import (
	"context"
	"log"
	"time"

	"tractor-rental/cmd"
	"tractor-rental/internal/data/repository"
	"tractor-rental/internal/wire"
	"tractor-rental/pkg/database"
	"tractor-rental/pkg/redisstore"
	"tractor-rental/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	// Connect to redis
	redisClient, err := redisstore.NewClient(context.Background(), config.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	logger.Info("Redis connected successfully")

	// Initialize all repositories
	repos := repository.NewRepository(db, logger)

	locker := redisstore.NewLockStore(redisClient)
	deduper := redisstore.NewEventStore(redisClient)

	// Wire all dependencies
	app := wire.Wiring(repos, config, locker, deduper, logger)

	// Background sweep failing payments stuck in pending
	go runExpirySweep(app, config.Payment.ExpirySweepInterval, logger)

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	cmd.APIServer(app.Router, config.App.Port)
}

func runExpirySweep(app *wire.App, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := app.Service.Payment.ExpireStale(ctx); err != nil {
			logger.Error("Payment expiry sweep failed", zap.Error(err))
		}
		cancel()
	}
}

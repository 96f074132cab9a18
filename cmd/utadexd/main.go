package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"utadex/internal/config"
	"utadex/internal/db"
	"utadex/internal/logger"
	"utadex/internal/server"
)

const migrationsPath = "file://migrations"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	log := logger.With("main")

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to access database handle")
	}
	if err := db.RunMigrations(sqlDB, migrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	srv := server.New(cfg, database)
	srv.Start()
	log.Info().
		Str("database", cfg.Database.Path).
		Dur("sync_interval", cfg.Sync.Interval).
		Msg("utadexd started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
		os.Exit(1)
	}
	log.Info().Msg("stopped")
}

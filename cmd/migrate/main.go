package main

import (
	"log"
	"log/slog"

	"press-clippings/internal/config"
	"press-clippings/internal/database"
	"press-clippings/internal/logging"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.New(cfg.Log.Level))

	// Connect to database
	dbConfig := database.LoadConfig()
	slog.Info("database config", "driver", dbConfig.Driver, "host", dbConfig.Host, "name", dbConfig.DBName, "path", dbConfig.Path)
	if err := database.Connect(dbConfig); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	slog.Info("running database migrations")

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	slog.Info("database migrations completed successfully")
}

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"press-clippings/internal/auth"
	"press-clippings/internal/config"
	"press-clippings/internal/database"
	"press-clippings/internal/handlers"
	"press-clippings/internal/live"
	"press-clippings/internal/logging"
	"press-clippings/internal/metadata"
	"press-clippings/internal/report"
	"press-clippings/internal/services"
	"press-clippings/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration (.env, optional YAML, environment)
	cfg := config.Load()
	slog.SetDefault(logging.New(cfg.Log.Level))

	// Connect to database
	dbConfig := database.LoadConfig()
	if err := database.Connect(dbConfig); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Set Gin mode based on configuration
	if cfg.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	hub := live.NewHub()
	opts := services.Options{DefaultTopic: cfg.Crisis.DefaultTopic, Publisher: hub}

	clippings := services.NewClippingService(database.DB, opts)
	topics := services.NewTopicService(database.DB, opts)

	// Background crisis and metrics sweep
	workers := worker.NewWorkerService(topics, clippings, cfg.MaintenanceInterval())
	if err := workers.Start(); err != nil {
		log.Fatal("Failed to start maintenance worker:", err)
	}
	defer workers.Stop()

	deps := handlers.Dependencies{
		DB:        database.DB,
		Clippings: clippings,
		Articles:  services.NewArticlesService(database.DB, opts),
		Topics:    topics,
		Mentions:  services.NewMentionService(database.DB),
		Reports:   report.NewHTTPGenerator(cfg.Reports.ServiceURL),
		Hub:       hub,
		Previews:  metadata.NewMetadataExtractor(),
		Worker:    workers,
	}
	if cfg.AuthEnabled() {
		deps.Verifier = auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	} else {
		slog.Warn("JWT_SECRET not set, API authentication is disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handlers.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "default_topic", cfg.Crisis.DefaultTopic)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	slog.Info("received shutdown signal, gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	workers.Stop()

	slog.Info("shutdown complete")
}

package main

import (
	"context"
	"flag"
	"log"
	"log/slog"

	"press-clippings/internal/config"
	"press-clippings/internal/database"
	"press-clippings/internal/logging"
	"press-clippings/internal/services"

	"github.com/google/uuid"
)

// Repairs derived data after manual edits: topic crisis flags first, then
// every clipping's cached metrics.
func main() {
	var clippingID = flag.String("clipping", "", "Recompute only this clipping id")
	var skipCrisis = flag.Bool("skip-crisis", false, "Do not re-evaluate topic crisis flags")
	flag.Parse()

	cfg := config.Load()
	slog.SetDefault(logging.New(cfg.Log.Level))

	slog.Info("starting clipping recomputation")

	// Load database configuration and connect
	dbConfig := database.LoadConfig()
	if err := database.Connect(dbConfig); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	opts := services.Options{DefaultTopic: cfg.Crisis.DefaultTopic}

	if !*skipCrisis {
		changed, err := services.NewTopicService(database.DB, opts).EvaluateAll(ctx)
		if err != nil {
			log.Fatalf("Failed to evaluate topic crisis flags: %v", err)
		}
		slog.Info("topic crisis flags evaluated", "changed", changed)
	}

	clippings := services.NewClippingService(database.DB, opts)
	if *clippingID != "" {
		id, err := uuid.Parse(*clippingID)
		if err != nil {
			log.Fatalf("Invalid clipping id %q: %v", *clippingID, err)
		}
		if _, err := clippings.Recompute(ctx, id); err != nil {
			log.Fatalf("Failed to recompute clipping %s: %v", id, err)
		}
		slog.Info("clipping recomputed", "clipping_id", id)
		return
	}

	n, err := clippings.RecomputeAll(ctx)
	if err != nil {
		log.Fatalf("Failed to recompute clippings: %v", err)
	}

	slog.Info("clipping recomputation completed successfully", "clippings", n)
}

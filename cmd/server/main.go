package main

import (
	"context"
	"log"
	"time"

	"github.com/greentrack/greentrack-go/internal/api"
	"github.com/greentrack/greentrack-go/internal/config"
	"github.com/greentrack/greentrack-go/internal/database"
	"github.com/greentrack/greentrack-go/internal/handler"
	"github.com/greentrack/greentrack-go/internal/ingest"
	"github.com/greentrack/greentrack-go/internal/metrics"
	"github.com/greentrack/greentrack-go/internal/repository"
	"github.com/greentrack/greentrack-go/internal/service"
	"github.com/greentrack/greentrack-go/internal/syncer"
	"github.com/greentrack/greentrack-go/internal/tracking"
)

func main() {
	cfg := config.Load()

	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close()
	db := database.GetDB()

	tripRepo := repository.NewTripRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	collector := metrics.NewCollector()

	trackingSvc := tracking.NewService(
		tripRepo, locationRepo,
		tracking.DefaultThresholds, ingest.DefaultThresholds,
		cfg.UserID, collector,
	)
	tripSvc := service.NewTripService(tripRepo, locationRepo)

	handlers := api.Handlers{
		Tracking: handler.NewTrackingHandler(trackingSvc),
		Trips:    handler.NewTripHandler(tripSvc),
		Metrics:  collector,
	}

	if cfg.SyncBaseURL != "" {
		backend := syncer.NewClient(nil, cfg.SyncBaseURL, cfg.SyncToken)
		syncSvc := syncer.NewService(tripRepo, locationRepo, backend, cfg.SyncToken, collector)
		handlers.Sync = handler.NewSyncHandler(syncSvc)

		if cfg.SyncIntervalMinutes > 0 {
			go runPeriodicSync(syncSvc, time.Duration(cfg.SyncIntervalMinutes)*time.Minute)
		}
	} else {
		log.Printf("[Server] SYNC_BASE_URL not set, sync disabled")
	}

	router := api.SetupRouter(handlers)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// runPeriodicSync pushes pending trips in the background. A run that loses
// the single-flight race to a manual sync is just skipped.
func runPeriodicSync(svc *syncer.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if _, err := svc.Run(context.Background()); err != nil {
			log.Printf("[Server] Periodic sync failed: %v", err)
		}
	}
}

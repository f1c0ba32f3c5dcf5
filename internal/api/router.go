package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/greentrack/greentrack-go/internal/handler"
	"github.com/greentrack/greentrack-go/internal/metrics"
	"github.com/greentrack/greentrack-go/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Tracking *handler.TrackingHandler
	Trips    *handler.TripHandler
	Sync     *handler.SyncHandler
	Metrics  *metrics.Collector
}

// SetupRouter builds the HTTP surface of the tracker.
func SetupRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "GreenTrack API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))

	api := r.Group("/api/v1")
	{
		tracking := api.Group("/tracking")
		{
			tracking.POST("/start", h.Tracking.Start)
			tracking.POST("/stop", h.Tracking.Stop)
			tracking.GET("/status", h.Tracking.Status)
			tracking.POST("/fixes", h.Tracking.SubmitFixes)
			tracking.POST("/resume-check", h.Tracking.ResumeCheck)
		}

		trips := api.Group("/trips")
		{
			trips.GET("", h.Trips.GetTrips)
			trips.GET("/:id", h.Trips.GetTripByID)
			trips.GET("/:id/route", h.Trips.GetTripRoute)
			trips.PATCH("/:id", h.Trips.CorrectTrip)
			trips.DELETE("/:id", h.Trips.DeleteTrip)
		}

		if h.Sync != nil {
			api.POST("/sync", h.Sync.Sync)
		}
	}

	return r
}

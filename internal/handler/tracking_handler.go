package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/greentrack/greentrack-go/internal/models"
	"github.com/greentrack/greentrack-go/internal/tracking"
	"github.com/greentrack/greentrack-go/pkg/response"
)

// TrackingHandler exposes the trip recording lifecycle over HTTP
type TrackingHandler struct {
	service *tracking.Service
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(service *tracking.Service) *TrackingHandler {
	return &TrackingHandler{service: service}
}

// Start handles POST /api/v1/tracking/start
func (h *TrackingHandler) Start(c *gin.Context) {
	if err := h.service.StartTracking(); err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to start tracking", err)
		return
	}
	response.Success(c, gin.H{"tracking": true})
}

// Stop handles POST /api/v1/tracking/stop
func (h *TrackingHandler) Stop(c *gin.Context) {
	if err := h.service.StopTracking(); err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to stop tracking", err)
		return
	}
	response.Success(c, gin.H{"tracking": false})
}

// Status handles GET /api/v1/tracking/status
func (h *TrackingHandler) Status(c *gin.Context) {
	response.Success(c, gin.H{
		"tracking":   h.service.IsTracking(),
		"activeTrip": h.service.ActiveTrip(),
	})
}

// SubmitFixes handles POST /api/v1/tracking/fixes. The body carries the raw
// readings the OS location provider produced since the last flush.
func (h *TrackingHandler) SubmitFixes(c *gin.Context) {
	var body struct {
		Fixes []models.Fix `json:"fixes" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !h.service.IsTracking() {
		response.Error(c, http.StatusConflict, "Tracking is not running", nil)
		return
	}

	h.service.ProcessFixes(body.Fixes)
	response.Success(c, gin.H{
		"received":   len(body.Fixes),
		"activeTrip": h.service.ActiveTrip(),
	})
}

// ResumeCheck handles POST /api/v1/tracking/resume-check. Called when the
// app returns to the foreground to clean up a trip abandoned by a crash or
// kill.
func (h *TrackingHandler) ResumeCheck(c *gin.Context) {
	terminated, err := h.service.CheckZombie()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to check for stale trip", err)
		return
	}
	response.Success(c, gin.H{"terminated": terminated})
}

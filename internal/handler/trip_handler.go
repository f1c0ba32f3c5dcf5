package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/greentrack/greentrack-go/internal/models"
	"github.com/greentrack/greentrack-go/internal/service"
	"github.com/greentrack/greentrack-go/pkg/response"
)

// TripHandler handles HTTP requests for trips
type TripHandler struct {
	service *service.TripService
}

// NewTripHandler creates a new trip handler
func NewTripHandler(service *service.TripService) *TripHandler {
	return &TripHandler{service: service}
}

// GetTrips handles GET /api/v1/trips
func (h *TripHandler) GetTrips(c *gin.Context) {
	var filter models.TripFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	trips, total, err := h.service.GetTrips(filter)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get trips", err)
		return
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 50
	}
	totalPages := int(total) / filter.PageSize
	if int(total)%filter.PageSize > 0 {
		totalPages++
	}

	response.Success(c, models.TripsResponse{
		Data:       trips,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
	})
}

// GetTripByID handles GET /api/v1/trips/:id
func (h *TripHandler) GetTripByID(c *gin.Context) {
	trip, err := h.service.GetTripByID(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get trip", err)
		return
	}
	if trip == nil {
		response.Error(c, http.StatusNotFound, "Trip not found", nil)
		return
	}

	response.Success(c, trip)
}

// GetTripRoute handles GET /api/v1/trips/:id/route
func (h *TripHandler) GetTripRoute(c *gin.Context) {
	trip, err := h.service.GetTripByID(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get trip", err)
		return
	}
	if trip == nil {
		response.Error(c, http.StatusNotFound, "Trip not found", nil)
		return
	}

	points, err := h.service.GetTripRoute(trip.ID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get trip route", err)
		return
	}

	response.Success(c, gin.H{
		"tripId": trip.ID,
		"points": points,
	})
}

// CorrectTrip handles PATCH /api/v1/trips/:id
func (h *TripHandler) CorrectTrip(c *gin.Context) {
	var correction models.TripCorrection
	if err := c.ShouldBindJSON(&correction); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	trip, err := h.service.CorrectTrip(c.Param("id"), correction)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Failed to correct trip", err)
		return
	}
	if trip == nil {
		response.Error(c, http.StatusNotFound, "Trip not found", nil)
		return
	}

	response.Success(c, trip)
}

// DeleteTrip handles DELETE /api/v1/trips/:id
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	if err := h.service.DeleteTrip(c.Param("id")); err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to delete trip", err)
		return
	}

	response.Success(c, nil)
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/greentrack/greentrack-go/internal/syncer"
	"github.com/greentrack/greentrack-go/pkg/response"
)

// SyncHandler triggers sync runs over HTTP
type SyncHandler struct {
	service *syncer.Service
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(service *syncer.Service) *SyncHandler {
	return &SyncHandler{service: service}
}

// Sync handles POST /api/v1/sync
func (h *SyncHandler) Sync(c *gin.Context) {
	result, err := h.service.Run(c.Request.Context())
	switch {
	case errors.Is(err, syncer.ErrSyncRunning):
		response.Error(c, http.StatusConflict, "Sync already in progress", err)
		return
	case errors.Is(err, syncer.ErrAuth):
		response.Error(c, http.StatusUnauthorized, "Backend rejected credentials", err)
		return
	case err != nil:
		response.Error(c, http.StatusInternalServerError, "Sync failed", err)
		return
	}

	response.Success(c, result)
}

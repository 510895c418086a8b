package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/upnpd/pkg/api/types"
	"github.com/urmzd/upnpd/pkg/device"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	directory device.Directory
	publisher device.Publisher
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(directory device.Directory, publisher device.Publisher) *HealthHandler {
	return &HealthHandler{directory: directory, publisher: publisher}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Returns the health status of the daemon and its discovery engine
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Service is healthy"
// @Failure      503  {object}  types.HealthResponse  "Service is degraded"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	discovery := "disconnected"
	if h.directory.IsConnected() {
		discovery = "connected"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if discovery != "connected" {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, types.HealthResponse{
		Status:        status,
		Discovery:     discovery,
		Registrations: len(h.publisher.Registrations()),
		Services:      len(h.publisher.Services()),
		Timestamp:     time.Now(),
	})
}

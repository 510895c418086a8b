package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/upnpd/pkg/api/types"
	"github.com/urmzd/upnpd/pkg/device"
	"github.com/urmzd/upnpd/pkg/upnp"
)

// abortWithError maps domain errors onto HTTP statuses.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, device.ErrNotFound):
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, upnp.ErrUnknownService):
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: "unknown_service", Message: err.Error()})
	case errors.Is(err, device.ErrValidation), errors.Is(err, upnp.ErrInvalidVariable):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "validation_error", Message: err.Error()})
	case errors.Is(err, device.ErrNotConnected), errors.Is(err, upnp.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{Error: "discovery_disconnected", Message: err.Error()})
	case errors.Is(err, device.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, types.ErrorResponse{
			Error:   "timeout",
			Message: "Request timed out waiting for answers",
		})
	default:
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "internal_error", Message: err.Error()})
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/upnpd/pkg/api/types"
	"github.com/urmzd/upnpd/pkg/device"
	"github.com/urmzd/upnpd/pkg/device/schema"
	"github.com/urmzd/upnpd/pkg/upnp"
)

// ServicesHandler handles the published device's services
type ServicesHandler struct {
	publisher device.Publisher
	validator *schema.Validator
}

// NewServicesHandler creates a new services handler
func NewServicesHandler(publisher device.Publisher, validator *schema.Validator) *ServicesHandler {
	return &ServicesHandler{publisher: publisher, validator: validator}
}

// List handles GET /services
// @Summary      List services
// @Description  Returns the published root device and its services with evented variables and subscriptions
// @Tags         services
// @Produce      json
// @Success      200  {object}  types.ServicesResponse
// @Router       /services [get]
func (h *ServicesHandler) List(c *gin.Context) {
	services := h.publisher.Services()
	c.JSON(http.StatusOK, types.ServicesResponse{
		Device:   h.publisher.Device(),
		Services: services,
		Count:    len(services),
	})
}

// Notify handles POST /services/:id/notify
// @Summary      Push evented variables
// @Description  Stores the variables and sends NOTIFY to every active subscriber. id is a serviceId or a "udn::serviceId" key.
// @Tags         services
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Service ID or key"
// @Param        request  body      types.NotifyRequest  true  "Variables to publish"
// @Success      202      {object}  types.NotifyResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      404      {object}  types.ErrorResponse  "Unknown service"
// @Router       /services/{id}/notify [post]
func (h *ServicesHandler) Notify(c *gin.Context) {
	id := c.Param("id")

	var req types.NotifyRequest
	if err := decodeValidated(c.Request.Body, h.validator, schema.NotifySchema, &req); err != nil {
		abortWithError(c, err)
		return
	}
	if len(req.Variables) == 0 {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "validation_error",
			Message: "variables is required",
		})
		return
	}

	vars := upnp.VariablesFromMap(req.Variables)
	if err := h.publisher.NotifySubscribers(c.Request.Context(), id, vars); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, types.NotifyResponse{
		Status:    "queued",
		Service:   id,
		Variables: vars,
	})
}

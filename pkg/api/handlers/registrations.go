package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/upnpd/pkg/api/types"
	"github.com/urmzd/upnpd/pkg/device"
)

// RegistrationsHandler exposes the SSDP advertisement table
type RegistrationsHandler struct {
	publisher device.Publisher
}

// NewRegistrationsHandler creates a new registrations handler
func NewRegistrationsHandler(publisher device.Publisher) *RegistrationsHandler {
	return &RegistrationsHandler{publisher: publisher}
}

// List handles GET /registrations
// @Summary      List SSDP registrations
// @Description  Returns every identity this host advertises with its refresh state
// @Tags         registrations
// @Produce      json
// @Success      200  {object}  types.RegistrationsResponse
// @Router       /registrations [get]
func (h *RegistrationsHandler) List(c *gin.Context) {
	regs := h.publisher.Registrations()
	c.JSON(http.StatusOK, types.RegistrationsResponse{
		Registrations: regs,
		Count:         len(regs),
	})
}

// Advertise handles POST /advertise
// @Summary      Advertise now
// @Description  Multicasts ssdp:alive for every registration immediately
// @Tags         registrations
// @Produce      json
// @Success      200  {object}  types.AdvertiseResponse
// @Router       /advertise [post]
func (h *RegistrationsHandler) Advertise(c *gin.Context) {
	h.publisher.Advertise()
	c.JSON(http.StatusOK, types.AdvertiseResponse{
		Status:        "advertised",
		Registrations: len(h.publisher.Registrations()),
	})
}

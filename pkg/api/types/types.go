package types

import (
	"time"

	"github.com/urmzd/upnpd/pkg/device"
	"github.com/urmzd/upnpd/pkg/ssdp"
	"github.com/urmzd/upnpd/pkg/upnp"
)

// --- Request DTOs ---

// SearchRequest is the request body for POST /discovery/search
type SearchRequest struct {
	Target         string  `json:"target" example:"upnp:rootdevice"`
	TimeoutSeconds float64 `json:"timeout_seconds" example:"3"`
}

// NotifyRequest is the request body for POST /services/:id/notify
type NotifyRequest struct {
	Variables map[string]string `json:"variables"`
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status        string    `json:"status"`
	Discovery     string    `json:"discovery"`
	Registrations int       `json:"registrations"`
	Services      int       `json:"services"`
	Timestamp     time.Time `json:"timestamp"`
}

// RegistrationsResponse is returned from GET /registrations
type RegistrationsResponse struct {
	Registrations []ssdp.Registration `json:"registrations"`
	Count         int                 `json:"count"`
}

// AdvertiseResponse is returned from POST /advertise
type AdvertiseResponse struct {
	Status        string `json:"status"`
	Registrations int    `json:"registrations"`
}

// PeersResponse is returned from GET /discovery/peers and POST /discovery/search
type PeersResponse struct {
	Target string        `json:"target,omitempty"`
	Peers  []device.Peer `json:"peers"`
	Count  int           `json:"count"`
}

// PeerResponse is returned from GET /discovery/peers/:usn
type PeerResponse struct {
	Peer device.Peer `json:"peer"`
}

// ServicesResponse is returned from GET /services
type ServicesResponse struct {
	Device   *upnp.Device       `json:"device,omitempty"`
	Services []upnp.ServiceInfo `json:"services"`
	Count    int                `json:"count"`
}

// NotifyResponse is returned from POST /services/:id/notify
type NotifyResponse struct {
	Status    string          `json:"status"`
	Service   string          `json:"service"`
	Variables []upnp.Variable `json:"variables"`
}

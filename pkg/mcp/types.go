package mcp

import (
	"github.com/urmzd/upnpd/pkg/device"
	"github.com/urmzd/upnpd/pkg/ssdp"
	"github.com/urmzd/upnpd/pkg/upnp"
)

// GetHealthOutput is the output for the get_health tool
type GetHealthOutput struct {
	Status        string `json:"status" jsonschema:"description=Overall health status (healthy or degraded)"`
	Discovery     string `json:"discovery" jsonschema:"description=SSDP engine status"`
	Registrations int    `json:"registrations" jsonschema:"description=Number of active SSDP registrations"`
	Timestamp     string `json:"timestamp" jsonschema:"description=ISO8601 timestamp"`
}

// ListRegistrationsOutput is the output for the list_registrations tool
type ListRegistrationsOutput struct {
	Registrations []ssdp.Registration `json:"registrations" jsonschema:"description=Advertised identities"`
	Count         int                 `json:"count" jsonschema:"description=Number of registrations"`
}

// PeersOutput is the output for the search and list_peers tools
type PeersOutput struct {
	Target string        `json:"target,omitempty" jsonschema:"description=Search target used"`
	Peers  []device.Peer `json:"peers" jsonschema:"description=Peers found"`
	Count  int           `json:"count" jsonschema:"description=Number of peers"`
}

// ListServicesOutput is the output for the list_services tool
type ListServicesOutput struct {
	Device   *upnp.Device       `json:"device,omitempty" jsonschema:"description=Published root device"`
	Services []upnp.ServiceInfo `json:"services" jsonschema:"description=Published services"`
	Count    int                `json:"count" jsonschema:"description=Number of services"`
}

// NotifySubscribersOutput is the output for the notify_subscribers tool
type NotifySubscribersOutput struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Variables []upnp.Variable `json:"variables" jsonschema:"description=Variables queued for delivery"`
}

package device

import (
	"context"
	"time"

	"github.com/urmzd/upnpd/pkg/ssdp"
	"github.com/urmzd/upnpd/pkg/upnp"
)

// Directory defines the interface for looking up UPnP peers.
// The admin API and MCP tools work against it so they can run without a
// multicast socket.
type Directory interface {
	// ListPeers returns all peers whose announcements have not lapsed
	ListPeers(ctx context.Context) ([]Peer, error)

	// GetPeer returns a single peer by USN
	GetPeer(ctx context.Context, usn string) (*Peer, error)

	// Search multicasts an M-SEARCH and returns the peers that answered
	Search(ctx context.Context, target string, timeout time.Duration) ([]Peer, error)

	// IsConnected returns true if a discovery engine is attached
	IsConnected() bool
}

// EventSubscriber defines the interface for subscribing to peer events
type EventSubscriber interface {
	// Subscribe returns a channel that receives discovery events
	Subscribe() chan DiscoveryEvent

	// Unsubscribe removes a subscription
	Unsubscribe(ch chan DiscoveryEvent)
}

// Publisher is the local side: what this host advertises and the services
// it exposes to control points.
type Publisher interface {
	// Registrations returns the active SSDP advertisements
	Registrations() []ssdp.Registration

	// Advertise schedules an immediate alive round for every registration
	Advertise()

	// Services returns a snapshot of the published services
	Services() []upnp.ServiceInfo

	// Device returns the published root device, or nil
	Device() *upnp.Device

	// NotifySubscribers updates evented variables and notifies subscribers
	NotifySubscribers(ctx context.Context, serviceID string, vars []upnp.Variable) error
}

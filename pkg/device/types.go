package device

import "time"

// Peer is a UPnP device or service seen on the network.
type Peer struct {
	USN      string    `json:"usn"`      // Unique service name
	NT       string    `json:"nt"`       // Notification type or search target
	Location string    `json:"location"` // Description URL
	Server   string    `json:"server"`   // SERVER header
	MaxAge   int       `json:"max_age"`  // Advertised lifetime in seconds
	LastSeen time.Time `json:"last_seen"`
}

// Expires is when the peer's last announcement lapses.
func (p Peer) Expires() time.Time {
	return p.LastSeen.Add(time.Duration(p.MaxAge) * time.Second)
}

// DiscoveryEvent represents a peer discovery event
type DiscoveryEvent struct {
	Type      string    `json:"type"`           // Event type (device_alive, device_byebye, search_answer)
	Peer      *Peer     `json:"peer,omitempty"` // Peer information
	Timestamp time.Time `json:"timestamp"`      // When the event occurred
}

// Event type constants
const (
	EventDeviceAlive  = "device_alive"
	EventDeviceByeBye = "device_byebye"
	EventSearchAnswer = "search_answer"
)

// DefaultMaxAge applies to announcements without a usable CACHE-CONTROL.
const DefaultMaxAge = 1800

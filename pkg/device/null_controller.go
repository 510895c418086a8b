package device

import (
	"context"
	"time"

	"github.com/urmzd/upnpd/pkg/ssdp"
	"github.com/urmzd/upnpd/pkg/upnp"
)

// NullDirectory is a no-op directory used when the SSDP socket is unavailable.
// It allows the API to run in limited mode without multicast.
type NullDirectory struct{}

// NewNullDirectory creates a new NullDirectory.
func NewNullDirectory() *NullDirectory {
	return &NullDirectory{}
}

func (d *NullDirectory) ListPeers(ctx context.Context) ([]Peer, error) {
	return []Peer{}, nil
}

func (d *NullDirectory) GetPeer(ctx context.Context, usn string) (*Peer, error) {
	return nil, ErrNotFound
}

func (d *NullDirectory) Search(ctx context.Context, target string, timeout time.Duration) ([]Peer, error) {
	return nil, ErrNotConnected
}

func (d *NullDirectory) IsConnected() bool {
	return false
}

// NullEventSubscriber is a no-op event subscriber used when the SSDP socket is unavailable.
type NullEventSubscriber struct{}

// NewNullEventSubscriber creates a new NullEventSubscriber.
func NewNullEventSubscriber() *NullEventSubscriber {
	return &NullEventSubscriber{}
}

func (s *NullEventSubscriber) Subscribe() chan DiscoveryEvent {
	ch := make(chan DiscoveryEvent)
	// Channel is never sent to; callers should check IsConnected() on the directory
	return ch
}

func (s *NullEventSubscriber) Unsubscribe(ch chan DiscoveryEvent) {
	close(ch)
}

// NullPublisher is a no-op publisher used when no device is registered.
type NullPublisher struct{}

// NewNullPublisher creates a new NullPublisher.
func NewNullPublisher() *NullPublisher {
	return &NullPublisher{}
}

func (p *NullPublisher) Registrations() []ssdp.Registration {
	return []ssdp.Registration{}
}

func (p *NullPublisher) Advertise() {}

func (p *NullPublisher) Services() []upnp.ServiceInfo {
	return []upnp.ServiceInfo{}
}

func (p *NullPublisher) Device() *upnp.Device {
	return nil
}

func (p *NullPublisher) NotifySubscribers(ctx context.Context, serviceID string, vars []upnp.Variable) error {
	return upnp.ErrUnknownService
}

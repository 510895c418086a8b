package device

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/upnpd/pkg/ssdp"
)

// Searcher is the part of the discovery engine the hub needs for searches.
type Searcher interface {
	Search(ctx context.Context, target string, timeout time.Duration) <-chan ssdp.Answer
}

// Hub turns SSDP traffic into a peer table and discovery events. It is
// installed as the engine's listener and implements Directory and
// EventSubscriber.
type Hub struct {
	searcher Searcher
	now      func() time.Time

	peersMu sync.RWMutex
	peers   map[string]*Peer

	subscribers   []chan DiscoveryEvent
	subscribersMu sync.Mutex
}

// NewHub creates a hub. searcher may be nil, in which case Search reports
// ErrNotConnected.
func NewHub(searcher Searcher) *Hub {
	return &Hub{
		searcher: searcher,
		now:      time.Now,
		peers:    make(map[string]*Peer),
	}
}

// --- ssdp.Listener interface ---

func (h *Hub) HandleMessage(msg ssdp.Message) {
	switch m := msg.(type) {
	case *ssdp.Notify:
		if m.ByeBye() {
			h.forget(m.USN)
			return
		}
		location := m.Location
		if location == "" {
			location = strings.Trim(m.AL, "<>")
		}
		h.remember(EventDeviceAlive, Peer{
			USN:      m.USN,
			NT:       m.NT,
			Location: location,
			Server:   m.Server,
			MaxAge:   m.MaxAge,
		})

	case *ssdp.Answer:
		h.remember(EventSearchAnswer, answerPeer(m))
	}
}

func answerPeer(a *ssdp.Answer) Peer {
	return Peer{
		USN:      a.USN,
		NT:       a.ST,
		Location: a.Location,
		Server:   a.Server,
		MaxAge:   a.MaxAge,
	}
}

func (h *Hub) remember(eventType string, p Peer) {
	if p.MaxAge <= 0 {
		p.MaxAge = DefaultMaxAge
	}
	p.LastSeen = h.now()

	h.peersMu.Lock()
	_, known := h.peers[p.USN]
	stored := p
	h.peers[p.USN] = &stored
	h.peersMu.Unlock()

	if !known {
		log.Info().Str("usn", p.USN).Str("location", p.Location).Msg("Peer discovered")
	}
	h.publishEvent(DiscoveryEvent{Type: eventType, Peer: &p, Timestamp: p.LastSeen})
}

func (h *Hub) forget(usn string) {
	h.peersMu.Lock()
	p, ok := h.peers[usn]
	delete(h.peers, usn)
	h.peersMu.Unlock()

	peer := Peer{USN: usn}
	if ok {
		peer = *p
	}
	log.Info().Str("usn", usn).Msg("Peer left")
	h.publishEvent(DiscoveryEvent{Type: EventDeviceByeBye, Peer: &peer, Timestamp: h.now()})
}

// publishEvent sends a discovery event to all subscribers.
func (h *Hub) publishEvent(evt DiscoveryEvent) {
	h.subscribersMu.Lock()
	defer h.subscribersMu.Unlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// --- Directory interface ---

func (h *Hub) ListPeers(_ context.Context) ([]Peer, error) {
	h.prune()

	h.peersMu.RLock()
	peers := make([]Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, *p)
	}
	h.peersMu.RUnlock()

	sort.Slice(peers, func(i, j int) bool { return peers[i].USN < peers[j].USN })
	return peers, nil
}

func (h *Hub) GetPeer(_ context.Context, usn string) (*Peer, error) {
	h.prune()

	h.peersMu.RLock()
	defer h.peersMu.RUnlock()

	p, ok := h.peers[usn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, usn)
	}
	out := *p
	return &out, nil
}

func (h *Hub) Search(ctx context.Context, target string, timeout time.Duration) ([]Peer, error) {
	if h.searcher == nil {
		return nil, ErrNotConnected
	}

	seen := make(map[string]bool)
	var peers []Peer
	for a := range h.searcher.Search(ctx, target, timeout) {
		if seen[a.USN] {
			continue
		}
		seen[a.USN] = true
		p := answerPeer(&a)
		p.LastSeen = h.now()
		peers = append(peers, p)
	}
	if err := ctx.Err(); err != nil && len(peers) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].USN < peers[j].USN })
	return peers, nil
}

func (h *Hub) IsConnected() bool {
	return h.searcher != nil
}

// prune drops peers whose max-age has lapsed.
func (h *Hub) prune() {
	now := h.now()

	h.peersMu.Lock()
	defer h.peersMu.Unlock()
	for usn, p := range h.peers {
		if now.After(p.Expires()) {
			delete(h.peers, usn)
			log.Debug().Str("usn", usn).Msg("Peer expired")
		}
	}
}

// --- EventSubscriber interface ---

func (h *Hub) Subscribe() chan DiscoveryEvent {
	ch := make(chan DiscoveryEvent, 16)
	h.subscribersMu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.subscribersMu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan DiscoveryEvent) {
	h.subscribersMu.Lock()
	defer h.subscribersMu.Unlock()

	for i, sub := range h.subscribers {
		if sub == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Package ssdp implements the Simple Service Discovery Protocol engine: it
// keeps local registrations alive on the multicast group, answers M-SEARCH
// requests for them and reports announcements from other peers.
package ssdp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"

	"github.com/urmzd/upnpd/pkg/supervise"
)

var (
	// ErrInvalidRegistration is returned by Register for empty NT, USN or location.
	ErrInvalidRegistration = errors.New("invalid ssdp registration")

	// ErrNotRegistered is returned by Unregister for an unknown USN.
	ErrNotRegistered = errors.New("usn not registered")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("ssdp engine closed")
)

const (
	maxDatagram   = 8192
	searchPeriod  = time.Second
	answersBuffer = 64
)

// Config holds engine settings.
type Config struct {
	// Interface selects the multicast interface; empty means the system default.
	Interface string

	// ListenAddr is the UDP address bound for the multicast group.
	ListenAddr string

	// GroupAddr is the multicast destination for announcements and searches.
	GroupAddr string

	// ReceiveTimeout bounds each socket read and is the minimum refresh interval.
	ReceiveTimeout time.Duration

	// TTL is the multicast hop limit.
	TTL int
}

// DefaultConfig returns the standard SSDP settings.
func DefaultConfig() Config {
	return Config{
		ListenAddr:     ":1900",
		GroupAddr:      MulticastAddr,
		ReceiveTimeout: time.Second,
		TTL:            4,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.GroupAddr == "" {
		c.GroupAddr = d.GroupAddr
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = d.ReceiveTimeout
	}
	if c.TTL <= 0 {
		c.TTL = d.TTL
	}
}

// Registration is one advertised (NT, USN) pair.
type Registration struct {
	NT       string        `json:"nt"`
	USN      string        `json:"usn"`
	Location string        `json:"location"`
	Server   string        `json:"server"`
	MaxAge   int           `json:"max_age"`
	Interval time.Duration `json:"interval"`
}

func (r Registration) maxAge() time.Duration { return time.Duration(r.MaxAge) * time.Second }

// Listener receives valid announcements and search answers from peers.
type Listener interface {
	HandleMessage(msg Message)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(msg Message)

func (f ListenerFunc) HandleMessage(msg Message) { f(msg) }

type collector struct {
	target string
	ch     chan Answer
}

// Engine owns the SSDP socket and the registration table.
type Engine struct {
	cfg   Config
	conn  net.PacketConn
	group net.Addr

	mu         sync.Mutex
	regs       []*Registration
	listener   Listener
	collectors map[*collector]struct{}
	closed     bool

	worker *supervise.Worker
	last   time.Time
	now    func() time.Time
}

// New opens the multicast socket described by cfg and starts the engine loop.
func New(cfg Config) (*Engine, error) {
	cfg.applyDefaults()

	group, err := net.ResolveUDPAddr("udp4", cfg.GroupAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve group %s: %w", cfg.GroupAddr, err)
	}

	lc := net.ListenConfig{Control: reuseAddr}
	conn, err := lc.ListenPacket(context.Background(), "udp4", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}

	var ifi *net.Interface
	if cfg.Interface != "" {
		ifi, err = net.InterfaceByName(cfg.Interface)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("interface %s: %w", cfg.Interface, err)
		}
	}

	p := ipv4.NewPacketConn(conn)
	if err := p.JoinGroup(ifi, &net.UDPAddr{IP: group.IP}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join group %s: %w", group.IP, err)
	}
	if ifi != nil {
		if err := p.SetMulticastInterface(ifi); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set multicast interface: %w", err)
		}
	}
	if err := p.SetMulticastTTL(cfg.TTL); err != nil {
		log.Warn().Err(err).Msg("Failed to set multicast TTL")
	}
	if err := p.SetMulticastLoopback(true); err != nil {
		log.Warn().Err(err).Msg("Failed to enable multicast loopback")
	}

	e := newEngine(conn, group, cfg)
	if err := e.start(); err != nil {
		conn.Close()
		return nil, err
	}

	log.Info().
		Str("listen", cfg.ListenAddr).
		Str("group", cfg.GroupAddr).
		Str("interface", cfg.Interface).
		Msg("SSDP engine started")

	return e, nil
}

// NewWithConn runs the engine over an existing packet connection. Outbound
// multicast traffic is sent to cfg.GroupAddr through conn.
func NewWithConn(conn net.PacketConn, cfg Config) (*Engine, error) {
	cfg.applyDefaults()

	group, err := net.ResolveUDPAddr("udp4", cfg.GroupAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve group %s: %w", cfg.GroupAddr, err)
	}

	e := newEngine(conn, group, cfg)
	if err := e.start(); err != nil {
		return nil, err
	}
	return e, nil
}

func newEngine(conn net.PacketConn, group net.Addr, cfg Config) *Engine {
	return &Engine{
		cfg:        cfg,
		conn:       conn,
		group:      group,
		collectors: make(map[*collector]struct{}),
		worker:     supervise.New("ssdp"),
		now:        time.Now,
	}
}

func (e *Engine) start() error {
	e.last = e.now()
	return e.worker.Start(context.Background(), e.loop)
}

// Register adds an advertisement. Duplicate (NT, USN) pairs are allowed.
func (e *Engine) Register(nt, usn, location, server string, maxAge int) error {
	if nt == "" || usn == "" || location == "" {
		return fmt.Errorf("%w: nt=%q usn=%q location=%q", ErrInvalidRegistration, nt, usn, location)
	}
	if maxAge < 0 {
		return fmt.Errorf("%w: negative max-age %d", ErrInvalidRegistration, maxAge)
	}

	r := &Registration{
		NT:       nt,
		USN:      usn,
		Location: location,
		Server:   server,
		MaxAge:   maxAge,
	}
	r.Interval = max(r.maxAge(), e.cfg.ReceiveTimeout)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.regs = append(e.regs, r)

	log.Debug().Str("nt", nt).Str("usn", usn).Int("max_age", maxAge).Msg("SSDP registration added")
	return nil
}

// Unregister sends ssdp:byebye for every registration with usn and removes them.
func (e *Engine) Unregister(usn string) error {
	e.mu.Lock()
	var removed []Registration
	kept := e.regs[:0]
	for _, r := range e.regs {
		if r.USN == usn {
			removed = append(removed, *r)
			continue
		}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(e.regs); i++ {
		e.regs[i] = nil
	}
	e.regs = kept
	e.mu.Unlock()

	if len(removed) == 0 {
		return fmt.Errorf("%w: %s", ErrNotRegistered, usn)
	}

	for _, r := range removed {
		e.send(ByeByeBuffer(r.NT, r.USN), e.group)
	}
	log.Debug().Str("usn", usn).Int("count", len(removed)).Msg("SSDP registration removed")
	return nil
}

// Advertise immediately announces every registration without touching timers.
func (e *Engine) Advertise() {
	for _, r := range e.Registrations() {
		e.send(AdvertiseBuffer(r.NT, r.USN, r.Location, r.Server, r.MaxAge), e.group)
	}
}

// Registrations returns a snapshot of the registration table.
func (e *Engine) Registrations() []Registration {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Registration, len(e.regs))
	for i, r := range e.regs {
		out[i] = *r
	}
	return out
}

// SetListener installs the callback for inbound announcements and answers.
func (e *Engine) SetListener(l Listener) {
	e.mu.Lock()
	e.listener = l
	e.mu.Unlock()
}

// Search multicasts M-SEARCH for target once per second until timeout and
// delivers the answers on the returned channel, which is closed when the
// window ends or ctx is cancelled.
func (e *Engine) Search(ctx context.Context, target string, timeout time.Duration) <-chan Answer {
	out := make(chan Answer, answersBuffer)
	if target == "" {
		target = TargetAll
	}
	if timeout < searchPeriod {
		timeout = searchPeriod
	}
	mx := min(max(int(timeout/time.Second), 1), 5)

	c := &collector{target: target, ch: out}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		close(out)
		return out
	}
	e.collectors[c] = struct{}{}
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.collectors, c)
			e.mu.Unlock()
			close(out)
		}()

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		ticker := time.NewTicker(searchPeriod)
		defer ticker.Stop()

		buf := SearchBuffer(target, mx)
		e.send(buf, e.group)
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.worker.Done():
				return
			case <-ticker.C:
				e.send(buf, e.group)
			}
		}
	}()

	return out
}

// Close announces ssdp:byebye for every registration, stops the loop and
// closes the socket.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	regs := make([]Registration, len(e.regs))
	for i, r := range e.regs {
		regs[i] = *r
	}
	e.regs = nil
	e.mu.Unlock()

	for _, r := range regs {
		e.send(ByeByeBuffer(r.NT, r.USN), e.group)
	}

	e.worker.Stop()
	err := e.conn.Close()

	log.Info().Int("byebye", len(regs)).Msg("SSDP engine stopped")
	return err
}

func (e *Engine) loop(ctx context.Context) {
	buf := make([]byte, maxDatagram)
	for {
		if ctx.Err() != nil {
			return
		}

		now := e.now()
		due := e.tick(now.Sub(e.last))
		e.last = now
		for _, r := range due {
			e.send(AdvertiseBuffer(r.NT, r.USN, r.Location, r.Server, r.MaxAge), e.group)
		}

		if err := e.conn.SetReadDeadline(time.Now().Add(e.cfg.ReceiveTimeout)); err != nil {
			log.Debug().Err(err).Msg("SSDP set read deadline failed")
		}
		n, from, err := e.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			log.Debug().Err(err).Msg("SSDP read failed")
			continue
		}

		msg, err := Parse(buf[:n], from)
		if err != nil {
			log.Debug().Err(err).Str("from", from.String()).Msg("Dropping SSDP datagram")
			continue
		}
		e.dispatch(msg)
	}
}

// tick ages every registration by elapsed and returns those that fell
// outside [maxAge/2, maxAge] and must be announced. Their intervals are
// reset to maxAge.
func (e *Engine) tick(elapsed time.Duration) []Registration {
	e.mu.Lock()
	defer e.mu.Unlock()

	var due []Registration
	for _, r := range e.regs {
		r.Interval -= elapsed
		full := max(r.maxAge(), e.cfg.ReceiveTimeout)
		if r.Interval < full/2 || r.Interval > full {
			r.Interval = full
			due = append(due, *r)
		}
	}
	return due
}

// dispatch handles an inbound message. Notifies and answers carrying one of
// our own USNs are looped-back traffic and go nowhere.
func (e *Engine) dispatch(msg Message) {
	switch m := msg.(type) {
	case *Search:
		e.answer(m)

	case *Notify:
		if e.isLocal(m.USN) {
			return
		}
		e.notifyListener(m)

	case *Answer:
		if e.isLocal(m.USN) {
			return
		}
		e.mu.Lock()
		for c := range e.collectors {
			if !MatchTarget(c.target, m.ST) {
				continue
			}
			select {
			case c.ch <- *m:
			default:
				log.Debug().Str("usn", m.USN).Msg("Search collector full, dropping answer")
			}
		}
		e.mu.Unlock()
		e.notifyListener(m)
	}
}

func (e *Engine) answer(s *Search) {
	if s.From == nil {
		return
	}

	e.mu.Lock()
	var matches []Registration
	for _, r := range e.regs {
		if MatchTarget(s.ST, r.NT) {
			matches = append(matches, *r)
		}
	}
	e.mu.Unlock()

	now := e.now()
	for _, r := range matches {
		e.send(AnswerBuffer(r.NT, r.USN, r.Location, r.Server, r.MaxAge, now), s.From)
	}
}

func (e *Engine) isLocal(usn string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.regs {
		if r.USN == usn {
			return true
		}
	}
	return false
}

func (e *Engine) notifyListener(msg Message) {
	e.mu.Lock()
	l := e.listener
	e.mu.Unlock()
	if l != nil {
		l.HandleMessage(msg)
	}
}

func (e *Engine) send(buf []byte, to net.Addr) {
	if _, err := e.conn.WriteTo(buf, to); err != nil {
		log.Warn().Err(err).Str("to", to.String()).Msg("SSDP send failed")
	}
}

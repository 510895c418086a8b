package stack

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/upnpd/pkg/db"
	"github.com/urmzd/upnpd/pkg/device"
	"github.com/urmzd/upnpd/pkg/gena"
	"github.com/urmzd/upnpd/pkg/ssdp"
	"github.com/urmzd/upnpd/pkg/upnp"
)

// Options describe one running daemon.
type Options struct {
	// Network carries the profile's SSDP and GENA tuning.
	Network db.Network

	// AdvertiseHost goes into LOCATION URLs. Empty picks the outbound IPv4
	// address of Network.Interface.
	AdvertiseHost string

	// Description is the root device description; empty publishes nothing.
	Description string

	// GENAHost is the eventing server bind address; empty binds all interfaces.
	GENAHost string

	// SSDP overrides engine settings. Interface defaults to Network.Interface.
	SSDP ssdp.Config

	// SSDPConn, when set, is used instead of opening the multicast socket.
	SSDPConn net.PacketConn
}

// Stack wires the discovery engine, peer hub, device manager and eventing
// server together. It implements device.Publisher; Hub serves as the
// device.Directory and device.EventSubscriber.
type Stack struct {
	Engine  *ssdp.Engine
	Hub     *device.Hub
	Manager *upnp.Manager
	Server  *gena.Server

	location string
	started  time.Time
}

// New starts every component and registers opts.Description when given.
// On failure everything already started is shut down again.
func New(opts Options) (*Stack, error) {
	network := opts.Network
	if err := network.Validate(); err != nil {
		return nil, fmt.Errorf("network config: %w", err)
	}

	ssdpCfg := opts.SSDP
	if ssdpCfg.Interface == "" {
		ssdpCfg.Interface = network.Interface
	}

	host := opts.AdvertiseHost
	if host == "" {
		var err error
		if host, err = AdvertiseAddr(ssdpCfg.Interface); err != nil {
			return nil, err
		}
	}

	var (
		engine *ssdp.Engine
		err    error
	)
	if opts.SSDPConn != nil {
		engine, err = ssdp.NewWithConn(opts.SSDPConn, ssdpCfg)
	} else {
		engine, err = ssdp.New(ssdpCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("start ssdp engine: %w", err)
	}

	hub := device.NewHub(engine)
	engine.SetListener(hub)

	mgr := upnp.NewManager(upnp.ManagerConfig{
		Server:              network.ServerBanner,
		MaxAge:              network.MaxAge,
		SubscriptionTimeout: network.SubscriptionTimeout(),
		NotifyTimeout:       network.IOTimeout(),
	}, engine)

	srv, err := gena.NewServer(gena.ServerConfig{
		Host:                opts.GENAHost,
		BasePort:            network.GENABasePort,
		IOTimeout:           network.IOTimeout(),
		SubscriptionTimeout: network.SubscriptionTimeout(),
	}, mgr, mgr)
	if err != nil {
		_ = mgr.Close()
		_ = engine.Close()
		return nil, fmt.Errorf("start eventing server: %w", err)
	}

	s := &Stack{
		Engine:   engine,
		Hub:      hub,
		Manager:  mgr,
		Server:   srv,
		location: "http://" + net.JoinHostPort(host, strconv.Itoa(srv.Port())),
		started:  time.Now(),
	}
	mgr.SetLocation(s.location)

	if opts.Description != "" {
		if err := mgr.RegisterDevice(opts.Description); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("register device: %w", err)
		}
	}

	log.Info().
		Str("location", mgr.DescriptionURL()).
		Int("gena_port", srv.Port()).
		Int("registrations", len(engine.Registrations())).
		Msg("UPnP stack started")

	return s, nil
}

// Location is the base URL of the eventing server as advertised.
func (s *Stack) Location() string { return s.location }

// Uptime is the time since New returned.
func (s *Stack) Uptime() time.Duration { return time.Since(s.started) }

// Close withdraws the device (byebye), then stops the eventing server and
// the engine.
func (s *Stack) Close() error {
	var errs []error
	if err := s.Manager.Close(); err != nil && !errors.Is(err, upnp.ErrClosed) {
		errs = append(errs, err)
	}
	if err := s.Server.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Engine.Close(); err != nil && !errors.Is(err, ssdp.ErrClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// --- device.Publisher ---

func (s *Stack) Registrations() []ssdp.Registration { return s.Engine.Registrations() }

func (s *Stack) Advertise() { s.Engine.Advertise() }

func (s *Stack) Services() []upnp.ServiceInfo { return s.Manager.Services() }

func (s *Stack) Device() *upnp.Device { return s.Manager.Device() }

func (s *Stack) NotifySubscribers(ctx context.Context, serviceID string, vars []upnp.Variable) error {
	return s.Manager.NotifySubscribers(ctx, serviceID, vars)
}

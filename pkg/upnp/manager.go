// Package upnp ties a device description to the discovery engine and the
// eventing server: it advertises the device tree, serves the description,
// validates subscriptions and actions, and delivers evented variables to
// subscribers from a background worker.
package upnp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/upnpd/pkg/gena"
	"github.com/urmzd/upnpd/pkg/supervise"
)

var (
	ErrInvalidDescription = errors.New("invalid device description")
	ErrAlreadyRegistered  = errors.New("a root device is already registered")
	ErrUnknownDevice      = errors.New("unknown device")
	ErrUnknownService     = errors.New("unknown service")
	ErrNoLocation         = errors.New("description location not set")
	ErrInvalidVariable    = errors.New("invalid variable name")
	ErrClosed             = errors.New("manager closed")
)

// Advertiser is the part of the discovery engine the manager drives.
type Advertiser interface {
	Register(nt, usn, location, server string, maxAge int) error
	Unregister(usn string) error
	Advertise()
}

// ManagerConfig holds device manager settings.
type ManagerConfig struct {
	// Location is the base URL of the eventing server, e.g. http://10.0.0.2:49152.
	Location string

	// DescriptionPath is where the description document is served.
	DescriptionPath string

	// Server is the SERVER header advertised over SSDP.
	Server string

	// MaxAge is the advertised CACHE-CONTROL max-age in seconds.
	MaxAge int

	// SubscriptionTimeout is how long a subscription lives without renewal.
	SubscriptionTimeout time.Duration

	// PendingTimeout drops subscribe requests never followed by acceptance.
	PendingTimeout time.Duration

	// SweepInterval is how often expired subscriptions are pruned.
	SweepInterval time.Duration

	// NotifyConcurrency bounds parallel NOTIFY requests per delivery.
	NotifyConcurrency int

	// NotifyTimeout bounds each NOTIFY request.
	NotifyTimeout time.Duration
}

// DefaultManagerConfig returns the standard settings.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		DescriptionPath:     "/description.xml",
		Server:              "Linux/6 UPnP/1.0 upnpd/1.0",
		MaxAge:              1800,
		SubscriptionTimeout: 1800 * time.Second,
		PendingTimeout:      30 * time.Second,
		SweepInterval:       30 * time.Second,
		NotifyConcurrency:   8,
		NotifyTimeout:       5 * time.Second,
	}
}

func (c *ManagerConfig) applyDefaults() {
	d := DefaultManagerConfig()
	if c.DescriptionPath == "" {
		c.DescriptionPath = d.DescriptionPath
	}
	if c.Server == "" {
		c.Server = d.Server
	}
	if c.MaxAge <= 0 {
		c.MaxAge = d.MaxAge
	}
	if c.SubscriptionTimeout <= 0 {
		c.SubscriptionTimeout = d.SubscriptionTimeout
	}
	if c.PendingTimeout <= 0 {
		c.PendingTimeout = d.PendingTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.NotifyConcurrency <= 0 {
		c.NotifyConcurrency = d.NotifyConcurrency
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = d.NotifyTimeout
	}
}

type resource struct {
	data    []byte
	mime    string
	modTime time.Time
}

// Manager is the device/subscription manager. It implements gena.Provider
// and gena.Sink.
type Manager struct {
	cfg      ManagerConfig
	engine   Advertiser
	notifier Notifier
	now      func() time.Time

	mu          sync.RWMutex
	root        *RootDevice
	usns        []string
	services    map[string]*Service
	byEventPath map[string]*Service
	byControl   map[string]*Service
	resources   map[string]resource
	registering bool
	closed      bool

	subMu       sync.Mutex
	subscribers map[chan gena.Event]struct{}

	queueMu sync.Mutex
	queue   []job
	wake    chan struct{}
	worker  *supervise.Worker
}

// NewManager creates a manager driving engine and starts its delivery worker.
func NewManager(cfg ManagerConfig, engine Advertiser) *Manager {
	cfg.applyDefaults()

	m := &Manager{
		cfg:         cfg,
		engine:      engine,
		notifier:    NewHTTPNotifier(cfg.NotifyTimeout),
		now:         time.Now,
		services:    make(map[string]*Service),
		byEventPath: make(map[string]*Service),
		byControl:   make(map[string]*Service),
		resources:   make(map[string]resource),
		subscribers: make(map[chan gena.Event]struct{}),
		wake:        make(chan struct{}, 1),
		worker:      supervise.New("upnp-notify"),
	}
	if err := m.worker.Start(context.Background(), m.run); err != nil {
		log.Error().Err(err).Msg("Failed to start notification worker")
	}
	return m
}

// SetNotifier replaces the NOTIFY transport.
func (m *Manager) SetNotifier(n Notifier) {
	m.mu.Lock()
	m.notifier = n
	m.mu.Unlock()
}

// SetLocation sets the eventing server base URL used in advertisements.
func (m *Manager) SetLocation(baseURL string) {
	m.mu.Lock()
	m.cfg.Location = strings.TrimRight(baseURL, "/")
	m.mu.Unlock()
}

// DescriptionURL is the advertised LOCATION.
func (m *Manager) DescriptionURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Location + m.cfg.DescriptionPath
}

// RegisterDevice parses description and advertises its device tree. The
// whole document is validated before anything is advertised, and a failing
// registration withdraws the identities registered before it. The engine is
// driven without holding the manager lock.
func (m *Manager) RegisterDevice(description string) error {
	root, err := ParseDescription(description)
	if err != nil {
		return err
	}

	m.mu.Lock()
	location, err := m.reserveLocked()
	m.mu.Unlock()
	if err != nil {
		return err
	}

	usns, err := m.advertiseIdentities(root, location)

	m.mu.Lock()
	m.registering = false
	if err == nil && m.closed {
		err = ErrClosed
	}
	if err != nil {
		m.mu.Unlock()
		m.withdraw(usns, "Rollback unregister failed")
		return err
	}
	m.commitLocked(root, description, usns)
	m.mu.Unlock()

	log.Info().
		Str("udn", root.Device.UDN).
		Str("location", location).
		Int("identities", len(usns)).
		Msg("Device registered")

	m.engine.Advertise()
	return nil
}

// reserveLocked checks that a device may be registered and marks a
// registration as in progress.
func (m *Manager) reserveLocked() (string, error) {
	switch {
	case m.closed:
		return "", ErrClosed
	case m.root != nil:
		return "", fmt.Errorf("%w: %s", ErrAlreadyRegistered, m.root.Device.UDN)
	case m.registering:
		return "", ErrAlreadyRegistered
	case m.cfg.Location == "":
		return "", ErrNoLocation
	}
	m.registering = true
	return m.cfg.Location + m.cfg.DescriptionPath, nil
}

// advertiseIdentities registers every SSDP identity of root. On failure the
// returned USNs are the ones already registered.
func (m *Manager) advertiseIdentities(root *RootDevice, location string) ([]string, error) {
	var usns []string
	seen := make(map[string]bool)
	for _, id := range root.identities() {
		if err := m.engine.Register(id.NT, id.USN, location, m.cfg.Server, m.cfg.MaxAge); err != nil {
			return usns, fmt.Errorf("register %s: %w", id.USN, err)
		}
		if !seen[id.USN] {
			seen[id.USN] = true
			usns = append(usns, id.USN)
		}
	}
	return usns, nil
}

func (m *Manager) commitLocked(root *RootDevice, description string, usns []string) {
	root.Device.Walk(func(d *Device) {
		for _, desc := range d.Services {
			svc := newService(d.UDN, desc)
			m.services[svc.Key()] = svc
			m.byEventPath[svc.EventSubURL] = svc
			if svc.ControlURL != "" {
				m.byControl[svc.ControlURL] = svc
			}
		}
	})

	m.root = root
	m.usns = usns
	m.resources[m.cfg.DescriptionPath] = resource{
		data:    []byte(description),
		mime:    "text/xml",
		modTime: m.now(),
	}
}

// withdraw sends byebye for usns. Callers must not hold m.mu.
func (m *Manager) withdraw(usns []string, msg string) {
	for _, usn := range usns {
		if err := m.engine.Unregister(usn); err != nil {
			log.Warn().Err(err).Str("usn", usn).Msg(msg)
		}
	}
}

// UnregisterDevice withdraws the root device with the given UDN.
func (m *Manager) UnregisterDevice(udn string) error {
	m.mu.Lock()
	if m.root == nil || m.root.Device.UDN != udn {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDevice, udn)
	}
	usns := m.detachLocked()
	m.mu.Unlock()

	m.withdraw(usns, "Unregister failed")
	log.Info().Str("udn", udn).Msg("Device unregistered")
	return nil
}

// detachLocked forgets the registered device and returns the USNs still to
// be withdrawn from the engine.
func (m *Manager) detachLocked() []string {
	usns := m.usns
	delete(m.resources, m.cfg.DescriptionPath)
	m.root = nil
	m.usns = nil
	m.services = make(map[string]*Service)
	m.byEventPath = make(map[string]*Service)
	m.byControl = make(map[string]*Service)
	return usns
}

// AddResource serves data at path, e.g. an SCPD document.
func (m *Manager) AddResource(path, mime string, data []byte) {
	m.mu.Lock()
	m.resources[path] = resource{data: data, mime: mime, modTime: m.now()}
	m.mu.Unlock()
}

// SetActionHandler installs the handler for action on a service.
func (m *Manager) SetActionHandler(udn, serviceID, action string, h ActionHandler) error {
	svc, err := m.service(serviceKey(udn, serviceID))
	if err != nil {
		return err
	}
	svc.mu.Lock()
	svc.actions[action] = h
	svc.mu.Unlock()
	return nil
}

// SetVariables declares the evented variables of a service without sending
// an event. They are included in the initial event of new subscribers.
func (m *Manager) SetVariables(udn, serviceID string, vars []Variable) error {
	if err := ValidateVariables(vars); err != nil {
		return err
	}
	svc, err := m.service(serviceKey(udn, serviceID))
	if err != nil {
		return err
	}
	svc.mu.Lock()
	svc.setVariables(vars)
	svc.mu.Unlock()
	return nil
}

// NotifySubscribers stores vars and queues their delivery to every active
// subscriber of the service. serviceID may be a bare serviceId, matching
// that service on every device, or a "udn::serviceId" key.
func (m *Manager) NotifySubscribers(ctx context.Context, serviceID string, vars []Variable) error {
	if len(vars) == 0 {
		return nil
	}
	if err := ValidateVariables(vars); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	var targets []*Service
	for key, svc := range m.services {
		if key == serviceID || svc.ServiceID == serviceID {
			targets = append(targets, svc)
		}
	}
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if len(targets) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownService, serviceID)
	}

	for _, svc := range targets {
		svc.mu.Lock()
		svc.setVariables(vars)
		svc.mu.Unlock()
		m.enqueue(job{svc: svc, vars: append([]Variable(nil), vars...)})
	}
	return nil
}

// Services returns a snapshot of every service, ordered by key.
func (m *Manager) Services() []ServiceInfo {
	m.mu.RLock()
	svcs := make([]*Service, 0, len(m.services))
	for _, svc := range m.services {
		svcs = append(svcs, svc)
	}
	m.mu.RUnlock()

	out := make([]ServiceInfo, 0, len(svcs))
	for _, svc := range svcs {
		out = append(out, svc.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Device returns the registered root device, or nil.
func (m *Manager) Device() *Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.root == nil {
		return nil
	}
	d := m.root.Device
	return &d
}

// Subscribe returns a channel receiving accepted subscriptions, drops and
// actions.
func (m *Manager) Subscribe() chan gena.Event {
	ch := make(chan gena.Event, 64)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (m *Manager) Unsubscribe(ch chan gena.Event) {
	m.subMu.Lock()
	if _, ok := m.subscribers[ch]; ok {
		delete(m.subscribers, ch)
		close(ch)
	}
	m.subMu.Unlock()
}

func (m *Manager) publish(ev gena.Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
			log.Debug().Str("kind", string(ev.Kind())).Msg("Event subscriber full, dropping event")
		}
	}
}

// Close stops the worker and withdraws the registered device.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.closed = true
	var usns []string
	if m.root != nil {
		usns = m.detachLocked()
	}
	m.mu.Unlock()

	m.withdraw(usns, "Unregister failed")

	m.worker.Stop()

	m.subMu.Lock()
	for ch := range m.subscribers {
		delete(m.subscribers, ch)
		close(ch)
	}
	m.subMu.Unlock()
	return nil
}

func (m *Manager) service(key string) (*Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, key)
	}
	return svc, nil
}

// Info implements gena.Provider.
func (m *Manager) Info(path string) (gena.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[path]
	if !ok {
		return gena.FileInfo{}, fmt.Errorf("%w: %s", gena.ErrNotFound, path)
	}
	return gena.FileInfo{Size: int64(len(r.data)), MimeType: r.mime, ModTime: r.modTime}, nil
}

// Open implements gena.Provider. Resources are read-only.
func (m *Manager) Open(path string, mode gena.OpenMode) (gena.File, error) {
	if mode != gena.OpenRead {
		return nil, gena.ErrReadOnly
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", gena.ErrNotFound, path)
	}
	return gena.NewVirtualFile(r.data), nil
}

// HandleEvent implements gena.Sink.
func (m *Manager) HandleEvent(ctx context.Context, ev gena.Event) (*gena.Reply, error) {
	switch e := ev.(type) {
	case gena.SubscribeRequest:
		return m.handleSubscribe(e)
	case gena.SubscribeAccepted:
		return nil, m.handleAccepted(e)
	case gena.Unsubscribe:
		return nil, m.handleUnsubscribe(e)
	case gena.ActionRequest:
		return m.handleAction(ctx, e)
	}
	return nil, fmt.Errorf("unsupported event %T", ev)
}

func (m *Manager) byPath(path string) (*Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.byEventPath[path]
	if !ok {
		return nil, fmt.Errorf("%w: no service evented at %s", gena.ErrPreconditionFailed, path)
	}
	return svc, nil
}

func (m *Manager) handleSubscribe(req gena.SubscribeRequest) (*gena.Reply, error) {
	svc, err := m.byPath(req.Path)
	if err != nil {
		return nil, err
	}
	now := m.now()

	if req.Renewal() {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		sub, ok := svc.subs[req.SID]
		if !ok || (!sub.Expires.IsZero() && now.After(sub.Expires)) {
			return nil, fmt.Errorf("%w: unknown sid %s", gena.ErrPreconditionFailed, req.SID)
		}
		sub.Expires = now.Add(m.cfg.SubscriptionTimeout)
		return &gena.Reply{SID: req.SID}, nil
	}

	if req.NT != "upnp:event" {
		return nil, fmt.Errorf("%w: unsupported NT %q", gena.ErrPreconditionFailed, req.NT)
	}
	callback, ok := parseCallback(req.Callback)
	if !ok {
		return nil, fmt.Errorf("%w: no usable callback in %q", gena.ErrPreconditionFailed, req.Callback)
	}

	sid := "uuid:" + uuid.NewString()

	svc.mu.Lock()
	svc.pending[sid] = pending{callback: callback, created: now}
	svc.mu.Unlock()

	log.Debug().Str("service", svc.ServiceID).Str("sid", sid).Str("callback", callback).Msg("Subscription requested")
	return &gena.Reply{SID: sid}, nil
}

func (m *Manager) handleAccepted(acc gena.SubscribeAccepted) error {
	svc, err := m.byPath(acc.Path)
	if err != nil {
		return err
	}
	if acc.Renewal {
		m.publish(acc)
		return nil
	}

	svc.mu.Lock()
	p, ok := svc.pending[acc.SID]
	if !ok {
		svc.mu.Unlock()
		return fmt.Errorf("%w: no pending subscription %s", gena.ErrPreconditionFailed, acc.SID)
	}
	delete(svc.pending, acc.SID)

	if _, dup := svc.subs[acc.SID]; dup {
		svc.mu.Unlock()
		return nil
	}
	svc.subs[acc.SID] = &Subscription{
		SID:      acc.SID,
		Callback: p.callback,
		Expires:  m.now().Add(m.cfg.SubscriptionTimeout),
	}
	svc.mu.Unlock()

	m.enqueue(job{svc: svc, initialSID: acc.SID})
	acc.Callback = p.callback
	m.publish(acc)

	log.Info().Str("service", svc.ServiceID).Str("sid", acc.SID).Str("callback", p.callback).Msg("Subscription accepted")
	return nil
}

func (m *Manager) handleUnsubscribe(req gena.Unsubscribe) error {
	svc, err := m.byPath(req.Path)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	_, ok := svc.subs[req.SID]
	delete(svc.subs, req.SID)
	svc.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: unknown sid %s", gena.ErrPreconditionFailed, req.SID)
	}

	m.publish(req)
	log.Info().Str("service", svc.ServiceID).Str("sid", req.SID).Msg("Subscription dropped")
	return nil
}

func (m *Manager) handleAction(ctx context.Context, req gena.ActionRequest) (*gena.Reply, error) {
	m.mu.RLock()
	svc, ok := m.byControl[req.Path]
	m.mu.RUnlock()
	if !ok {
		return nil, invalidAction("no service controlled at %s", req.Path)
	}
	if req.ServiceType != svc.ServiceType {
		return nil, invalidAction("service type %s does not match %s", req.ServiceType, svc.ServiceType)
	}

	svc.mu.Lock()
	h, ok := svc.actions[req.ActionName]
	svc.mu.Unlock()
	if !ok {
		return nil, invalidAction("no action %s on %s", req.ActionName, svc.ServiceID)
	}

	args, err := parseActionArgs(req.Body, req.ActionName)
	if err != nil {
		return nil, err
	}

	call := &ActionCall{
		UDN:         svc.UDN,
		ServiceID:   svc.ServiceID,
		ServiceType: svc.ServiceType,
		Action:      req.ActionName,
		Args:        args,
	}
	out, err := h(ctx, call)
	if err != nil {
		var aerr *ActionError
		if !errors.As(err, &aerr) {
			aerr = &ActionError{Code: CodeActionFailed, Description: err.Error()}
		}
		log.Debug().Err(err).Str("service", svc.ServiceID).Str("action", req.ActionName).Msg("Action failed")
		return nil, aerr
	}

	req.UDN = svc.UDN
	req.ServiceID = svc.ServiceID
	m.publish(req)

	return &gena.Reply{Body: actionResponse(svc.ServiceType, req.ActionName, out)}, nil
}

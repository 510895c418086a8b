package upnp

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// job is one unit of NOTIFY delivery. With initialSID set it sends every
// evented variable to that subscription only (its SEQ 0 event); otherwise it
// sends vars to every active subscription.
type job struct {
	svc        *Service
	vars       []Variable
	initialSID string
}

type target struct {
	sid      string
	callback string
	seq      uint32
}

func (m *Manager) enqueue(j job) {
	m.queueMu.Lock()
	m.queue = append(m.queue, j)
	m.queueMu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) dequeue() []job {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	jobs := m.queue
	m.queue = nil
	return jobs
}

// run drains the delivery queue in order and periodically prunes expired
// subscriptions.
func (m *Manager) run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
			for _, j := range m.dequeue() {
				if ctx.Err() != nil {
					return
				}
				m.deliver(ctx, j)
			}
		case <-ticker.C:
			m.sweep()
		}
	}
}

// prepare selects the delivery targets of j and advances their sequence
// numbers under the service lock.
func (m *Manager) prepare(j job) ([]target, []Variable) {
	svc := j.svc
	svc.mu.Lock()
	defer svc.mu.Unlock()

	for _, sid := range svc.prune(m.now(), m.cfg.PendingTimeout) {
		log.Info().Str("service", svc.ServiceID).Str("sid", sid).Msg("Subscription expired")
	}

	var targets []target
	vars := j.vars
	if j.initialSID != "" {
		sub, ok := svc.subs[j.initialSID]
		if !ok {
			return nil, nil
		}
		sub.initialSent = true
		vars = append([]Variable(nil), svc.variables...)
		targets = append(targets, target{sid: sub.SID, callback: sub.Callback, seq: sub.nextSeq()})
		return targets, vars
	}

	for _, sub := range svc.subs {
		if !sub.initialSent {
			continue
		}
		targets = append(targets, target{sid: sub.SID, callback: sub.Callback, seq: sub.nextSeq()})
	}
	return targets, vars
}

func (m *Manager) deliver(ctx context.Context, j job) {
	targets, vars := m.prepare(j)
	if len(targets) == 0 {
		return
	}

	m.mu.RLock()
	notifier := m.notifier
	m.mu.RUnlock()

	body := propertySet(vars)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.NotifyConcurrency)
	for _, t := range targets {
		g.Go(func() error {
			if err := notifier.Notify(gctx, t.callback, t.sid, t.seq, body); err != nil {
				log.Warn().Err(err).
					Str("service", j.svc.ServiceID).
					Str("sid", t.sid).
					Uint32("seq", t.seq).
					Msg("Event delivery failed")
				return nil
			}
			log.Debug().Str("sid", t.sid).Uint32("seq", t.seq).Int("vars", len(vars)).Msg("Event delivered")
			return nil
		})
	}
	g.Wait()
}

func (m *Manager) sweep() {
	m.mu.RLock()
	svcs := make([]*Service, 0, len(m.services))
	for _, svc := range m.services {
		svcs = append(svcs, svc)
	}
	m.mu.RUnlock()

	now := m.now()
	for _, svc := range svcs {
		svc.mu.Lock()
		dropped := svc.prune(now, m.cfg.PendingTimeout)
		svc.mu.Unlock()
		for _, sid := range dropped {
			log.Info().Str("service", svc.ServiceID).Str("sid", sid).Msg("Subscription expired")
		}
	}
}

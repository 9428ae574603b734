// Package connectivity models reachability of the sync endpoint as an
// explicit, pollable status value instead of a hidden global listener, so
// the queue's drain trigger can be tested by injecting transitions.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/logging"
)

// Status is the current connectivity state.
type Status int

const (
	StatusOffline Status = iota
	StatusOnline
)

func (s Status) String() string {
	if s == StatusOnline {
		return "online"
	}
	return "offline"
}

// Prober checks endpoint reachability. remote.HTTPClient satisfies it.
type Prober interface {
	Ping(ctx context.Context) error
}

// Monitor probes the remote on an interval and exposes the result both as
// a pollable value (Now) and as a coalescing change channel (Watch).
// Set allows tests and callers with better information to inject a status
// directly.
type Monitor struct {
	probe        Prober
	interval     time.Duration
	probeTimeout time.Duration
	log          logging.Logger

	mu     sync.RWMutex
	status Status
	subs   []chan Status
}

func NewMonitor(probe Prober, interval time.Duration, log logging.Logger) *Monitor {
	return &Monitor{
		probe:        probe,
		interval:     interval,
		probeTimeout: 3 * time.Second,
		log:          log,
		status:       StatusOffline,
	}
}

// Now returns the current status.
func (m *Monitor) Now() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Set installs a status and notifies watchers on change.
func (m *Monitor) Set(s Status) {
	m.mu.Lock()
	changed := m.status != s
	m.status = s
	subs := m.subs
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, ch := range subs {
		// coalesce: a slow watcher sees only the latest transition
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// Watch returns a channel that receives status transitions. The channel is
// buffered and coalescing; it reflects the latest change, not a history.
func (m *Monitor) Watch() <-chan Status {
	ch := make(chan Status, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Run probes on a ticker until ctx is done. Each probe gets a bounded
// timeout so a hanging network cannot stall the loop.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
			err := m.probe.Ping(probeCtx)
			cancel()

			next := StatusOnline
			if err != nil {
				next = StatusOffline
			}
			if next != m.Now() {
				m.log.Info(ctx, "connectivity changed", "status", next.String())
			}
			m.Set(next)

		case <-ctx.Done():
			return
		}
	}
}

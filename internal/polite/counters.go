package polite

import "sync/atomic"

// AtomicCounters is a process-wide Counters implementation backed by
// sync/atomic gauges, matching the donor's internal/observability.Metrics
// register of atomic.Int64 fields. It tracks exactly the names the core
// scheduler writes in dedicated fields; any other name gets its own lazily
// created counter, reported by Snapshot, so a misconfigured counter name
// is observable rather than silently lost.
type AtomicCounters struct {
	domainsFetching atomic.Int64
	urlsRejected    atomic.Int64
	urlsAborted     atomic.Int64
	other           atomicCounterMap
}

// NewAtomicCounters creates a ready-to-use AtomicCounters.
func NewAtomicCounters() *AtomicCounters {
	return &AtomicCounters{other: newAtomicCounterMap()}
}

func (c *AtomicCounters) Increment(name string, delta int64) {
	c.counter(name).Add(delta)
}

func (c *AtomicCounters) Decrement(name string, delta int64) {
	c.counter(name).Add(-delta)
}

func (c *AtomicCounters) counter(name string) *atomic.Int64 {
	switch name {
	case CounterDomainsFetching:
		return &c.domainsFetching
	case CounterURLsRejected:
		return &c.urlsRejected
	case CounterURLsAborted:
		return &c.urlsAborted
	default:
		return c.other.get(name)
	}
}

// Snapshot returns the current named counter values, matching the
// donor's Metrics.Snapshot() map[string]int64 shape.
func (c *AtomicCounters) Snapshot() map[string]int64 {
	snap := map[string]int64{
		CounterDomainsFetching: c.domainsFetching.Load(),
		CounterURLsRejected:    c.urlsRejected.Load(),
		CounterURLsAborted:     c.urlsAborted.Load(),
	}
	c.other.each(func(name string, v int64) {
		snap[name] = v
	})
	return snap
}

package polite

import (
	"net/url"
	"sync"
)

// Manager owns one DomainQueue per origin, created lazily on first Offer
// and reaped once IsEmpty() holds. It is additive convenience wiring over
// DomainQueue — the higher layer that spec.md §1 places out of scope for
// the core ("a higher layer partitions domains to workers") — never a
// substitute for DomainQueue, which works standalone.
//
// Grounded on internal/engine/engine.go's fetchers map[string]Fetcher +
// sync.RWMutex registry pattern.
type Manager struct {
	policy   FetcherPolicy
	sink     OutputSink
	counters Counters
	opts     []Option

	mu     sync.RWMutex
	queues map[string]*DomainQueue
}

// NewManager creates a Manager that builds DomainQueues under policy,
// all sharing sink and counters.
func NewManager(policy FetcherPolicy, sink OutputSink, counters Counters, opts ...Option) *Manager {
	return &Manager{
		policy:   policy,
		sink:     sink,
		counters: counters,
		opts:     opts,
		queues:   make(map[string]*DomainQueue),
	}
}

// DomainOf extracts the partition key (hostname) a Manager groups queues
// by, matching types.Request.Domain()'s use of url.Hostname().
func DomainOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}

// Offer routes item to the DomainQueue for its domain, creating the queue
// if this is the first URL seen for that origin. Per spec.md's "caller may
// record a rejection counter" note, Manager is that caller: a false result
// increments URLS_REJECTED.
func (m *Manager) Offer(domain string, item ScoredURL) bool {
	admitted := m.queueFor(domain).Offer(item)
	if !admitted {
		m.counters.Increment(CounterURLsRejected, 1)
	}
	return admitted
}

// Queue returns the DomainQueue for domain, creating it if absent.
func (m *Manager) Queue(domain string) *DomainQueue {
	return m.queueFor(domain)
}

func (m *Manager) queueFor(domain string) *DomainQueue {
	m.mu.RLock()
	q, ok := m.queues[domain]
	m.mu.RUnlock()
	if ok {
		return q
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok = m.queues[domain]; ok {
		return q
	}
	q = NewDomainQueue(domain, m.policy, m.sink, m.counters, m.opts...)
	m.queues[domain] = q
	return q
}

// Domains returns the origins currently tracked, regardless of emptiness.
func (m *Manager) Domains() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.queues))
	for d := range m.queues {
		names = append(names, d)
	}
	return names
}

// Reap removes and returns the domains whose queues are empty (no queued
// items, no active fetchers) — the only condition spec.md's Data Model
// table allows a supervising layer to use to destroy a queue.
func (m *Manager) Reap() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var reaped []string
	for domain, q := range m.queues {
		if q.IsEmpty() {
			delete(m.queues, domain)
			reaped = append(reaped, domain)
		}
	}
	return reaped
}

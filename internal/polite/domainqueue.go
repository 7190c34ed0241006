package polite

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DomainQueue is a bounded priority collection over ScoredURL for one
// origin. It guards its invariants under concurrent offer/poll/release/
// abortAll calls with a single mutex; no suspension points exist inside
// the critical section, and poll never blocks waiting for work or for
// the deadline — callers re-poll.
type DomainQueue struct {
	domain string

	mu                sync.Mutex
	items             []ScoredURL
	sortedFlag        bool
	numActiveFetchers uint32
	nextFetchEpochMs  int64

	policy   FetcherPolicy
	sink     OutputSink
	counters Counters
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a DomainQueue at construction.
type Option func(*DomainQueue)

// WithClock overrides the queue's time source. Intended for tests that
// need deterministic politeness-timing assertions.
func WithClock(now func() time.Time) Option {
	return func(q *DomainQueue) { q.now = now }
}

// WithLogger attaches a logger used for per-item sink failures during
// AbortAll. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(q *DomainQueue) { q.logger = logger }
}

// NewDomainQueue creates a queue for the given origin under policy,
// reporting aborted URLs to sink and gauge changes to counters. sink and
// counters may be nil, in which case NoopSink/NoopCounters are used.
func NewDomainQueue(domain string, policy FetcherPolicy, sink OutputSink, counters Counters, opts ...Option) *DomainQueue {
	if sink == nil {
		sink = NoopSink{}
	}
	if counters == nil {
		counters = NoopCounters{}
	}

	q := &DomainQueue{
		domain:   domain,
		items:    make([]ScoredURL, 0, policy.MaxURLs()),
		policy:   policy,
		sink:     sink,
		counters: counters,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Domain returns the origin this queue serves.
func (q *DomainQueue) Domain() string { return q.domain }

// Offer attempts to add item to the queue. Returns true if accepted.
//
// If the queue has headroom, item is appended and the sort is deferred.
// Once full, the queue is sorted if needed and item is compared against
// the current lowest-scored item: a worse-or-equal score is rejected; a
// better score evicts the worst item and item is inserted in sorted
// position.
func (q *DomainQueue) Offer(item ScoredURL) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	maxURLs := int(q.policy.MaxURLs())
	if len(q.items) < maxURLs {
		q.items = append(q.items, item)
		q.sortedFlag = false
		return true
	}

	q.ensureSorted()
	worst := q.items[len(q.items)-1]
	if item.Score <= worst.Score {
		return false
	}

	q.items = q.items[:len(q.items)-1]
	q.insertSorted(item)
	return true
}

// Poll returns a batch of URLs that may be fetched now, or (nil, false).
//
// Clause order (first match wins): empty queue; expired crawl-end
// deadline (triggers an inline AbortAll); multi-threaded dispatch (one
// URL per call, up to ThreadsPerHost concurrent batches, no politeness
// gap enforced); single-threaded dispatch (one batch at a time, gated on
// the previous batch having been released and on NextFetchEpochMs).
func (q *DomainQueue) Poll() (*FetchBatch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	now := q.now()

	if deadline, ok := q.policy.CrawlEndEpochMs(); ok && now.UnixMilli() >= deadline {
		q.ensureSorted()
		q.abortAllLocked()
		return nil, false
	}

	if q.policy.ThreadsPerHost() > 1 {
		if q.numActiveFetchers < q.policy.ThreadsPerHost() {
			q.ensureSorted()
			top := q.items[0]
			q.items = q.items[1:]
			q.numActiveFetchers++
			q.counters.Increment(CounterDomainsFetching, 1)
			return q.newBatch([]ScoredURL{top}), true
		}
		return nil, false
	}

	// threadsPerHost == 1: single-threaded polite mode.
	if q.numActiveFetchers == 0 && now.UnixMilli() >= q.nextFetchEpochMs {
		q.ensureSorted()
		req := q.policy.FetchRequest(uint32(len(q.items)), now)

		n := int(req.NumURLs)
		if n > len(q.items) {
			n = len(q.items) // defensive; cannot happen per contract
		}

		taken := make([]ScoredURL, n)
		copy(taken, q.items[:n])
		q.items = q.items[n:]

		q.numActiveFetchers++
		q.nextFetchEpochMs = req.NextRequestEpochMs
		q.counters.Increment(CounterDomainsFetching, 1)
		return q.newBatch(taken), true
	}

	return nil, false
}

// Release signals that batch has been fully processed. Decrements the
// active-fetcher count and the DOMAINS_FETCHING counter. Releasing a
// batch that did not come from this queue, or releasing the same batch
// twice, is a programmer error and panics.
func (q *DomainQueue) Release(batch *FetchBatch) {
	assertf(batch != nil, "polite: release of nil batch")
	assertf(batch.owningQueue == q, "polite: release of batch from a different queue")
	assertf(batch.released.CompareAndSwap(false, true), "polite: double release of batch")

	q.mu.Lock()
	defer q.mu.Unlock()

	assertf(q.numActiveFetchers > 0, "polite: active-fetcher count underflow on release")
	q.numActiveFetchers--
	q.counters.Decrement(CounterDomainsFetching, 1)
}

// AbortAll emits a synthetic ABORTED completion record to the sink for
// every URL still queued, then clears the queue. It does not touch
// numActiveFetchers: batches already dispatched must still be released by
// their fetchers. Calling AbortAll twice is equivalent to calling it
// once — the second call finds an empty queue and is a no-op.
func (q *DomainQueue) AbortAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ensureSorted()
	q.abortAllLocked()
}

// abortAllLocked is the drain implementation shared by AbortAll and
// Poll's deadline clause. It must be called with mu already held — it
// does not acquire or release the lock itself, so Poll can inline the
// drain within its own critical section per spec's "inline the drain, do
// not re-acquire" requirement.
func (q *DomainQueue) abortAllLocked() {
	ctx := context.Background()
	for _, u := range q.items {
		if err := q.sink.Append(ctx, buildAbortedRecord(u)); err != nil {
			q.logger.Warn("abortAll: sink write failed",
				"domain", q.domain, "url", u.NormalizedURL, "error", err)
		}
		q.counters.Increment(CounterURLsAborted, 1)
	}
	q.items = q.items[:0]
	q.sortedFlag = true
}

// IsEmpty returns true if the queue holds no items and has no active
// fetchers — the only condition a supervising layer may use to decide
// the queue may be destroyed.
func (q *DomainQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0 && q.numActiveFetchers == 0
}

// Len returns the current number of queued (not yet dispatched) items.
func (q *DomainQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// ActiveFetchers returns the number of currently dispatched, unreleased batches.
func (q *DomainQueue) ActiveFetchers() uint32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.numActiveFetchers
}

func (q *DomainQueue) newBatch(items []ScoredURL) *FetchBatch {
	return &FetchBatch{items: items, owningQueue: q, sink: q.sink}
}

// ensureSorted brings items into canonical order (score descending, URL
// ascending) if they aren't already. It is a no-op when sortedFlag is
// true, deferring the O(n log n) cost to the moments ordering is
// actually required (a full queue on Offer, or any Poll).
func (q *DomainQueue) ensureSorted() {
	if q.sortedFlag {
		return
	}
	sort.Slice(q.items, func(i, j int) bool { return less(q.items[i], q.items[j]) })
	q.sortedFlag = true
}

// insertSorted inserts item into q.items, which must already be sorted,
// preserving sort order via binary search.
func (q *DomainQueue) insertSorted(item ScoredURL) {
	idx := sort.Search(len(q.items), func(i int) bool { return less(item, q.items[i]) })
	q.items = append(q.items, ScoredURL{})
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = item
}

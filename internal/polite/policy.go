// Package polite implements the per-domain polite fetch scheduler: a
// bounded priority admission queue that releases batches of URLs to
// fetcher workers under a configurable politeness policy.
package polite

import "time"

// FetcherPolicy is an immutable politeness policy shared read-only among
// all DomainQueues it governs.
type FetcherPolicy struct {
	crawlDelay       time.Duration
	maxURLs          uint32
	threadsPerHost   uint32
	requestsPerBatch uint32
	crawlEndEpochMs  *int64
}

// NewFetcherPolicy constructs a FetcherPolicy. maxURLs and threadsPerHost
// and requestsPerBatch are clamped to 1 if given as 0, matching the "≥ 1"
// invariant in the data model. Pass crawlEndEpochMs <= 0 to leave the
// crawl-end deadline unset.
func NewFetcherPolicy(crawlDelay time.Duration, maxURLs, threadsPerHost, requestsPerBatch uint32, crawlEndEpochMs int64) FetcherPolicy {
	if maxURLs == 0 {
		maxURLs = 1
	}
	if threadsPerHost == 0 {
		threadsPerHost = 1
	}
	if requestsPerBatch == 0 {
		requestsPerBatch = 1
	}

	p := FetcherPolicy{
		crawlDelay:       crawlDelay,
		maxURLs:          maxURLs,
		threadsPerHost:   threadsPerHost,
		requestsPerBatch: requestsPerBatch,
	}
	if crawlEndEpochMs > 0 {
		v := crawlEndEpochMs
		p.crawlEndEpochMs = &v
	}
	return p
}

// CrawlDelay returns the minimum wall-clock gap enforced between two
// successive single-threaded dispatches.
func (p FetcherPolicy) CrawlDelay() time.Duration { return p.crawlDelay }

// MaxURLs returns the bound on how many ScoredURLs a DomainQueue retains.
func (p FetcherPolicy) MaxURLs() uint32 { return p.maxURLs }

// ThreadsPerHost returns the max number of concurrently dispatched batches.
func (p FetcherPolicy) ThreadsPerHost() uint32 { return p.threadsPerHost }

// RequestsPerBatch returns the batching hint used in single-thread mode.
func (p FetcherPolicy) RequestsPerBatch() uint32 { return p.requestsPerBatch }

// CrawlEndEpochMs returns the optional crawl-end deadline and whether it is set.
func (p FetcherPolicy) CrawlEndEpochMs() (int64, bool) {
	if p.crawlEndEpochMs == nil {
		return 0, false
	}
	return *p.crawlEndEpochMs, true
}

// FetchRequest computes the policy-derived release plan for a queue
// currently holding queueSize items. queueSize must be >= 1.
//
// numUrls is min(queueSize, requestsPerBatch). nextRequestEpochMs is
// now+crawlDelay when threadsPerHost == 1 (even when crawlDelay == 0, in
// which case it degenerates to now — no spacing); otherwise it is now,
// since no gap is enforced across concurrent dispatches to the same host.
func (p FetcherPolicy) FetchRequest(queueSize uint32, now time.Time) FetchRequest {
	numURLs := p.requestsPerBatch
	if queueSize < numURLs {
		numURLs = queueSize
	}
	if numURLs == 0 {
		numURLs = 1
	}

	next := now
	if p.threadsPerHost == 1 {
		next = now.Add(p.crawlDelay)
	}

	return FetchRequest{
		NumURLs:            numURLs,
		NextRequestEpochMs: next.UnixMilli(),
	}
}

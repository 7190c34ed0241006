package polite

import "context"

// FetchStatus enumerates fetch outcomes recorded by the sink.
type FetchStatus string

const (
	StatusFetched FetchStatus = "FETCHED"
	StatusError   FetchStatus = "ERROR"
	StatusAborted FetchStatus = "ABORTED"
)

// HTTPCodeUnknown is the sentinel HTTP status written for records that
// never reached the wire, e.g. aborted URLs.
const HTTPCodeUnknown = -1

// AbortedRecord mirrors the bit-level field shape spec.md §6 requires for
// the sink's append contract: requested and final URL equal, timing
// fields zeroed, content empty, metadata carried through verbatim.
type AbortedRecord struct {
	Status         FetchStatus
	HTTPCode       int
	RequestedURL   string
	FinalURL       string
	RequestEpochMs int64
	FetchEpochMs   int64
	Headers        map[string][]string
	Body           []byte
	ContentType    string
	BytesPerSecond float64
	Metadata       map[string]string
}

// FetchedDatum is what a Fetcher.Fetch call returns for one URL. It shares
// AbortedRecord's field shape because both are the same wire record the
// sink persists — only Status and the timing/body fields differ by
// outcome, so callers build one straight from a Fetch result and Append it.
type FetchedDatum = AbortedRecord

// Fetcher performs the actual I/O for one admitted URL. A DomainQueue never
// calls Fetch itself — callers poll a batch, pass each item through a
// Fetcher, and release the batch when done, matching spec.md's invariant
// that poll/release never block on network I/O.
type Fetcher interface {
	MaxThreads() uint32
	Policy() FetcherPolicy
	Fetch(ctx context.Context, u ScoredURL) (FetchedDatum, error)
}

// OutputSink is the append-only writer the scheduler reports aborted URLs
// to. Implementations must be safe for concurrent use: a DomainQueue calls
// Append once per aborted URL inside its own critical section, but that
// lock is per queue and does not serialize calls from different queues
// sharing one sink.
type OutputSink interface {
	Append(ctx context.Context, rec AbortedRecord) error
}

// Counters is the process-wide observability adapter the queue reports
// gauge changes to. Implementations must be safe for concurrent use.
type Counters interface {
	Increment(name string, delta int64)
	Decrement(name string, delta int64)
}

// Counter names used by the core scheduler.
const (
	CounterDomainsFetching = "DOMAINS_FETCHING"
	CounterURLsRejected    = "URLS_REJECTED"
	CounterURLsAborted     = "URLS_ABORTED"
)

// NoopSink discards every record. Useful as a default when no sink is
// configured, or in tests that don't care about abort records.
type NoopSink struct{}

func (NoopSink) Append(context.Context, AbortedRecord) error { return nil }

// NoopCounters discards every increment/decrement.
type NoopCounters struct{}

func (NoopCounters) Increment(string, int64) {}
func (NoopCounters) Decrement(string, int64) {}

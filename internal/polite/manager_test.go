package polite

import "testing"

func TestManagerOffersPartitionByDomain(t *testing.T) {
	mgr := NewManager(NewFetcherPolicy(0, 10, 1, 1, 0), NoopSink{}, NewAtomicCounters())

	a := mustURL(t, "https://a.example.com/1", 1)
	b := mustURL(t, "https://b.example.com/1", 1)

	if !mgr.Offer("a.example.com", a) {
		t.Fatalf("expected a.example.com offer to be admitted")
	}
	if !mgr.Offer("b.example.com", b) {
		t.Fatalf("expected b.example.com offer to be admitted")
	}

	domains := mgr.Domains()
	if len(domains) != 2 {
		t.Fatalf("expected 2 domains, got %d: %v", len(domains), domains)
	}

	if mgr.Queue("a.example.com").Len() != 1 {
		t.Fatalf("expected a.example.com queue to hold 1 item")
	}
	if mgr.Queue("b.example.com").Len() != 1 {
		t.Fatalf("expected b.example.com queue to hold 1 item")
	}
}

func TestManagerOfferIncrementsRejectionCounter(t *testing.T) {
	counters := NewAtomicCounters()
	mgr := NewManager(NewFetcherPolicy(0, 1, 1, 1, 0), NoopSink{}, counters)

	kept := mustURL(t, "https://example.com/high", 5)
	if !mgr.Offer("example.com", kept) {
		t.Fatalf("expected first offer to be admitted")
	}

	rejected := mustURL(t, "https://example.com/low", 1)
	if mgr.Offer("example.com", rejected) {
		t.Fatalf("expected second offer to be rejected (maxURLs=1, lower score)")
	}

	if got := counters.Snapshot()[CounterURLsRejected]; got != 1 {
		t.Fatalf("expected URLS_REJECTED == 1, got %d", got)
	}
}

func TestManagerReapRemovesOnlyEmptyQueues(t *testing.T) {
	mgr := NewManager(NewFetcherPolicy(0, 10, 1, 1, 0), NoopSink{}, NewAtomicCounters())

	mgr.Offer("empty.example.com", mustURL(t, "https://empty.example.com/x", 1))
	mgr.Offer("busy.example.com", mustURL(t, "https://busy.example.com/x", 1))

	batch, ok := mgr.Queue("empty.example.com").Poll()
	if !ok {
		t.Fatalf("expected poll to succeed")
	}
	mgr.Queue("empty.example.com").Release(batch)

	reaped := mgr.Reap()
	if len(reaped) != 1 || reaped[0] != "empty.example.com" {
		t.Fatalf("expected only empty.example.com reaped, got %v", reaped)
	}

	remaining := mgr.Domains()
	if len(remaining) != 1 || remaining[0] != "busy.example.com" {
		t.Fatalf("expected busy.example.com to remain tracked, got %v", remaining)
	}
}

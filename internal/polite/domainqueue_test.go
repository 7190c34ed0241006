package polite

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock is an injectable, manually-advanced time source used to make
// timing assertions exact instead of sleep-based.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// set pins the clock to time.UnixMilli(0)+d, regardless of the time passed
// to newFakeClock. Every test in this file that calls set starts its clock
// at time.UnixMilli(0), so d is the offset from that start.
func (c *fakeClock) set(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = time.UnixMilli(0).Add(d)
}

func mustURL(t *testing.T, url string, score float64) ScoredURL {
	t.Helper()
	u, err := NewScoredURL(url, score, nil)
	if err != nil {
		t.Fatalf("NewScoredURL(%q): %v", url, err)
	}
	return u
}

// collectingSink records every aborted record it receives.
type collectingSink struct {
	mu      sync.Mutex
	records []AbortedRecord
}

func (s *collectingSink) Append(_ context.Context, rec AbortedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *collectingSink) snapshot() []AbortedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AbortedRecord, len(s.records))
	copy(out, s.records)
	return out
}

// --- S1: basic politeness ---

func TestScenarioS1BasicPoliteness(t *testing.T) {
	clock := newFakeClock(time.UnixMilli(0))
	policy := NewFetcherPolicy(1000*time.Millisecond, 10, 1, 1, 0)
	q := NewDomainQueue("example.com", policy, nil, nil, WithClock(clock.now))

	q.Offer(mustURL(t, "https://example.com/a", 3))
	q.Offer(mustURL(t, "https://example.com/b", 5))
	q.Offer(mustURL(t, "https://example.com/c", 1))

	// t=0: poll -> [B]
	batch, ok := q.Poll()
	if !ok || batch.Len() != 1 || batch.Items()[0].NormalizedURL != "https://example.com/b" {
		t.Fatalf("expected batch=[B] at t=0, got %+v ok=%v", batch, ok)
	}

	clock.advance(10 * time.Millisecond)
	q.Release(batch)

	// t=500ms: poll -> none (delay not elapsed)
	clock.set(500 * time.Millisecond)
	if _, ok := q.Poll(); ok {
		t.Fatalf("expected no batch at t=500ms")
	}

	// t=1001ms: poll -> [A]
	clock.set(1001 * time.Millisecond)
	batch, ok = q.Poll()
	if !ok || batch.Items()[0].NormalizedURL != "https://example.com/a" {
		t.Fatalf("expected batch=[A] at t=1001ms, got %+v ok=%v", batch, ok)
	}

	// t=1500ms: poll -> none (not released yet)
	clock.set(1500 * time.Millisecond)
	if _, ok := q.Poll(); ok {
		t.Fatalf("expected no batch at t=1500ms (previous batch not released)")
	}

	q.Release(batch)
	clock.set(2002 * time.Millisecond)
	batch, ok = q.Poll()
	if !ok || batch.Items()[0].NormalizedURL != "https://example.com/c" {
		t.Fatalf("expected batch=[C] at t=2002ms, got %+v ok=%v", batch, ok)
	}
}

// --- S2: bounded admission ---

func TestScenarioS2BoundedAdmission(t *testing.T) {
	policy := NewFetcherPolicy(0, 3, 1, 1, 0)
	q := NewDomainQueue("example.com", policy, nil, nil)

	scores := []float64{5, 1, 3, 7, 2, 4}
	for i, s := range scores {
		q.Offer(mustURL(t, urlFor(i), s))
	}

	if q.Len() != 3 {
		t.Fatalf("expected 3 items retained, got %d", q.Len())
	}

	var got []float64
	for {
		batch, ok := q.Poll()
		if !ok {
			break
		}
		for _, it := range batch.Items() {
			got = append(got, it.Score)
		}
		q.Release(batch)
	}

	want := []float64{7, 5, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func urlFor(i int) string {
	return "https://example.com/p" + string(rune('a'+i))
}

// --- S3: multi-threaded dispatch ---

func TestScenarioS3MultiThreadedDispatch(t *testing.T) {
	policy := NewFetcherPolicy(0, 10, 3, 1, 0)
	q := NewDomainQueue("example.com", policy, nil, nil)

	for i, s := range []float64{1, 2, 3, 4, 5} {
		q.Offer(mustURL(t, urlFor(i), s))
	}

	var batches []*FetchBatch
	for i := 0; i < 3; i++ {
		b, ok := q.Poll()
		if !ok {
			t.Fatalf("poll %d: expected a batch", i)
		}
		if b.Len() != 1 {
			t.Fatalf("poll %d: expected 1-item batch, got %d", i, b.Len())
		}
		batches = append(batches, b)
	}

	// Highest-first: 5, 4, 3
	wantScores := []float64{5, 4, 3}
	for i, b := range batches {
		if b.Items()[0].Score != wantScores[i] {
			t.Fatalf("poll %d: expected score %v, got %v", i, wantScores[i], b.Items()[0].Score)
		}
	}

	if _, ok := q.Poll(); ok {
		t.Fatalf("expected no batch: ThreadsPerHost exhausted")
	}

	q.Release(batches[0])
	b, ok := q.Poll()
	if !ok {
		t.Fatalf("expected a batch after one release")
	}
	if b.Items()[0].Score != 2 {
		t.Fatalf("expected next-highest score 2, got %v", b.Items()[0].Score)
	}
}

// --- S4: deadline abort ---

func TestScenarioS4DeadlineAbort(t *testing.T) {
	clock := newFakeClock(time.UnixMilli(0))
	deadline := clock.now().Add(100 * time.Millisecond).UnixMilli()
	policy := NewFetcherPolicy(0, 10, 1, 1, deadline)
	sink := &collectingSink{}
	q := NewDomainQueue("example.com", policy, sink, nil, WithClock(clock.now))

	q.Offer(mustURL(t, "https://example.com/a", 3))
	q.Offer(mustURL(t, "https://example.com/b", 5))
	q.Offer(mustURL(t, "https://example.com/c", 1))

	clock.set(150 * time.Millisecond)
	if _, ok := q.Poll(); ok {
		t.Fatalf("expected no batch after deadline expiry")
	}

	records := sink.snapshot()
	if len(records) != 3 {
		t.Fatalf("expected 3 aborted records, got %d", len(records))
	}
	wantOrder := []string{"https://example.com/b", "https://example.com/a", "https://example.com/c"}
	for i, rec := range records {
		if rec.Status != StatusAborted || rec.HTTPCode != HTTPCodeUnknown {
			t.Fatalf("record %d: wrong encoding: %+v", i, rec)
		}
		if rec.RequestedURL != rec.FinalURL || rec.RequestedURL != wantOrder[i] {
			t.Fatalf("record %d: expected url %s, got requested=%s final=%s", i, wantOrder[i], rec.RequestedURL, rec.FinalURL)
		}
		if rec.RequestEpochMs != 0 || rec.FetchEpochMs != 0 || len(rec.Body) != 0 {
			t.Fatalf("record %d: expected zeroed timing/content, got %+v", i, rec)
		}
	}

	if !q.IsEmpty() {
		t.Fatalf("expected queue empty after abort, no outstanding batches")
	}
}

// --- S5: eviction ---

func TestScenarioS5Eviction(t *testing.T) {
	policy := NewFetcherPolicy(0, 2, 1, 1, 0)
	q := NewDomainQueue("example.com", policy, nil, nil)

	q.Offer(mustURL(t, "u1", 5))
	q.Offer(mustURL(t, "u2", 1))
	q.Offer(mustURL(t, "u3", 3))
	// Full at {u1:5, u3:3}; u2 was evicted when u3 arrived.

	if ok := q.Offer(mustURL(t, "u4", 0)); ok {
		t.Fatalf("expected u4 (score 0) to be rejected")
	}
	if ok := q.Offer(mustURL(t, "u5", 9)); !ok {
		t.Fatalf("expected u5 (score 9) to be accepted")
	}

	batch, ok := q.Poll()
	if !ok {
		t.Fatalf("expected a batch")
	}
	if batch.Items()[0].NormalizedURL != "u5" {
		t.Fatalf("expected top item u5, got %s", batch.Items()[0].NormalizedURL)
	}
}

// --- S6: release discipline ---

func TestScenarioS6ReleaseDiscipline(t *testing.T) {
	policy := NewFetcherPolicy(0, 10, 1, 1, 0)
	q := NewDomainQueue("example.com", policy, nil, nil)
	q.Offer(mustURL(t, "u1", 1))

	batch, ok := q.Poll()
	if !ok {
		t.Fatalf("expected a batch")
	}
	if q.IsEmpty() {
		t.Fatalf("expected IsEmpty()==false: active fetcher outstanding")
	}

	q.Release(batch)
	if !q.IsEmpty() {
		t.Fatalf("expected IsEmpty()==true after release")
	}
}

// --- Boundary behaviors ---

func TestMaxURLsOneKeepsOnlyHighestScore(t *testing.T) {
	policy := NewFetcherPolicy(0, 1, 1, 1, 0)
	q := NewDomainQueue("example.com", policy, nil, nil)

	q.Offer(mustURL(t, "low", 1))
	q.Offer(mustURL(t, "high", 10))
	q.Offer(mustURL(t, "mid", 5))

	if q.Len() != 1 {
		t.Fatalf("expected exactly 1 item retained, got %d", q.Len())
	}
	batch, _ := q.Poll()
	if batch.Items()[0].NormalizedURL != "high" {
		t.Fatalf("expected 'high' retained, got %s", batch.Items()[0].NormalizedURL)
	}
}

func TestZeroDelaySingleThreadAllowsBackToBackPolls(t *testing.T) {
	clock := newFakeClock(time.UnixMilli(0))
	policy := NewFetcherPolicy(0, 10, 1, 1, 0)
	q := NewDomainQueue("example.com", policy, nil, nil, WithClock(clock.now))

	q.Offer(mustURL(t, "a", 1))
	q.Offer(mustURL(t, "b", 2))

	b1, ok := q.Poll()
	if !ok {
		t.Fatalf("expected first poll to succeed")
	}
	q.Release(b1)

	b2, ok := q.Poll()
	if !ok {
		t.Fatalf("expected back-to-back poll to succeed with zero crawl delay")
	}
	if b2.Items()[0].NormalizedURL != "a" {
		t.Fatalf("expected item 'a', got %s", b2.Items()[0].NormalizedURL)
	}
}

func TestPastDeadlineAbortsOnFirstPoll(t *testing.T) {
	clock := newFakeClock(time.UnixMilli(1_000_000))
	pastDeadline := clock.now().Add(-1 * time.Second).UnixMilli()
	policy := NewFetcherPolicy(0, 10, 1, 1, pastDeadline)
	sink := &collectingSink{}
	q := NewDomainQueue("example.com", policy, sink, nil, WithClock(clock.now))

	q.Offer(mustURL(t, "a", 1))
	if _, ok := q.Poll(); ok {
		t.Fatalf("expected no batch: deadline already past at creation")
	}
	if len(sink.snapshot()) != 1 {
		t.Fatalf("expected 1 aborted record")
	}
}

// --- Invariants ---

func TestAbortAllIsIdempotent(t *testing.T) {
	policy := NewFetcherPolicy(0, 10, 1, 1, 0)
	sink := &collectingSink{}
	q := NewDomainQueue("example.com", policy, sink, nil)
	q.Offer(mustURL(t, "a", 1))
	q.Offer(mustURL(t, "b", 2))

	q.AbortAll()
	if len(sink.snapshot()) != 2 {
		t.Fatalf("expected 2 aborted records after first AbortAll")
	}

	q.AbortAll() // second call: no-op
	if len(sink.snapshot()) != 2 {
		t.Fatalf("expected no additional records after second AbortAll, got %d", len(sink.snapshot()))
	}
}

func TestOfferNeverExceedsMaxURLs(t *testing.T) {
	policy := NewFetcherPolicy(0, 5, 1, 1, 0)
	q := NewDomainQueue("example.com", policy, nil, nil)

	for i := 0; i < 100; i++ {
		q.Offer(mustURL(t, urlFor(i%26), float64(i)))
		if q.Len() > 5 {
			t.Fatalf("queue exceeded MaxURLs after %d offers: len=%d", i, q.Len())
		}
	}
}

func TestActiveFetchersNeverExceedsThreadsPerHost(t *testing.T) {
	policy := NewFetcherPolicy(0, 10, 2, 1, 0)
	q := NewDomainQueue("example.com", policy, nil, nil)
	for i, s := range []float64{1, 2, 3, 4} {
		q.Offer(mustURL(t, urlFor(i), s))
	}

	for i := 0; i < 3; i++ {
		q.Poll()
		if q.ActiveFetchers() > policy.ThreadsPerHost() {
			t.Fatalf("active fetchers %d exceeded ThreadsPerHost %d", q.ActiveFetchers(), policy.ThreadsPerHost())
		}
	}
}

func TestReleaseOfForeignBatchPanics(t *testing.T) {
	policy := NewFetcherPolicy(0, 10, 1, 1, 0)
	q1 := NewDomainQueue("a.com", policy, nil, nil)
	q2 := NewDomainQueue("b.com", policy, nil, nil)
	q1.Offer(mustURL(t, "u", 1))
	batch, _ := q1.Poll()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic releasing a foreign batch")
		}
	}()
	q2.Release(batch)
}

func TestDoubleReleasePanics(t *testing.T) {
	policy := NewFetcherPolicy(0, 10, 1, 1, 0)
	q := NewDomainQueue("example.com", policy, nil, nil)
	q.Offer(mustURL(t, "u", 1))
	batch, _ := q.Poll()
	q.Release(batch)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double release")
		}
	}()
	q.Release(batch)
}

func TestIsEmptyMonotoneAfterLastOffer(t *testing.T) {
	policy := NewFetcherPolicy(0, 10, 1, 1, 0)
	q := NewDomainQueue("example.com", policy, nil, nil)
	q.Offer(mustURL(t, "u", 1))

	batch, ok := q.Poll()
	if !ok {
		t.Fatalf("expected a batch")
	}
	q.Release(batch)

	if !q.IsEmpty() {
		t.Fatalf("expected empty after release with no more offers")
	}
	// Further poll/release-less calls must not flip it back.
	q.Poll()
	q.Poll()
	if !q.IsEmpty() {
		t.Fatalf("expected IsEmpty() to remain true without new offers")
	}
}

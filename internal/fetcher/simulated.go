package fetcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/polite"
)

// SimulatedFetcher is a deterministic polite.Fetcher double for tests and
// demos that don't want real network I/O: it "fetches" instantly, returning
// a synthetic 200 response whose body echoes the requested URL.
type SimulatedFetcher struct {
	policy    polite.FetcherPolicy
	latency   time.Duration
	callCount atomic.Int64
}

// NewSimulatedFetcher builds a SimulatedFetcher that reports every fetch as
// having taken latency (0 is fine — only affects the BytesPerSecond field).
func NewSimulatedFetcher(policy polite.FetcherPolicy, latency time.Duration) *SimulatedFetcher {
	return &SimulatedFetcher{policy: policy, latency: latency}
}

func (f *SimulatedFetcher) MaxThreads() uint32           { return f.policy.ThreadsPerHost() }
func (f *SimulatedFetcher) Policy() polite.FetcherPolicy { return f.policy }

// Calls returns how many times Fetch has been invoked so far.
func (f *SimulatedFetcher) Calls() int64 { return f.callCount.Load() }

func (f *SimulatedFetcher) Fetch(ctx context.Context, u polite.ScoredURL) (polite.FetchedDatum, error) {
	f.callCount.Add(1)
	now := time.Now().UnixMilli()
	body := []byte(fmt.Sprintf("<html><body>%s</body></html>", u.NormalizedURL))

	bytesPerSecond := 0.0
	if f.latency > 0 {
		bytesPerSecond = float64(len(body)) / f.latency.Seconds()
	}

	return polite.FetchedDatum{
		Status:         polite.StatusFetched,
		HTTPCode:       200,
		RequestedURL:   u.NormalizedURL,
		FinalURL:       u.NormalizedURL,
		RequestEpochMs: now,
		FetchEpochMs:   now,
		ContentType:    "text/html",
		Body:           body,
		BytesPerSecond: bytesPerSecond,
		Metadata:       u.Metadata,
	}, nil
}

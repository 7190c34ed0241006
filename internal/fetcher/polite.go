package fetcher

import (
	"context"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/polite"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// PoliteAdapter wraps an existing Fetcher (HTTPFetcher, BrowserFetcher, ...)
// so it satisfies polite.Fetcher, translating between the scheduler's
// ScoredURL/FetchedDatum wire shape and the donor Fetcher's
// *types.Request/*types.Response shape.
type PoliteAdapter struct {
	inner      Fetcher
	maxThreads uint32
	policy     polite.FetcherPolicy
}

// NewPoliteAdapter adapts inner to run under policy, reporting
// policy.ThreadsPerHost() as MaxThreads. The adapter itself does not limit
// concurrent fetches; per-origin concurrency is bounded by DomainQueue.Poll.
func NewPoliteAdapter(inner Fetcher, policy polite.FetcherPolicy) *PoliteAdapter {
	return &PoliteAdapter{
		inner:      inner,
		maxThreads: policy.ThreadsPerHost(),
		policy:     policy,
	}
}

func (a *PoliteAdapter) MaxThreads() uint32          { return a.maxThreads }
func (a *PoliteAdapter) Policy() polite.FetcherPolicy { return a.policy }

// Fetch performs the request and maps the result onto polite's record
// shape. Fetch errors are carried as an ERROR record rather than returned,
// except for URL-construction failures which can never succeed on retry.
func (a *PoliteAdapter) Fetch(ctx context.Context, u polite.ScoredURL) (polite.FetchedDatum, error) {
	req, err := types.NewRequest(u.NormalizedURL)
	if err != nil {
		return polite.FetchedDatum{}, err
	}

	requestEpochMs := time.Now().UnixMilli()
	resp, err := a.inner.Fetch(ctx, req)
	fetchEpochMs := time.Now().UnixMilli()

	if err != nil {
		return polite.FetchedDatum{
			Status:         polite.StatusError,
			HTTPCode:       polite.HTTPCodeUnknown,
			RequestedURL:   u.NormalizedURL,
			FinalURL:       u.NormalizedURL,
			RequestEpochMs: requestEpochMs,
			FetchEpochMs:   fetchEpochMs,
			Metadata:       u.Metadata,
		}, nil
	}

	elapsedSeconds := resp.FetchDuration.Seconds()
	bytesPerSecond := 0.0
	if elapsedSeconds > 0 {
		bytesPerSecond = float64(len(resp.Body)) / elapsedSeconds
	}

	return polite.FetchedDatum{
		Status:         polite.StatusFetched,
		HTTPCode:       resp.StatusCode,
		RequestedURL:   u.NormalizedURL,
		FinalURL:       resp.FinalURL,
		RequestEpochMs: requestEpochMs,
		FetchEpochMs:   fetchEpochMs,
		Headers:        resp.Headers,
		Body:           resp.Body,
		ContentType:    resp.ContentType,
		BytesPerSecond: bytesPerSecond,
		Metadata:       u.Metadata,
	}, nil
}

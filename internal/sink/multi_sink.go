package sink

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/polite"
)

// MultiSink fans an Append out to several backends, following
// internal/storage/database.go's MultiStorage: every backend is written
// to regardless of earlier failures, and the first error encountered is
// returned to the caller (matching AbortAll's "logged and skipped, drain
// continues" contract one level up).
type MultiSink struct {
	backends []polite.OutputSink
	logger   *slog.Logger
}

// NewMultiSink fans writes out to backends in order.
func NewMultiSink(logger *slog.Logger, backends ...polite.OutputSink) *MultiSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiSink{backends: backends, logger: logger.With("component", "multi_sink")}
}

func (s *MultiSink) Append(ctx context.Context, rec polite.AbortedRecord) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Append(ctx, rec); err != nil {
			s.logger.Error("backend append failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

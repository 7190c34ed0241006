package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/polite"
)

// jsonRecord is the on-disk shape of an AbortedRecord, with snake_case
// field names. Headers, Body and BytesPerSecond are not written.
type jsonRecord struct {
	Status         string            `json:"status"`
	HTTPCode       int               `json:"http_code"`
	RequestedURL   string            `json:"requested_url"`
	FinalURL       string            `json:"final_url"`
	RequestEpochMs int64             `json:"request_epoch_ms"`
	FetchEpochMs   int64             `json:"fetch_epoch_ms"`
	ContentType    string            `json:"content_type,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// JSONSink appends records to an in-memory buffer and flushes the whole
// buffer to a JSON array file on Close, following
// internal/storage/file.go's JSONStorage pattern: os.MkdirAll the output
// directory up front, buffer under a mutex, encode with
// encoding/json.Encoder on flush.
type JSONSink struct {
	path   string
	mu     sync.Mutex
	recs   []jsonRecord
	logger *slog.Logger
}

// NewJSONSink creates a JSONSink writing to outputPath on Close.
func NewJSONSink(outputPath string, logger *slog.Logger) (*JSONSink, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONSink{
		path:   outputPath,
		logger: logger.With("component", "json_sink"),
	}, nil
}

func (s *JSONSink) Append(_ context.Context, rec polite.AbortedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, jsonRecord{
		Status:         string(rec.Status),
		HTTPCode:       rec.HTTPCode,
		RequestedURL:   rec.RequestedURL,
		FinalURL:       rec.FinalURL,
		RequestEpochMs: rec.RequestEpochMs,
		FetchEpochMs:   rec.FetchEpochMs,
		ContentType:    rec.ContentType,
		Metadata:       rec.Metadata,
	})
	return nil
}

// Close flushes the buffered records to disk as a JSON array, matching
// JSONStorage.Close's create-and-encode shape.
func (s *JSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.recs); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}

	s.logger.Info("aborted records flushed", "count", len(s.recs), "path", s.path)
	return nil
}

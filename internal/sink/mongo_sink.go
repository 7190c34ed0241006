package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/polite"
)

// MongoSink writes aborted records to a MongoDB collection, following
// internal/storage/database.go's MongoStorage: mongo.Connect +
// options.Client().ApplyURI at construction, Ping to fail fast, and a
// per-call context.WithTimeout around the write.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoSink connects to uri and targets database.collection for
// aborted-record writes.
func NewMongoSink(uri, database, collection string, logger *slog.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &MongoSink{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_sink"),
	}, nil
}

func (s *MongoSink) Append(ctx context.Context, rec polite.AbortedRecord) error {
	doc := map[string]any{
		"status":           string(rec.Status),
		"http_code":        rec.HTTPCode,
		"requested_url":    rec.RequestedURL,
		"final_url":        rec.FinalURL,
		"request_epoch_ms": rec.RequestEpochMs,
		"fetch_epoch_ms":   rec.FetchEpochMs,
		"metadata":         rec.Metadata,
	}

	writeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.collection.InsertOne(writeCtx, doc); err != nil {
		return fmt.Errorf("mongodb insert: %w", err)
	}

	s.mu.Lock()
	s.count++
	s.mu.Unlock()

	return nil
}

// Close disconnects the underlying Mongo client.
func (s *MongoSink) Close() error {
	s.logger.Info("mongo sink closing", "total_records", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

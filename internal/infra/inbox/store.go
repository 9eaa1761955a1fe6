package inbox

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staysettle/internal/app/policies"
)

// Store records processed inbound event ids per consumer.
type Store struct {
	col      *mongo.Collection
	consumer string
}

func NewStore(db *mongo.Database, consumer string) *Store {
	col := db.Collection("app_inbox")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}}, Options: options.Index().SetUnique(true)})
	return &Store{col: col, consumer: consumer}
}

func (s *Store) Contains(ctx context.Context, eventID string) (bool, error) {
	err := s.col.FindOne(ctx, bson.M{"event_id": eventID, "consumer": s.consumer}).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

// Record is idempotent; a concurrent duplicate insert counts as success.
func (s *Store) Record(ctx context.Context, eventID string) error {
	doc := bson.M{"event_id": eventID, "consumer": s.consumer, "received_at": time.Now().UTC()}
	_, err := s.col.InsertOne(ctx, doc)
	if err == nil || mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

var _ policies.Inbox = (*Store)(nil)

package outbox

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "staybook/internal/app/outbox"
)

const (
	statusPending = "pending"
	statusSending = "sending"
	statusSent    = "sent"
)

// Sending claims older than this are considered abandoned by a dead worker
// and become claimable again.
const claimTimeout = 30 * time.Second

// EventDocument is the persisted form of one staged event.
type EventDocument struct {
	ID         string            `bson:"_id"`
	Name       string            `bson:"name"`
	Aggregate  string            `bson:"aggregate"`
	Payload    []byte            `bson:"payload"`
	Headers    map[string]string `bson:"headers,omitempty"`
	OccurredAt time.Time         `bson:"occurred_at"`
	Status     string            `bson:"status"`
	Attempts   int               `bson:"attempts"`
	NextRetry  time.Time         `bson:"next_retry"`
	ClaimedBy  string            `bson:"claimed_by,omitempty"`
	ClaimedAt  time.Time         `bson:"claimed_at,omitempty"`
	LastError  string            `bson:"last_error,omitempty"`
}

// Store persists staged events in Mongo. Add runs inside the command's
// transaction so the event and the state change commit together; the worker
// claims and publishes afterwards.
type Store struct {
	col *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{col: db.Collection("outbox_events")}
}

func (s *Store) Add(ctx context.Context, record appoutbox.EventRecord) error {
	doc := EventDocument{
		ID:         record.ID,
		Name:       record.Name,
		Aggregate:  record.Aggregate,
		Payload:    record.Payload,
		Headers:    record.Headers,
		OccurredAt: record.OccurredAt,
		Status:     statusPending,
		NextRetry:  time.Now(),
	}
	_, err := s.col.InsertOne(ctx, doc)
	return err
}

// Flush is a no-op: documents are already durable once Add's transaction
// commits, and delivery belongs to the worker.
func (s *Store) Flush(ctx context.Context) error {
	return nil
}

// Claim atomically marks the oldest ready event as sending and returns it.
// A nil document without error means the queue is drained.
func (s *Store) Claim(ctx context.Context, workerID string) (*EventDocument, error) {
	now := time.Now()
	filter := bson.M{
		"$or": []bson.M{
			{"status": statusPending, "next_retry": bson.M{"$lte": now}},
			{"status": statusSending, "claimed_at": bson.M{"$lte": now.Add(-claimTimeout)}},
		},
	}
	update := bson.M{
		"$set": bson.M{"status": statusSending, "claimed_by": workerID, "claimed_at": now},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "occurred_at", Value: 1}}).
		SetReturnDocument(options.After)

	var doc EventDocument
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	// Attempts was incremented on claim; the worker wants the count of
	// completed attempts when computing backoff.
	doc.Attempts--
	return &doc, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"status": statusSent},
		"$unset": bson.M{"claimed_by": "", "claimed_at": ""},
	})
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id string, nextRetry time.Time, reason string) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"status": statusPending, "next_retry": nextRetry, "last_error": reason},
		"$unset": bson.M{"claimed_by": "", "claimed_at": ""},
	})
	return err
}

var _ appoutbox.Outbox = (*Store)(nil)

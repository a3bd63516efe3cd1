package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	domainpayments "staybook/internal/domain/payments"
)

// WebhookEventLog is the processed-event collection keyed by gateway event
// id. Claim's insert inside the reconciliation transaction is the dedup
// barrier for redelivered webhooks.
type WebhookEventLog struct {
	col *mongo.Collection
}

func NewWebhookEventLog(db *mongo.Database) *WebhookEventLog {
	return &WebhookEventLog{col: db.Collection("webhook_events")}
}

func (l *WebhookEventLog) Claim(ctx context.Context, rec domainpayments.ProcessedRecord) error {
	doc := processedDocument{
		ID:          rec.EventID,
		Type:        rec.Type,
		IntentRef:   rec.IntentRef,
		Outcome:     rec.Outcome,
		ProcessedAt: rec.ProcessedAt.UnixMilli(),
	}
	if _, err := l.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainpayments.ErrEventAlreadyProcessed
		}
		return err
	}
	return nil
}

func (l *WebhookEventLog) Seen(ctx context.Context, eventID string) (bool, error) {
	count, err := l.col.CountDocuments(ctx, bson.M{"_id": eventID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type processedDocument struct {
	ID          string `bson:"_id"`
	Type        string `bson:"type"`
	IntentRef   string `bson:"intent_ref"`
	Outcome     string `bson:"outcome"`
	ProcessedAt int64  `bson:"processed_at"`
}

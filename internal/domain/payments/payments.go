package payments

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEventAlreadyProcessed = errors.New("payments: event already processed")
	ErrIntentCreateFailed    = errors.New("payments: intent creation failed")
)

// Intent is the gateway-side object collecting payment for one booking.
type Intent struct {
	Ref          string
	ClientSecret string
}

// Gateway event types the reconciler understands. Anything else is
// acknowledged and dropped.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
)

// Event is one at-least-once-delivered gateway notification.
type Event struct {
	ID         string
	Type       string
	IntentRef  string
	ReceivedAt time.Time
}

// ProcessedRecord is an entry in the append-only processed-event log.
type ProcessedRecord struct {
	EventID     string
	Type        string
	IntentRef   string
	Outcome     string
	ProcessedAt time.Time
}

// EventLog deduplicates at-least-once external deliveries, webhook events
// and review-stream messages alike. Claim must be atomic with the side
// effects sharing its transaction so two concurrent deliveries of one event
// id can never both apply them.
type EventLog interface {
	// Claim inserts the record keyed by event id, failing with
	// ErrEventAlreadyProcessed when the id was seen before.
	Claim(ctx context.Context, rec ProcessedRecord) error
	Seen(ctx context.Context, eventID string) (bool, error)
}

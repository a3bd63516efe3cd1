package policies

import (
	"context"

	"staybook/internal/domain/payments"
	"staybook/internal/domain/shared/money"
)

// PaymentsPort is the narrow gateway surface the core uses. OpenIntent is
// called with the booking id as idempotency key so retried creations cannot
// open two intents for one booking.
type PaymentsPort interface {
	OpenIntent(ctx context.Context, bookingID string, amount money.Money) (payments.Intent, error)
}

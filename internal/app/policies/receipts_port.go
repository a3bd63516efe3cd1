package policies

import (
	"context"
	"time"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/money"
)

// Receipt is the archival snapshot written when a booking is confirmed.
type Receipt struct {
	BookingID   booking.BookingID `json:"booking_id"`
	GuestID     string            `json:"guest_id"`
	Total       money.Money       `json:"total"`
	ConfirmedAt time.Time         `json:"confirmed_at"`
}

// ReceiptArchive stores confirmation receipts in object storage. Archival is
// best effort; a failed upload never rolls back the confirmation.
type ReceiptArchive interface {
	Store(ctx context.Context, receipt Receipt) (string, error)
}

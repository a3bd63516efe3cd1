package booking

import (
	"context"
	"errors"
	"time"

	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
)

var (
	ErrInvalidGuests          = errors.New("booking: guests count must be positive")
	ErrInvalidState           = errors.New("booking: invalid state transition")
	ErrReconciliationAnomaly  = errors.New("booking: transition conflicts with terminal state")
	ErrIntentAlreadyAttached  = errors.New("booking: payment intent reference is immutable once set")
	ErrBookingNotFound        = errors.New("booking: not found")
	ErrDateConflict           = errors.New("booking: dates overlap an active booking")
	ErrNotOwner               = errors.New("booking: principal does not own this booking")
	ErrCancelOnlyWhilePending = errors.New("booking: guest cancellation is only allowed while pending")
)

type BookingID string

type BookingState string

const (
	StatePending   BookingState = "PENDING"
	StateConfirmed BookingState = "CONFIRMED"
	StateCancelled BookingState = "CANCELLED"
)

// Terminal reports whether the state can never be left again.
func (s BookingState) Terminal() bool {
	return s == StateConfirmed || s == StateCancelled
}

// Blocking reports whether a booking in this state occupies its date range.
// Cancelled bookings never block availability.
func (s BookingState) Blocking() bool {
	return s == StatePending || s == StateConfirmed
}

// Booking is the reservation aggregate. PaymentIntentRef stays empty until an
// intent is opened with the gateway, which keeps a pending booking whose
// intent creation failed distinguishable from one awaiting payment.
type Booking struct {
	ID               BookingID
	PropertyID       property.PropertyID
	HostID           property.HostID
	GuestID          string
	Range            daterange.DateRange
	Guests           int
	Price            pricing.PriceBreakdown
	State            BookingState
	PaymentIntentRef string
	CouponCode       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	// ByPaymentRef resolves a booking from the gateway's intent reference.
	ByPaymentRef(ctx context.Context, ref string) (*Booking, error)
	// InsertNew persists a fresh pending booking and enforces the
	// availability invariant: it fails with ErrDateConflict when a blocking
	// booking already holds an overlapping range on the same property.
	InsertNew(ctx context.Context, booking *Booking) error
	// Save applies an update guarded by optimistic versioning.
	Save(ctx context.Context, booking *Booking) error
	// AnyOverlapping reports whether a blocking booking overlaps the range.
	AnyOverlapping(ctx context.Context, propertyID property.PropertyID, dr daterange.DateRange) (bool, error)
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
}

type CreateParams struct {
	ID         BookingID
	PropertyID property.PropertyID
	HostID     property.HostID
	GuestID    string
	Range      daterange.DateRange
	Guests     int
	Price      pricing.PriceBreakdown
	CouponCode string
	CreatedAt  time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	if params.GuestID == "" {
		return nil, errors.New("booking: guest id required")
	}
	if err := params.Price.RecalculateTotal(); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:         params.ID,
		PropertyID: params.PropertyID,
		HostID:     params.HostID,
		GuestID:    params.GuestID,
		Range:      params.Range,
		Guests:     params.Guests,
		Price:      params.Price,
		CouponCode: params.CouponCode,
		State:      StatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.Record(BookingCreated{BookingID: b.ID, PropertyID: b.PropertyID, GuestID: b.GuestID, Range: b.Range, Total: b.Price.Total, At: now})
	return b, nil
}

// AttachPaymentIntent records the gateway reference exactly once.
func (b *Booking) AttachPaymentIntent(ref string, now time.Time) error {
	if ref == "" {
		return errors.New("booking: payment intent reference required")
	}
	if b.PaymentIntentRef != "" {
		return ErrIntentAlreadyAttached
	}
	b.PaymentIntentRef = ref
	b.UpdatedAt = now.UTC()
	return nil
}

// Confirm moves a pending booking to its successful terminal state. A repeat
// confirmation is an idempotent no-op; confirming a cancelled booking is a
// reconciliation anomaly that must reach an operator. The returned bool is
// true only when the call actually transitioned the booking, which is what
// gates the once-per-lifecycle side effects.
func (b *Booking) Confirm(now time.Time) (bool, error) {
	switch b.State {
	case StateConfirmed:
		return false, nil
	case StateCancelled:
		return false, ErrReconciliationAnomaly
	case StatePending:
	default:
		return false, ErrInvalidState
	}
	b.State = StateConfirmed
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{BookingID: b.ID, PropertyID: b.PropertyID, HostID: b.HostID, Total: b.Price.Total, At: b.UpdatedAt})
	return true, nil
}

// Cancel moves a pending booking to its failure terminal state. Repeat
// cancellation is a no-op; cancelling a confirmed booking is an anomaly.
func (b *Booking) Cancel(reason string, now time.Time) (bool, error) {
	switch b.State {
	case StateCancelled:
		return false, nil
	case StateConfirmed:
		return false, ErrReconciliationAnomaly
	case StatePending:
	default:
		return false, ErrInvalidState
	}
	b.State = StateCancelled
	b.UpdatedAt = now.UTC()
	b.Record(BookingCancelled{BookingID: b.ID, PropertyID: b.PropertyID, Reason: reason, At: b.UpdatedAt})
	return true, nil
}

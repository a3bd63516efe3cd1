package payout

import (
	"context"
	"errors"
	"time"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
)

var (
	ErrAlreadyDerived = errors.New("payout: payout already exists for booking")
	ErrPayoutNotFound = errors.New("payout: not found")
	ErrInvalidRates   = errors.New("payout: rates must be within [0, 10000] basis points")
)

type PayoutID string

type PayoutStatus string

const (
	StatusPending PayoutStatus = "PENDING"
	StatusPaid    PayoutStatus = "PAID"
)

// Payout is what the platform owes a host for one confirmed booking, net of
// commission and tax withholding. Derived once on confirmation and never
// recomputed, even if the booking total is later adjusted.
type Payout struct {
	ID        PayoutID
	HostID    property.HostID
	BookingID booking.BookingID
	Gross     money.Money
	Withheld  money.Money
	Net       money.Money
	Status    PayoutStatus
	CreatedAt time.Time
}

type Repository interface {
	// Insert persists a payout; ErrAlreadyDerived when one exists for the
	// booking. The uniqueness backstop keeps redelivered confirmations from
	// paying a host twice.
	Insert(ctx context.Context, p *Payout) error
	ByBooking(ctx context.Context, id booking.BookingID) (*Payout, error)
}

// Rates carries the fixed platform economics in basis points.
type Rates struct {
	CommissionBps     int64
	TaxWithholdingBps int64
}

func (r Rates) validate() error {
	if r.CommissionBps < 0 || r.CommissionBps > 10000 {
		return ErrInvalidRates
	}
	if r.TaxWithholdingBps < 0 || r.TaxWithholdingBps > 10000 {
		return ErrInvalidRates
	}
	return nil
}

// Derive computes the payout for a confirmed booking:
// gross = total * hostShare, withheld = gross * taxRate, net = gross - withheld.
func Derive(id PayoutID, b *booking.Booking, rates Rates, now time.Time) (*Payout, error) {
	if err := rates.validate(); err != nil {
		return nil, err
	}
	gross := b.Price.Total.Bps(10000 - rates.CommissionBps)
	withheld := gross.Bps(rates.TaxWithholdingBps)
	net, err := gross.Sub(withheld)
	if err != nil {
		return nil, err
	}
	return &Payout{
		ID:        id,
		HostID:    b.HostID,
		BookingID: b.ID,
		Gross:     gross,
		Withheld:  withheld,
		Net:       net,
		Status:    StatusPending,
		CreatedAt: now.UTC(),
	}, nil
}

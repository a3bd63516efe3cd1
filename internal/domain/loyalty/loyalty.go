package loyalty

import (
	"context"
	"errors"
	"time"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/money"
)

var (
	ErrInsufficientBalance = errors.New("loyalty: balance too low to redeem")
	ErrInvalidPoints       = errors.New("loyalty: points must be positive")
)

type Reason string

const (
	ReasonBookingConfirmed Reason = "BOOKING_CONFIRMED"
	ReasonReviewSubmitted  Reason = "REVIEW_SUBMITTED"
	ReasonRedemption       Reason = "POINTS_REDEEMED"
)

type TransactionID string

// Transaction is one append-only ledger entry. A user's balance is always the
// running sum over entries; no counter is mutated separately, so concurrent
// accruals and redemptions cannot drift.
type Transaction struct {
	ID        TransactionID
	UserID    string
	Earned    int64
	Redeemed  int64
	BookingID booking.BookingID
	ReviewID  string
	Reason    Reason
	At        time.Time
}

type Repository interface {
	Append(ctx context.Context, tx *Transaction) error
	// BalanceOf sums earned minus redeemed over the user's ledger.
	BalanceOf(ctx context.Context, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]*Transaction, error)
}

// BookingPoints converts a confirmed booking total into points: one point per
// 100 currency units, truncated.
func BookingPoints(total money.Money) int64 {
	if total.Amount <= 0 {
		return 0
	}
	return total.Amount / 100
}

// ReviewPoints rewards a submitted review with rating * 2 points.
func ReviewPoints(rating int) int64 {
	if rating < 1 {
		return 0
	}
	return int64(rating) * 2
}

// AccrueForBooking builds the ledger entry for a confirmed booking.
func AccrueForBooking(id TransactionID, b *booking.Booking, now time.Time) *Transaction {
	return &Transaction{
		ID:        id,
		UserID:    b.GuestID,
		Earned:    BookingPoints(b.Price.Total),
		BookingID: b.ID,
		Reason:    ReasonBookingConfirmed,
		At:        now.UTC(),
	}
}

// AccrueForReview builds the ledger entry for a submitted review.
func AccrueForReview(id TransactionID, userID, reviewID string, rating int, now time.Time) *Transaction {
	return &Transaction{
		ID:       id,
		UserID:   userID,
		Earned:   ReviewPoints(rating),
		ReviewID: reviewID,
		Reason:   ReasonReviewSubmitted,
		At:       now.UTC(),
	}
}

// Redeem builds a redemption entry after the balance check. Caller must hold
// the transaction boundary covering the balance read and the append.
func Redeem(id TransactionID, userID string, points, balance int64, now time.Time) (*Transaction, error) {
	if points <= 0 {
		return nil, ErrInvalidPoints
	}
	if points > balance {
		return nil, ErrInsufficientBalance
	}
	return &Transaction{
		ID:       id,
		UserID:   userID,
		Redeemed: points,
		Reason:   ReasonRedemption,
		At:       now.UTC(),
	}, nil
}

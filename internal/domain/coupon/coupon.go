package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/domain/shared/money"
)

var ErrCouponNotFound = errors.New("coupon: not found")

// Rejection codes, one per eligibility failure so callers can react to each
// deliberately instead of matching on message text.
const (
	CodeInactive        = "COUPON_INACTIVE"
	CodeExhausted       = "COUPON_EXHAUSTED"
	CodeAlreadyRedeemed = "COUPON_ALREADY_REDEEMED"
	CodeBelowMinimum    = "COUPON_MIN_VALUE"
)

// RejectionError is a machine-readable coupon eligibility failure.
type RejectionError struct {
	Code   string
	Reason string
}

func (e *RejectionError) Error() string {
	return "coupon: " + e.Reason
}

var (
	ErrInactive        = &RejectionError{Code: CodeInactive, Reason: "coupon is inactive or outside its validity window"}
	ErrExhausted       = &RejectionError{Code: CodeExhausted, Reason: "coupon usage cap reached"}
	ErrAlreadyRedeemed = &RejectionError{Code: CodeAlreadyRedeemed, Reason: "coupon already redeemed by this user"}
	ErrBelowMinimum    = &RejectionError{Code: CodeBelowMinimum, Reason: "booking value below coupon minimum"}
)

type CouponID string

type DiscountKind string

const (
	KindPercentage DiscountKind = "PERCENTAGE"
	KindFixed      DiscountKind = "FIXED"
)

// Coupon holds the admin-managed discount definition plus the usage counter
// the redemption guard mutates.
type Coupon struct {
	ID         CouponID
	Code       string
	Kind       DiscountKind
	Value      int64
	ValidFrom  time.Time
	ValidTo    time.Time
	MaxUses    int64
	Uses       int64
	MinBooking money.Money
	Active     bool
}

// Redemption links a coupon, a user and the discount actually applied.
// Immutable after creation; at most one exists per (coupon, user).
type Redemption struct {
	CouponID CouponID
	UserID   string
	Amount   money.Money
	At       time.Time
}

type Repository interface {
	ByCode(ctx context.Context, code string) (*Coupon, error)
	HasRedemption(ctx context.Context, id CouponID, userID string) (bool, error)
	// Redeem atomically increments the usage counter and inserts the
	// redemption record. It fails with ErrExhausted when no slot remains and
	// with ErrAlreadyRedeemed when the (coupon, user) pair exists; the two
	// writes never commit separately.
	Redeem(ctx context.Context, id CouponID, redemption Redemption) error
}

// NormalizeCode folds coupon codes for case-insensitive matching.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// WithinWindow reports whether the coupon is active at the given instant.
func (c *Coupon) WithinWindow(now time.Time) bool {
	if !c.Active {
		return false
	}
	if !c.ValidFrom.IsZero() && now.Before(c.ValidFrom) {
		return false
	}
	if !c.ValidTo.IsZero() && now.After(c.ValidTo) {
		return false
	}
	return true
}

// Exhausted reports whether the global usage cap has been reached.
func (c *Coupon) Exhausted() bool {
	return c.MaxUses > 0 && c.Uses >= c.MaxUses
}

// Discount computes the discount for a subtotal, capped at the subtotal so a
// fixed coupon larger than the booking yields a zero total rather than a
// negative one.
func (c *Coupon) Discount(subtotal money.Money) money.Money {
	var amount int64
	switch c.Kind {
	case KindPercentage:
		amount = subtotal.Amount * c.Value / 100
	case KindFixed:
		amount = c.Value
	}
	if amount < 0 {
		amount = 0
	}
	if amount > subtotal.Amount {
		amount = subtotal.Amount
	}
	return money.Money{Amount: amount, Currency: subtotal.Currency}
}

// Eligibility runs the non-transactional checks in their fixed order:
// window, cap, prior redemption, minimum value. The first failure wins so
// rejection messages stay deterministic; the transactional Redeem re-checks
// cap and uniqueness as the atomic backstop.
func (c *Coupon) Eligibility(now time.Time, alreadyRedeemed bool, subtotal money.Money) error {
	if !c.WithinWindow(now) {
		return ErrInactive
	}
	if c.Exhausted() {
		return ErrExhausted
	}
	if alreadyRedeemed {
		return ErrAlreadyRedeemed
	}
	if c.MinBooking.Amount > 0 && subtotal.Amount < c.MinBooking.Amount {
		return ErrBelowMinimum
	}
	return nil
}

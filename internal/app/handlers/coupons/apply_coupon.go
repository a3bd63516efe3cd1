package coupons

import (
	"context"
	"errors"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domaincoupon "staybook/internal/domain/coupon"
)

const applyCouponKey = "coupon.apply"

var (
	ErrBookingNotPending    = errors.New("coupon: booking is no longer pending")
	ErrCouponAlreadyApplied = errors.New("coupon: booking already carries a coupon")
)

type ApplyCouponCommand struct {
	Code      string
	BookingID string
	GuestID   string
}

func (c ApplyCouponCommand) Key() string { return applyCouponKey }

type ApplyCouponResult struct {
	Code     string `json:"code"`
	Discount int64  `json:"discount"`
	Currency string `json:"currency"`
	Total    int64  `json:"total"`
}

// ApplyCouponHandler redeems a coupon against an existing pending booking.
// The usage-counter increment and the redemption insert are one atomic
// repository operation; a coupon near its cap cannot be oversubscribed by
// concurrent redemptions.
type ApplyCouponHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ApplyCouponHandler) Handle(ctx context.Context, cmd ApplyCouponCommand) (*ApplyCouponResult, error) {
	unit, execCtx, commit, cleanup, err := support.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	b, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	if b.GuestID != cmd.GuestID {
		return nil, domainbooking.ErrNotOwner
	}
	if b.State != domainbooking.StatePending {
		return nil, ErrBookingNotPending
	}
	// One coupon per booking. Replacing an earlier discount would leave the
	// first coupon's usage slot and redemption row describing a discount no
	// longer applied.
	if b.CouponCode != "" {
		return nil, ErrCouponAlreadyApplied
	}

	code := domaincoupon.NormalizeCode(cmd.Code)
	cp, err := unit.Coupons().ByCode(execCtx, code)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	redeemed, err := unit.Coupons().HasRedemption(execCtx, cp.ID, cmd.GuestID)
	if err != nil {
		return nil, err
	}
	subtotal := b.Price.Subtotal()
	if err := cp.Eligibility(now, redeemed, subtotal); err != nil {
		return nil, err
	}

	discount := cp.Discount(subtotal)
	if err := unit.Coupons().Redeem(execCtx, cp.ID, domaincoupon.Redemption{
		CouponID: cp.ID,
		UserID:   cmd.GuestID,
		Amount:   discount,
		At:       now,
	}); err != nil {
		return nil, err
	}

	if err := b.Price.ApplyDiscount(discount); err != nil {
		return nil, err
	}
	b.CouponCode = code
	b.UpdatedAt = now
	if err := unit.Bookings().Save(execCtx, b); err != nil {
		return nil, err
	}

	if commit != nil {
		if err := commit(execCtx); err != nil {
			return nil, err
		}
	}
	return &ApplyCouponResult{
		Code:     code,
		Discount: discount.Amount,
		Currency: discount.Currency,
		Total:    b.Price.Total.Amount,
	}, nil
}

var _ commands.Handler[ApplyCouponCommand, *ApplyCouponResult] = (*ApplyCouponHandler)(nil)

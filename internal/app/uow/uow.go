package uow

import (
	"context"

	domainbooking "staybook/internal/domain/booking"
	domaincoupon "staybook/internal/domain/coupon"
	domainloyalty "staybook/internal/domain/loyalty"
	domainpayments "staybook/internal/domain/payments"
	domainpayout "staybook/internal/domain/payout"
	domainproperty "staybook/internal/domain/property"
)

// UnitOfWork coordinates repositories inside one transaction boundary. A
// booking transition and its first-order side effects (payout, loyalty,
// processed-event claim) commit together or not at all.
type UnitOfWork interface {
	Properties() domainproperty.Repository
	Bookings() domainbooking.Repository
	Coupons() domaincoupon.Repository
	Loyalty() domainloyalty.Repository
	Payouts() domainpayout.Repository
	WebhookEvents() domainpayments.EventLog

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries. Skip leaves the handler in
// charge of its own units, which the booking creation flow needs to keep a
// committed pending booking around a failed gateway call.
type TxOptions struct {
	ReadOnly bool
	Skip     bool
}

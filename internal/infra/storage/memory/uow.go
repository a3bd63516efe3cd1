package memory

import (
	"context"
	"errors"

	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domaincoupon "staybook/internal/domain/coupon"
	domainloyalty "staybook/internal/domain/loyalty"
	domainpayments "staybook/internal/domain/payments"
	domainpayout "staybook/internal/domain/payout"
	domainproperty "staybook/internal/domain/property"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	PropertiesRepo domainproperty.Repository
	BookingsRepo   domainbooking.Repository
	CouponsRepo    domaincoupon.Repository
	LoyaltyRepo    domainloyalty.Repository
	PayoutsRepo    domainpayout.Repository
	EventLog       domainpayments.EventLog
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// NewFactory builds a factory over a fresh set of in-memory stores.
func NewFactory() Factory {
	return Factory{
		PropertiesRepo: NewPropertyRepository(),
		BookingsRepo:   NewBookingRepository(),
		CouponsRepo:    NewCouponRepository(),
		LoyaltyRepo:    NewLoyaltyRepository(),
		PayoutsRepo:    NewPayoutRepository(),
		EventLog:       NewWebhookEventLog(),
	}
}

// Begin starts a lightweight transaction boundary. No isolation is provided
// but the abstraction matches the application ports; the repositories keep
// their atomicity guarantees under their own mutexes.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.PropertiesRepo == nil || f.BookingsRepo == nil || f.CouponsRepo == nil ||
		f.LoyaltyRepo == nil || f.PayoutsRepo == nil || f.EventLog == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		properties: f.PropertiesRepo,
		bookings:   f.BookingsRepo,
		coupons:    f.CouponsRepo,
		loyalty:    f.LoyaltyRepo,
		payouts:    f.PayoutsRepo,
		events:     f.EventLog,
	}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	properties domainproperty.Repository
	bookings   domainbooking.Repository
	coupons    domaincoupon.Repository
	loyalty    domainloyalty.Repository
	payouts    domainpayout.Repository
	events     domainpayments.EventLog
}

func (u *Unit) Properties() domainproperty.Repository {
	return u.properties
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.bookings
}

func (u *Unit) Coupons() domaincoupon.Repository {
	return u.coupons
}

func (u *Unit) Loyalty() domainloyalty.Repository {
	return u.loyalty
}

func (u *Unit) Payouts() domainpayout.Repository {
	return u.payouts
}

func (u *Unit) WebhookEvents() domainpayments.EventLog {
	return u.events
}

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}

var _ uow.UoWFactory = Factory{}

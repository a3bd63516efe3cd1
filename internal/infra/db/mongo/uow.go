package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domaincoupon "staybook/internal/domain/coupon"
	domainloyalty "staybook/internal/domain/loyalty"
	domainpayments "staybook/internal/domain/payments"
	domainpayout "staybook/internal/domain/payout"
	domainproperty "staybook/internal/domain/property"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	PropertiesRepo domainproperty.Repository
	BookingsRepo   domainbooking.Repository
	CouponsRepo    domaincoupon.Repository
	LoyaltyRepo    domainloyalty.Repository
	PayoutsRepo    domainpayout.Repository
	EventLog       domainpayments.EventLog
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// NewFactory builds the factory and its repositories over one database.
func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:             db,
		PropertiesRepo: NewPropertyRepository(db),
		BookingsRepo:   NewBookingRepository(db),
		CouponsRepo:    NewCouponRepository(db),
		LoyaltyRepo:    NewLoyaltyRepository(db),
		PayoutsRepo:    NewPayoutRepository(db),
		EventLog:       NewWebhookEventLog(db),
	}
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		db:         f.DB,
		session:    session,
		properties: f.PropertiesRepo,
		bookings:   f.BookingsRepo,
		coupons:    f.CouponsRepo,
		loyalty:    f.LoyaltyRepo,
		payouts:    f.PayoutsRepo,
		events:     f.EventLog,
	}, nil
}

type Unit struct {
	db      *mongo.Database
	session mongo.Session

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
	defer u.session.EndSession(ctx)
	if err := u.session.CommitTransaction(ctx); err != nil {
		return err
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}

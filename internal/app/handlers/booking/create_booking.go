package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domaincoupon "staybook/internal/domain/coupon"
	domainpayments "staybook/internal/domain/payments"
	domainpricing "staybook/internal/domain/pricing"
	domainproperty "staybook/internal/domain/property"
	domainrange "staybook/internal/domain/shared/daterange"
)

const createBookingKey = "booking.create"

var (
	ErrGuestsLimitExceeded = errors.New("booking: guests exceed property limit")
	ErrPropertyInactive    = errors.New("booking: property is not accepting bookings")
	ErrUnitOfWorkRequired  = errors.New("booking: unit of work factory required")
)

type CreateBookingCommand struct {
	CommandID       string
	PropertyID      string
	GuestID         string
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int
	CouponCode      string
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &CreateBookingResult{} }

type CreateBookingResult struct {
	BookingID        string        `json:"booking_id"`
	Status           string        `json:"status"`
	Price            dto.PriceView `json:"price"`
	PaymentIntentRef string        `json:"payment_intent_ref,omitempty"`
	ClientSecret     string        `json:"client_secret,omitempty"`
}

// CreateBookingHandler runs the reservation flow in two phases: the first
// transaction checks availability, applies the coupon and inserts the pending
// booking; the gateway call happens outside any transaction; the second
// transaction attaches the intent reference. A gateway failure therefore
// leaves a committed pending booking without an external reference, which an
// out-of-band sweeper can retry or expire.
type CreateBookingHandler struct {
	UoWFactory uow.UoWFactory
	Payments   policies.PaymentsPort
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*CreateBookingResult, error) {
	if h.UoWFactory == nil {
		return nil, ErrUnitOfWorkRequired
	}
	dr, err := domainrange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := domainbooking.ValidateDateRange(dr, now); err != nil {
		return nil, err
	}

	created, err := h.reserve(ctx, cmd, dr, now)
	if err != nil {
		return nil, err
	}

	intent, intentErr := h.Payments.OpenIntent(ctx, string(created.ID), created.Price.Total)
	if intentErr != nil {
		if h.Logger != nil {
			h.Logger.Error("payment intent creation failed, booking stays pending without reference",
				"booking_id", created.ID, "error", intentErr)
		}
		return nil, fmt.Errorf("%w: %w", domainpayments.ErrIntentCreateFailed, intentErr)
	}

	if err := h.attachIntent(ctx, created.ID, intent.Ref, now); err != nil {
		return nil, err
	}

	return &CreateBookingResult{
		BookingID:        string(created.ID),
		Status:           string(domainbooking.StatePending),
		Price:            dto.MapPriceView(created.Price),
		PaymentIntentRef: intent.Ref,
		ClientSecret:     intent.ClientSecret,
	}, nil
}

// reserve is phase one: availability gate, quote, coupon, insert. Commits its
// own unit so the pending booking survives a later gateway failure.
func (h *CreateBookingHandler) reserve(ctx context.Context, cmd CreateBookingCommand, dr domainrange.DateRange, now time.Time) (*domainbooking.Booking, error) {
	unit, err := h.UoWFactory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	execCtx := ctx
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		execCtx = injector.InjectContext(ctx)
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	prop, err := unit.Properties().ByID(execCtx, domainproperty.PropertyID(cmd.PropertyID))
	if err != nil {
		return nil, err
	}
	if !prop.Active {
		return nil, ErrPropertyInactive
	}
	if prop.GuestsLimit > 0 && cmd.Guests > prop.GuestsLimit {
		return nil, ErrGuestsLimitExceeded
	}

	// Fails closed: an availability check that cannot complete blocks the
	// booking rather than letting a double booking through.
	overlapping, err := unit.Bookings().AnyOverlapping(execCtx, prop.ID, dr)
	if err != nil || overlapping {
		return nil, domainbooking.ErrDateConflict
	}

	quote, err := domainpricing.Quote(prop, dr)
	if err != nil {
		return nil, err
	}

	couponCode := domaincoupon.NormalizeCode(cmd.CouponCode)
	if couponCode != "" {
		if err := redeemCoupon(execCtx, unit, couponCode, cmd.GuestID, &quote, now); err != nil {
			return nil, err
		}
	}

	created, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:         domainbooking.BookingID(cmd.CommandID),
		PropertyID: prop.ID,
		HostID:     prop.Host,
		GuestID:    cmd.GuestID,
		Range:      dr,
		Guests:     cmd.Guests,
		Price:      quote,
		CouponCode: couponCode,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}

	// InsertNew re-checks the overlap atomically; a race that slipped past
	// the read above surfaces here as ErrDateConflict.
	if err := unit.Bookings().InsertNew(execCtx, created); err != nil {
		return nil, err
	}

	pending := created.PendingEvents()
	created.ClearEvents()
	if err := outbox.RecordDomainEvents(execCtx, h.Outbox, h.encoder(), pending); err != nil {
		return nil, err
	}

	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true
	return created, nil
}

// attachIntent is phase two: record the gateway reference on the booking.
func (h *CreateBookingHandler) attachIntent(ctx context.Context, id domainbooking.BookingID, ref string, now time.Time) error {
	unit, err := h.UoWFactory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	execCtx := ctx
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		execCtx = injector.InjectContext(ctx)
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	b, err := unit.Bookings().ByID(execCtx, id)
	if err != nil {
		return err
	}
	if err := b.AttachPaymentIntent(ref, now); err != nil {
		return err
	}
	if err := unit.Bookings().Save(execCtx, b); err != nil {
		return err
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	committed = true
	return nil
}

// redeemCoupon applies the eligibility checks in their fixed order and
// records the redemption through the atomic repository operation.
func redeemCoupon(ctx context.Context, unit uow.UnitOfWork, code, userID string, quote *domainpricing.PriceBreakdown, now time.Time) error {
	cp, err := unit.Coupons().ByCode(ctx, code)
	if err != nil {
		return err
	}
	redeemed, err := unit.Coupons().HasRedemption(ctx, cp.ID, userID)
	if err != nil {
		return err
	}
	if err := cp.Eligibility(now, redeemed, quote.Subtotal()); err != nil {
		return err
	}
	discount := cp.Discount(quote.Subtotal())
	if err := unit.Coupons().Redeem(ctx, cp.ID, domaincoupon.Redemption{
		CouponID: cp.ID,
		UserID:   userID,
		Amount:   discount,
		At:       now,
	}); err != nil {
		return err
	}
	return quote.ApplyDiscount(discount)
}

func (h *CreateBookingHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

var _ commands.Handler[CreateBookingCommand, *CreateBookingResult] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}

package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domainbooking "staybook/internal/domain/booking"
	domaincoupon "staybook/internal/domain/coupon"
	domainpayments "staybook/internal/domain/payments"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

type createFixture struct {
	factory  memory.Factory
	payments *memory.PaymentsStub
	outbox   *memory.Outbox
	handler  *CreateBookingHandler
}

func newCreateFixture(t *testing.T) *createFixture {
	t.Helper()
	factory := memory.NewFactory()
	payments := memory.NewPaymentsStub()
	ob := memory.NewOutbox()

	prop := &domainproperty.Property{
		ID:          "prop-1",
		Host:        "host-1",
		Title:       "Lakeside cabin",
		NightlyRate: money.Must(15000, "USD"),
		CleaningFee: money.Must(2000, "USD"),
		GuestsLimit: 4,
		Active:      true,
	}
	if err := factory.PropertiesRepo.Save(context.Background(), prop); err != nil {
		t.Fatalf("seed property: %v", err)
	}

	return &createFixture{
		factory:  factory,
		payments: payments,
		outbox:   ob,
		handler: &CreateBookingHandler{
			UoWFactory: factory,
			Payments:   payments,
			Outbox:     ob,
		},
	}
}

func createCommand(id string) CreateBookingCommand {
	return CreateBookingCommand{
		CommandID:  id,
		PropertyID: "prop-1",
		GuestID:    "guest-1",
		CheckIn:    time.Date(2030, 6, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2030, 6, 13, 0, 0, 0, 0, time.UTC),
		Guests:     2,
	}
}

func TestCreateBooking(t *testing.T) {
	fx := newCreateFixture(t)

	res, err := fx.handler.Handle(context.Background(), createCommand("bk-1"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Status != string(domainbooking.StatePending) {
		t.Errorf("Status = %s, want PENDING", res.Status)
	}
	if res.Price.Total != 47000 {
		t.Errorf("Total = %d, want 47000", res.Price.Total)
	}
	if res.PaymentIntentRef != "pi_stub_bk-1" {
		t.Errorf("PaymentIntentRef = %s, want pi_stub_bk-1", res.PaymentIntentRef)
	}

	stored, err := fx.factory.BookingsRepo.ByID(context.Background(), "bk-1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if stored.PaymentIntentRef != "pi_stub_bk-1" {
		t.Errorf("stored intent ref = %q", stored.PaymentIntentRef)
	}

	records := fx.outbox.Pending()
	if len(records) != 1 {
		t.Fatalf("outbox records = %d, want 1", len(records))
	}
	if records[0].Name != "booking.created" {
		t.Errorf("event name = %s", records[0].Name)
	}
}

func TestCreateBookingDateConflict(t *testing.T) {
	fx := newCreateFixture(t)

	if _, err := fx.handler.Handle(context.Background(), createCommand("bk-1")); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	second := createCommand("bk-2")
	second.CheckIn = time.Date(2030, 6, 12, 0, 0, 0, 0, time.UTC)
	second.CheckOut = time.Date(2030, 6, 15, 0, 0, 0, 0, time.UTC)
	if _, err := fx.handler.Handle(context.Background(), second); !errors.Is(err, domainbooking.ErrDateConflict) {
		t.Fatalf("error = %v, want ErrDateConflict", err)
	}
}

func TestCreateBookingBackToBackAllowed(t *testing.T) {
	fx := newCreateFixture(t)

	if _, err := fx.handler.Handle(context.Background(), createCommand("bk-1")); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	second := createCommand("bk-2")
	second.CheckIn = time.Date(2030, 6, 13, 0, 0, 0, 0, time.UTC)
	second.CheckOut = time.Date(2030, 6, 16, 0, 0, 0, 0, time.UTC)
	if _, err := fx.handler.Handle(context.Background(), second); err != nil {
		t.Fatalf("back-to-back booking rejected: %v", err)
	}
}

// Concurrent creations racing for one overlapping window: the atomic insert
// backstop lets exactly one through.
func TestCreateBookingConcurrentOverlapSingleWinner(t *testing.T) {
	fx := newCreateFixture(t)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.handler.Handle(context.Background(), createCommand(fmt.Sprintf("bk-%d", i)))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, domainbooking.ErrDateConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestCreateBookingGatewayFailureLeavesPendingBooking(t *testing.T) {
	fx := newCreateFixture(t)
	fx.payments.FailNext = true

	_, err := fx.handler.Handle(context.Background(), createCommand("bk-1"))
	if !errors.Is(err, domainpayments.ErrIntentCreateFailed) {
		t.Fatalf("error = %v, want ErrIntentCreateFailed", err)
	}

	// Phase one committed before the gateway call, so the pending booking
	// survives without an intent reference.
	stored, err := fx.factory.BookingsRepo.ByID(context.Background(), "bk-1")
	if err != nil {
		t.Fatalf("ByID after gateway failure: %v", err)
	}
	if stored.State != domainbooking.StatePending {
		t.Errorf("state = %s, want PENDING", stored.State)
	}
	if stored.PaymentIntentRef != "" {
		t.Errorf("intent ref = %q, want empty", stored.PaymentIntentRef)
	}
}

func TestCreateBookingWithCoupon(t *testing.T) {
	fx := newCreateFixture(t)
	fx.factory.CouponsRepo.(*memory.CouponRepository).Seed(&domaincoupon.Coupon{
		ID:      "cp-1",
		Code:    "save10",
		Kind:    domaincoupon.KindPercentage,
		Value:   10,
		MaxUses: 5,
		Active:  true,
	})

	cmd := createCommand("bk-1")
	cmd.CouponCode = " Save10 "
	res, err := fx.handler.Handle(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Price.Discount != 4700 {
		t.Errorf("Discount = %d, want 4700", res.Price.Discount)
	}
	if res.Price.Total != 42300 {
		t.Errorf("Total = %d, want 42300", res.Price.Total)
	}

	stored, _ := fx.factory.BookingsRepo.ByID(context.Background(), "bk-1")
	if stored.CouponCode != "SAVE10" {
		t.Errorf("CouponCode = %q, want SAVE10", stored.CouponCode)
	}
}

func TestCreateBookingUnknownCoupon(t *testing.T) {
	fx := newCreateFixture(t)

	cmd := createCommand("bk-1")
	cmd.CouponCode = "NOPE"
	if _, err := fx.handler.Handle(context.Background(), cmd); !errors.Is(err, domaincoupon.ErrCouponNotFound) {
		t.Fatalf("error = %v, want ErrCouponNotFound", err)
	}
	if _, err := fx.factory.BookingsRepo.ByID(context.Background(), "bk-1"); !errors.Is(err, domainbooking.ErrBookingNotFound) {
		t.Fatalf("booking persisted despite coupon failure: %v", err)
	}
}

func TestCreateBookingGuards(t *testing.T) {
	fx := newCreateFixture(t)

	tooMany := createCommand("bk-1")
	tooMany.Guests = 9
	if _, err := fx.handler.Handle(context.Background(), tooMany); !errors.Is(err, ErrGuestsLimitExceeded) {
		t.Errorf("guests over limit: error = %v, want ErrGuestsLimitExceeded", err)
	}

	past := createCommand("bk-2")
	past.CheckIn = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	past.CheckOut = time.Date(2020, 1, 4, 0, 0, 0, 0, time.UTC)
	if _, err := fx.handler.Handle(context.Background(), past); !errors.Is(err, domainbooking.ErrCheckInInPast) {
		t.Errorf("past check-in: error = %v, want ErrCheckInInPast", err)
	}

	inactive := &domainproperty.Property{
		ID:          "prop-2",
		Host:        "host-1",
		NightlyRate: money.Must(10000, "USD"),
		Active:      false,
	}
	_ = fx.factory.PropertiesRepo.Save(context.Background(), inactive)
	dark := createCommand("bk-3")
	dark.PropertyID = "prop-2"
	if _, err := fx.handler.Handle(context.Background(), dark); !errors.Is(err, ErrPropertyInactive) {
		t.Errorf("inactive property: error = %v, want ErrPropertyInactive", err)
	}
}

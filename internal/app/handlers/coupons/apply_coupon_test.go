package coupons

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domainbooking "staybook/internal/domain/booking"
	domaincoupon "staybook/internal/domain/coupon"
	domainpricing "staybook/internal/domain/pricing"
	domainproperty "staybook/internal/domain/property"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

func newApplyFixture(t *testing.T, coupon *domaincoupon.Coupon) (memory.Factory, *ApplyCouponHandler) {
	t.Helper()
	factory := memory.NewFactory()
	if coupon != nil {
		factory.CouponsRepo.(*memory.CouponRepository).Seed(coupon)
	}
	return factory, &ApplyCouponHandler{UoWFactory: factory}
}

func seedPendingBooking(t *testing.T, factory memory.Factory, id, guestID string) *domainbooking.Booking {
	t.Helper()
	dr, err := domainrange.New(
		time.Date(2030, 6, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 6, 13, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("date range: %v", err)
	}
	prop := &domainproperty.Property{
		ID:          domainproperty.PropertyID("prop-" + id),
		Host:        "host-1",
		NightlyRate: money.Must(15000, "USD"),
		CleaningFee: money.Must(2000, "USD"),
		Active:      true,
	}
	quote, err := domainpricing.Quote(prop, dr)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:         domainbooking.BookingID(id),
		PropertyID: prop.ID,
		HostID:     prop.Host,
		GuestID:    guestID,
		Range:      dr,
		Guests:     2,
		Price:      quote,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("new booking: %v", err)
	}
	b.ClearEvents()
	if err := factory.BookingsRepo.InsertNew(context.Background(), b); err != nil {
		t.Fatalf("insert booking: %v", err)
	}
	return b
}

func percentCoupon(maxUses int64) *domaincoupon.Coupon {
	return &domaincoupon.Coupon{
		ID:      "cp-1",
		Code:    "SAVE10",
		Kind:    domaincoupon.KindPercentage,
		Value:   10,
		MaxUses: maxUses,
		Active:  true,
	}
}

func TestApplyCoupon(t *testing.T) {
	factory, handler := newApplyFixture(t, percentCoupon(5))
	seedPendingBooking(t, factory, "bk-1", "guest-1")

	res, err := handler.Handle(context.Background(), ApplyCouponCommand{
		Code:      "save10",
		BookingID: "bk-1",
		GuestID:   "guest-1",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Discount != 4700 {
		t.Errorf("Discount = %d, want 4700", res.Discount)
	}
	if res.Total != 42300 {
		t.Errorf("Total = %d, want 42300", res.Total)
	}

	stored, err := factory.BookingsRepo.ByID(context.Background(), "bk-1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if stored.CouponCode != "SAVE10" {
		t.Errorf("CouponCode = %q, want SAVE10", stored.CouponCode)
	}
	if stored.Price.Total.Amount != 42300 {
		t.Errorf("stored total = %d, want 42300", stored.Price.Total.Amount)
	}
}

func TestApplyCouponRejectsRepeatBySameUser(t *testing.T) {
	factory, handler := newApplyFixture(t, percentCoupon(5))
	seedPendingBooking(t, factory, "bk-1", "guest-1")
	seedPendingBooking(t, factory, "bk-2", "guest-1")

	if _, err := handler.Handle(context.Background(), ApplyCouponCommand{Code: "SAVE10", BookingID: "bk-1", GuestID: "guest-1"}); err != nil {
		t.Fatalf("first redemption: %v", err)
	}

	_, err := handler.Handle(context.Background(), ApplyCouponCommand{Code: "SAVE10", BookingID: "bk-2", GuestID: "guest-1"})
	var rejection *domaincoupon.RejectionError
	if !errors.As(err, &rejection) || rejection.Code != domaincoupon.CodeAlreadyRedeemed {
		t.Fatalf("error = %v, want COUPON_ALREADY_REDEEMED rejection", err)
	}
}

func TestApplyCouponGuards(t *testing.T) {
	factory, handler := newApplyFixture(t, percentCoupon(5))
	b := seedPendingBooking(t, factory, "bk-1", "guest-1")

	if _, err := handler.Handle(context.Background(), ApplyCouponCommand{Code: "SAVE10", BookingID: "bk-1", GuestID: "guest-2"}); !errors.Is(err, domainbooking.ErrNotOwner) {
		t.Errorf("foreign booking: error = %v, want ErrNotOwner", err)
	}

	if _, err := handler.Handle(context.Background(), ApplyCouponCommand{Code: "NOPE", BookingID: "bk-1", GuestID: "guest-1"}); !errors.Is(err, domaincoupon.ErrCouponNotFound) {
		t.Errorf("unknown code: error = %v, want ErrCouponNotFound", err)
	}

	if _, err := b.Confirm(time.Now()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := factory.BookingsRepo.Save(context.Background(), b); err != nil {
		t.Fatalf("save confirmed booking: %v", err)
	}
	if _, err := handler.Handle(context.Background(), ApplyCouponCommand{Code: "SAVE10", BookingID: "bk-1", GuestID: "guest-1"}); !errors.Is(err, ErrBookingNotPending) {
		t.Errorf("confirmed booking: error = %v, want ErrBookingNotPending", err)
	}
}

// A booking carries at most one coupon; a second application is rejected
// before any redemption so the second coupon's slot stays free.
func TestApplyCouponRejectsSecondCoupon(t *testing.T) {
	factory, handler := newApplyFixture(t, percentCoupon(5))
	factory.CouponsRepo.(*memory.CouponRepository).Seed(&domaincoupon.Coupon{
		ID:      "cp-2",
		Code:    "EXTRA5",
		Kind:    domaincoupon.KindFixed,
		Value:   500,
		MaxUses: 5,
		Active:  true,
	})
	seedPendingBooking(t, factory, "bk-1", "guest-1")

	if _, err := handler.Handle(context.Background(), ApplyCouponCommand{Code: "SAVE10", BookingID: "bk-1", GuestID: "guest-1"}); err != nil {
		t.Fatalf("first coupon: %v", err)
	}
	if _, err := handler.Handle(context.Background(), ApplyCouponCommand{Code: "EXTRA5", BookingID: "bk-1", GuestID: "guest-1"}); !errors.Is(err, ErrCouponAlreadyApplied) {
		t.Fatalf("second coupon: error = %v, want ErrCouponAlreadyApplied", err)
	}

	second, err := factory.CouponsRepo.ByCode(context.Background(), "EXTRA5")
	if err != nil {
		t.Fatalf("ByCode: %v", err)
	}
	if second.Uses != 0 {
		t.Errorf("second coupon Uses = %d, want 0", second.Uses)
	}
	stored, _ := factory.BookingsRepo.ByID(context.Background(), "bk-1")
	if stored.CouponCode != "SAVE10" || stored.Price.Total.Amount != 42300 {
		t.Errorf("booking = coupon %q total %d, want SAVE10 / 42300", stored.CouponCode, stored.Price.Total.Amount)
	}
}

func TestApplyCouponBelowMinimum(t *testing.T) {
	cp := percentCoupon(5)
	cp.MinBooking = money.Must(100000, "USD")
	factory, handler := newApplyFixture(t, cp)
	seedPendingBooking(t, factory, "bk-1", "guest-1")

	_, err := handler.Handle(context.Background(), ApplyCouponCommand{Code: "SAVE10", BookingID: "bk-1", GuestID: "guest-1"})
	var rejection *domaincoupon.RejectionError
	if !errors.As(err, &rejection) || rejection.Code != domaincoupon.CodeBelowMinimum {
		t.Fatalf("error = %v, want COUPON_MIN_VALUE rejection", err)
	}
}

// Concurrent redemptions race for the last slot of a near-cap coupon; the
// atomic Redeem lets exactly one through.
func TestApplyCouponLastSlotSingleWinner(t *testing.T) {
	factory, handler := newApplyFixture(t, percentCoupon(1))

	const racers = 8
	for i := 0; i < racers; i++ {
		id := string(rune('a' + i))
		seedPendingBooking(t, factory, "bk-"+id, "guest-"+id)
	}

	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			_, errs[i] = handler.Handle(context.Background(), ApplyCouponCommand{
				Code:      "SAVE10",
				BookingID: "bk-" + id,
				GuestID:   "guest-" + id,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		var rejection *domaincoupon.RejectionError
		if !errors.As(err, &rejection) || rejection.Code != domaincoupon.CodeExhausted {
			t.Errorf("loser error = %v, want COUPON_EXHAUSTED rejection", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

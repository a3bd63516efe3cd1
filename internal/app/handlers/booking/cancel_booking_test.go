package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	domainbooking "staybook/internal/domain/booking"
)

func TestCancelBooking(t *testing.T) {
	fx := newCreateFixture(t)
	cancel := &CancelBookingHandler{UoWFactory: fx.factory, Outbox: fx.outbox}

	if _, err := fx.handler.Handle(context.Background(), createCommand("bk-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := cancel.Handle(context.Background(), CancelBookingCommand{
		BookingID: "bk-1",
		GuestID:   "guest-1",
		Reason:    "change of plans",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res.Status != string(domainbooking.StateCancelled) {
		t.Errorf("Status = %s, want CANCELLED", res.Status)
	}

	var cancelled int
	for _, rec := range fx.outbox.Pending() {
		if rec.Name == "booking.cancelled" {
			cancelled++
		}
	}
	if cancelled != 1 {
		t.Errorf("cancelled events = %d, want 1", cancelled)
	}

	// Repeat cancellation is a no-op that emits nothing new.
	again, err := cancel.Handle(context.Background(), CancelBookingCommand{BookingID: "bk-1", GuestID: "guest-1"})
	if err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if again.Status != string(domainbooking.StateCancelled) {
		t.Errorf("repeat Status = %s", again.Status)
	}
}

func TestCancelBookingFreesDates(t *testing.T) {
	fx := newCreateFixture(t)
	cancel := &CancelBookingHandler{UoWFactory: fx.factory, Outbox: fx.outbox}

	if _, err := fx.handler.Handle(context.Background(), createCommand("bk-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := cancel.Handle(context.Background(), CancelBookingCommand{BookingID: "bk-1", GuestID: "guest-1"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// Cancelled bookings stop blocking: the same window books again.
	if _, err := fx.handler.Handle(context.Background(), createCommand("bk-2")); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
}

func TestCancelBookingGuards(t *testing.T) {
	fx := newCreateFixture(t)
	cancel := &CancelBookingHandler{UoWFactory: fx.factory, Outbox: fx.outbox}

	if _, err := fx.handler.Handle(context.Background(), createCommand("bk-1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := cancel.Handle(context.Background(), CancelBookingCommand{BookingID: "bk-1", GuestID: "guest-2"}); !errors.Is(err, domainbooking.ErrNotOwner) {
		t.Errorf("foreign booking: error = %v, want ErrNotOwner", err)
	}
	if _, err := cancel.Handle(context.Background(), CancelBookingCommand{BookingID: "missing", GuestID: "guest-1"}); !errors.Is(err, domainbooking.ErrBookingNotFound) {
		t.Errorf("missing booking: error = %v, want ErrBookingNotFound", err)
	}

	// Once reconciliation confirmed the booking a guest can no longer
	// withdraw through this endpoint.
	b, err := fx.factory.BookingsRepo.ByID(context.Background(), "bk-1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if _, err := b.Confirm(time.Now()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := fx.factory.BookingsRepo.Save(context.Background(), b); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := cancel.Handle(context.Background(), CancelBookingCommand{BookingID: "bk-1", GuestID: "guest-1"}); !errors.Is(err, domainbooking.ErrCancelOnlyWhilePending) {
		t.Errorf("confirmed booking: error = %v, want ErrCancelOnlyWhilePending", err)
	}
}

package loyalty

import (
	"context"
	"errors"
	"testing"
	"time"

	domainloyalty "staybook/internal/domain/loyalty"
	"staybook/internal/infra/storage/memory"
)

func seedBalance(t *testing.T, factory memory.Factory, userID string, earned int64) {
	t.Helper()
	err := factory.LoyaltyRepo.Append(context.Background(), &domainloyalty.Transaction{
		ID:     "seed-1",
		UserID: userID,
		Earned: earned,
		Reason: domainloyalty.ReasonBookingConfirmed,
		At:     time.Now(),
	})
	if err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
}

func TestRedeemPoints(t *testing.T) {
	factory := memory.NewFactory()
	handler := &RedeemPointsHandler{UoWFactory: factory}
	seedBalance(t, factory, "guest-1", 470)

	res, err := handler.Handle(context.Background(), RedeemPointsCommand{UserID: "guest-1", Points: 300})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Redeemed != 300 {
		t.Errorf("Redeemed = %d, want 300", res.Redeemed)
	}
	if res.Balance != 170 {
		t.Errorf("Balance = %d, want 170", res.Balance)
	}

	balance, err := factory.LoyaltyRepo.BalanceOf(context.Background(), "guest-1")
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if balance != 170 {
		t.Errorf("ledger balance = %d, want 170", balance)
	}
}

func TestRedeemPointsOverdraw(t *testing.T) {
	factory := memory.NewFactory()
	handler := &RedeemPointsHandler{UoWFactory: factory}
	seedBalance(t, factory, "guest-1", 100)

	if _, err := handler.Handle(context.Background(), RedeemPointsCommand{UserID: "guest-1", Points: 101}); !errors.Is(err, domainloyalty.ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}
	balance, _ := factory.LoyaltyRepo.BalanceOf(context.Background(), "guest-1")
	if balance != 100 {
		t.Errorf("balance after rejected redemption = %d, want 100", balance)
	}
}

func TestRedeemPointsValidation(t *testing.T) {
	factory := memory.NewFactory()
	handler := &RedeemPointsHandler{UoWFactory: factory}

	for _, points := range []int64{0, -5} {
		if _, err := handler.Handle(context.Background(), RedeemPointsCommand{UserID: "guest-1", Points: points}); !errors.Is(err, domainloyalty.ErrInvalidPoints) {
			t.Errorf("points %d: error = %v, want ErrInvalidPoints", points, err)
		}
	}
}

func TestAccrueReview(t *testing.T) {
	factory := memory.NewFactory()
	handler := &AccrueReviewHandler{UoWFactory: factory}

	res, err := handler.Handle(context.Background(), AccrueReviewCommand{
		ReviewID: "rev-1",
		AuthorID: "guest-1",
		Rating:   5,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Earned != 10 {
		t.Errorf("Earned = %d, want 10", res.Earned)
	}

	entries, err := factory.LoyaltyRepo.ListByUser(context.Background(), "guest-1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Reason != domainloyalty.ReasonReviewSubmitted || entries[0].ReviewID != "rev-1" {
		t.Errorf("entry = %+v", entries[0])
	}
}

// The review stream delivers at least once; replaying the same review must
// leave exactly one ledger entry.
func TestAccrueReviewRedeliveryAppliesOnce(t *testing.T) {
	factory := memory.NewFactory()
	handler := &AccrueReviewHandler{UoWFactory: factory}

	cmd := AccrueReviewCommand{ReviewID: "rev-1", AuthorID: "guest-1", Rating: 5}
	first, err := handler.Handle(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if first.Earned != 10 {
		t.Fatalf("Earned = %d, want 10", first.Earned)
	}
	for i := 0; i < 3; i++ {
		res, err := handler.Handle(context.Background(), cmd)
		if err != nil {
			t.Fatalf("redelivery %d: %v", i, err)
		}
		if res.Earned != 0 || res.TransactionID != "" {
			t.Errorf("redelivery %d result = %+v, want empty no-op", i, res)
		}
	}

	entries, err := factory.LoyaltyRepo.ListByUser(context.Background(), "guest-1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	balance, _ := factory.LoyaltyRepo.BalanceOf(context.Background(), "guest-1")
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}
}

// Distinct reviews by one author each accrue; only redeliveries collapse.
func TestAccrueReviewDistinctReviewsBothApply(t *testing.T) {
	factory := memory.NewFactory()
	handler := &AccrueReviewHandler{UoWFactory: factory}

	for _, id := range []string{"rev-1", "rev-2"} {
		if _, err := handler.Handle(context.Background(), AccrueReviewCommand{ReviewID: id, AuthorID: "guest-1", Rating: 3}); err != nil {
			t.Fatalf("accrue %s: %v", id, err)
		}
	}
	balance, _ := factory.LoyaltyRepo.BalanceOf(context.Background(), "guest-1")
	if balance != 12 {
		t.Errorf("balance = %d, want 12", balance)
	}
}

func TestAccrueReviewZeroRatingSkipsLedger(t *testing.T) {
	factory := memory.NewFactory()
	handler := &AccrueReviewHandler{UoWFactory: factory}

	res, err := handler.Handle(context.Background(), AccrueReviewCommand{ReviewID: "rev-1", AuthorID: "guest-1", Rating: 0})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Earned != 0 || res.TransactionID != "" {
		t.Errorf("result = %+v, want empty", res)
	}
	entries, _ := factory.LoyaltyRepo.ListByUser(context.Background(), "guest-1")
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}

package pricing

import (
	"testing"
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

func testProperty() *property.Property {
	return &property.Property{
		ID:          "prop-1",
		Host:        "host-1",
		NightlyRate: money.Must(15000, "USD"),
		CleaningFee: money.Must(2000, "USD"),
		GuestsLimit: 4,
		Active:      true,
	}
}

func stay(t *testing.T, nights int) daterange.DateRange {
	t.Helper()
	checkIn := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	dr, err := daterange.New(checkIn, checkIn.AddDate(0, 0, nights))
	if err != nil {
		t.Fatalf("daterange.New: %v", err)
	}
	return dr
}

func TestQuote(t *testing.T) {
	breakdown, err := Quote(testProperty(), stay(t, 3))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if breakdown.Nights != 3 {
		t.Fatalf("Nights = %d, want 3", breakdown.Nights)
	}
	if breakdown.Base.Amount != 45000 {
		t.Fatalf("Base = %d, want 45000", breakdown.Base.Amount)
	}
	if breakdown.Total.Amount != 47000 {
		t.Fatalf("Total = %d, want 47000", breakdown.Total.Amount)
	}
}

func TestQuoteWithoutRate(t *testing.T) {
	prop := testProperty()
	prop.NightlyRate = money.Money{}
	if _, err := Quote(prop, stay(t, 2)); err == nil {
		t.Fatal("expected error for property without a nightly rate")
	}
}

func TestSubtotalIgnoresUnsetCleaningFee(t *testing.T) {
	breakdown := PriceBreakdown{
		Nights:  2,
		Nightly: money.Must(10000, "USD"),
		Base:    money.Must(20000, "USD"),
	}
	if got := breakdown.Subtotal().Amount; got != 20000 {
		t.Fatalf("Subtotal = %d, want 20000", got)
	}
}

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name         string
		discount     int64
		wantDiscount int64
		wantTotal    int64
	}{
		{name: "partial discount", discount: 5000, wantDiscount: 5000, wantTotal: 42000},
		{name: "discount equal to subtotal", discount: 47000, wantDiscount: 47000, wantTotal: 0},
		{name: "discount above subtotal is capped", discount: 90000, wantDiscount: 47000, wantTotal: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			breakdown, err := Quote(testProperty(), stay(t, 3))
			if err != nil {
				t.Fatalf("Quote: %v", err)
			}
			if err := breakdown.ApplyDiscount(money.Must(tc.discount, "USD")); err != nil {
				t.Fatalf("ApplyDiscount: %v", err)
			}
			if breakdown.Discount.Amount != tc.wantDiscount {
				t.Fatalf("Discount = %d, want %d", breakdown.Discount.Amount, tc.wantDiscount)
			}
			if breakdown.Total.Amount != tc.wantTotal {
				t.Fatalf("Total = %d, want %d", breakdown.Total.Amount, tc.wantTotal)
			}
		})
	}
}

func TestApplyDiscountRejectsNegative(t *testing.T) {
	breakdown, err := Quote(testProperty(), stay(t, 2))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if err := breakdown.ApplyDiscount(money.Must(-100, "USD")); err == nil {
		t.Fatal("expected error for negative discount")
	}
}

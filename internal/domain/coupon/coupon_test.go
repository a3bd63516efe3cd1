package coupon

import (
	"errors"
	"testing"
	"time"

	"staybook/internal/domain/shared/money"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func activeCoupon() *Coupon {
	return &Coupon{
		ID:         "cp-1",
		Code:       "SUMMER10",
		Kind:       KindPercentage,
		Value:      10,
		ValidFrom:  testNow.AddDate(0, -1, 0),
		ValidTo:    testNow.AddDate(0, 1, 0),
		MaxUses:    100,
		Uses:       0,
		MinBooking: money.Must(10000, "USD"),
		Active:     true,
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  summer10 "); got != "SUMMER10" {
		t.Fatalf("NormalizeCode = %q, want SUMMER10", got)
	}
}

func TestEligibility(t *testing.T) {
	tests := []struct {
		name            string
		mutate          func(*Coupon)
		alreadyRedeemed bool
		subtotal        int64
		wantErr         error
		wantCode        string
	}{
		{name: "eligible", subtotal: 47000},
		{
			name:     "inactive flag",
			mutate:   func(c *Coupon) { c.Active = false },
			subtotal: 47000, wantErr: ErrInactive, wantCode: CodeInactive,
		},
		{
			name:     "before window",
			mutate:   func(c *Coupon) { c.ValidFrom = testNow.AddDate(0, 0, 1) },
			subtotal: 47000, wantErr: ErrInactive, wantCode: CodeInactive,
		},
		{
			name:     "after window",
			mutate:   func(c *Coupon) { c.ValidTo = testNow.AddDate(0, 0, -1) },
			subtotal: 47000, wantErr: ErrInactive, wantCode: CodeInactive,
		},
		{
			name:     "exhausted",
			mutate:   func(c *Coupon) { c.Uses = c.MaxUses },
			subtotal: 47000, wantErr: ErrExhausted, wantCode: CodeExhausted,
		},
		{
			name:            "already redeemed",
			alreadyRedeemed: true,
			subtotal:        47000, wantErr: ErrAlreadyRedeemed, wantCode: CodeAlreadyRedeemed,
		},
		{
			name:     "below minimum",
			subtotal: 9999, wantErr: ErrBelowMinimum, wantCode: CodeBelowMinimum,
		},
		{
			// Window beats exhaustion; the check order is part of the contract.
			name: "inactive reported before exhausted",
			mutate: func(c *Coupon) {
				c.Active = false
				c.Uses = c.MaxUses
			},
			subtotal: 47000, wantErr: ErrInactive, wantCode: CodeInactive,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cp := activeCoupon()
			if tc.mutate != nil {
				tc.mutate(cp)
			}
			err := cp.Eligibility(testNow, tc.alreadyRedeemed, money.Must(tc.subtotal, "USD"))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Eligibility error = %v, want %v", err, tc.wantErr)
			}
			if tc.wantCode != "" {
				var rejection *RejectionError
				if !errors.As(err, &rejection) {
					t.Fatalf("error %v is not a RejectionError", err)
				}
				if rejection.Code != tc.wantCode {
					t.Fatalf("code = %s, want %s", rejection.Code, tc.wantCode)
				}
			}
		})
	}
}

func TestDiscount(t *testing.T) {
	tests := []struct {
		name     string
		kind     DiscountKind
		value    int64
		subtotal int64
		want     int64
	}{
		{name: "percentage", kind: KindPercentage, value: 10, subtotal: 47000, want: 4700},
		{name: "percentage truncates", kind: KindPercentage, value: 10, subtotal: 10005, want: 1000},
		{name: "fixed", kind: KindFixed, value: 2000, subtotal: 47000, want: 2000},
		{name: "fixed capped at subtotal", kind: KindFixed, value: 5000, subtotal: 3000, want: 3000},
		{name: "negative value clamps to zero", kind: KindFixed, value: -100, subtotal: 3000, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cp := activeCoupon()
			cp.Kind = tc.kind
			cp.Value = tc.value
			got := cp.Discount(money.Must(tc.subtotal, "USD"))
			if got.Amount != tc.want {
				t.Fatalf("Discount = %d, want %d", got.Amount, tc.want)
			}
			if got.Currency != "USD" {
				t.Fatalf("Currency = %s, want USD", got.Currency)
			}
		})
	}
}

func TestExhausted(t *testing.T) {
	cp := activeCoupon()
	cp.MaxUses = 0
	cp.Uses = 500
	if cp.Exhausted() {
		t.Fatal("MaxUses = 0 means unlimited, must not be exhausted")
	}
	cp.MaxUses = 500
	if !cp.Exhausted() {
		t.Fatal("Uses == MaxUses must be exhausted")
	}
}

package money

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	m, err := New(1500, "usd")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Currency != "USD" {
		t.Fatalf("Currency = %s, want USD", m.Currency)
	}
	if _, err := New(100, "dollars"); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("error = %v, want ErrInvalidCurrency", err)
	}
}

func TestAddCurrencyMismatch(t *testing.T) {
	if _, err := Must(100, "USD").Add(Must(100, "EUR")); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("error = %v, want ErrCurrencyMismatch", err)
	}
}

func TestBps(t *testing.T) {
	tests := []struct {
		amount int64
		bps    int64
		want   int64
	}{
		{47000, 9000, 42300},
		{42300, 500, 2115},
		{999, 9000, 899},
		{100, 10000, 100},
		{100, 0, 0},
	}
	for _, tc := range tests {
		got := Must(tc.amount, "USD").Bps(tc.bps)
		if got.Amount != tc.want {
			t.Errorf("Bps(%d) of %d = %d, want %d", tc.bps, tc.amount, got.Amount, tc.want)
		}
	}
}

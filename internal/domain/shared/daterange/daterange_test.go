package daterange

import (
	"errors"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		wantErr  error
	}{
		{name: "valid range", checkIn: day(2026, 3, 10), checkOut: day(2026, 3, 12)},
		{name: "check-out equals check-in", checkIn: day(2026, 3, 10), checkOut: day(2026, 3, 10), wantErr: ErrInvalidRange},
		{name: "check-out before check-in", checkIn: day(2026, 3, 12), checkOut: day(2026, 3, 10), wantErr: ErrInvalidRange},
		{
			name:     "time of day does not rescue an empty range",
			checkIn:  time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
			checkOut: time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC),
			wantErr:  ErrInvalidRange,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dr, err := New(tc.checkIn, tc.checkOut)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tc.wantErr)
			}
			if err != nil {
				return
			}
			if !dr.CheckIn.Equal(Truncate(tc.checkIn)) || !dr.CheckOut.Equal(Truncate(tc.checkOut)) {
				t.Fatalf("New() did not normalize to midnight UTC: %+v", dr)
			}
		})
	}
}

func TestNights(t *testing.T) {
	dr, err := New(day(2026, 3, 10), day(2026, 3, 13))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := dr.Nights(); got != 3 {
		t.Fatalf("Nights() = %d, want 3", got)
	}
}

func TestOverlaps(t *testing.T) {
	base, _ := New(day(2026, 3, 10), day(2026, 3, 15))
	tests := []struct {
		name  string
		other DateRange
		want  bool
	}{
		{name: "identical", other: mustRange(t, day(2026, 3, 10), day(2026, 3, 15)), want: true},
		{name: "contained", other: mustRange(t, day(2026, 3, 11), day(2026, 3, 13)), want: true},
		{name: "overlap head", other: mustRange(t, day(2026, 3, 8), day(2026, 3, 11)), want: true},
		{name: "overlap tail", other: mustRange(t, day(2026, 3, 14), day(2026, 3, 20)), want: true},
		{name: "back to back before", other: mustRange(t, day(2026, 3, 5), day(2026, 3, 10)), want: false},
		{name: "back to back after", other: mustRange(t, day(2026, 3, 15), day(2026, 3, 18)), want: false},
		{name: "disjoint", other: mustRange(t, day(2026, 4, 1), day(2026, 4, 5)), want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.Overlaps(tc.other); got != tc.want {
				t.Fatalf("Overlaps() = %v, want %v", got, tc.want)
			}
			if got := tc.other.Overlaps(base); got != tc.want {
				t.Fatalf("Overlaps() not symmetric: %v, want %v", got, tc.want)
			}
		})
	}
}

func mustRange(t *testing.T, in, out time.Time) DateRange {
	t.Helper()
	dr, err := New(in, out)
	if err != nil {
		t.Fatalf("New(%v, %v): %v", in, out, err)
	}
	return dr
}

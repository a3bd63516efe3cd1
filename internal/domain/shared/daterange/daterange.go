package daterange

import (
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("daterange: check-out must be after check-in")

// DateRange is a half-open [CheckIn, CheckOut) stay interval. Times are
// normalized to midnight UTC so a checkout on day N never conflicts with a
// check-in on day N.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// New validates and normalizes a stay interval.
func New(checkIn, checkOut time.Time) (DateRange, error) {
	in := Truncate(checkIn)
	out := Truncate(checkOut)
	if !out.After(in) {
		return DateRange{}, ErrInvalidRange
	}
	return DateRange{CheckIn: in, CheckOut: out}, nil
}

// Nights returns the number of nights covered by the range, never below one.
func (r DateRange) Nights() int {
	nights := int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
	if nights < 1 {
		nights = 1
	}
	return nights
}

// Overlaps reports whether two half-open ranges share at least one night.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.CheckIn.Before(other.CheckOut) && r.CheckOut.After(other.CheckIn)
}

// Truncate drops the time-of-day component, keeping the UTC calendar date.
func Truncate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package booking

import (
	"errors"
	"time"

	"staybook/internal/domain/shared/daterange"
)

var ErrCheckInInPast = errors.New("booking: check-in date is in the past")

func ValidateDateRange(dr daterange.DateRange, now time.Time) error {
	today := daterange.Truncate(now)
	if dr.CheckIn.Before(today) {
		return ErrCheckInInPast
	}
	return nil
}

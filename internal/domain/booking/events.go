package booking

import (
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type BookingCreated struct {
	BookingID  BookingID
	PropertyID property.PropertyID
	GuestID    string
	Range      daterange.DateRange
	Total      money.Money
	At         time.Time
}

func (e BookingCreated) EventName() string     { return "booking.created" }
func (e BookingCreated) AggregateID() string   { return string(e.BookingID) }
func (e BookingCreated) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID  BookingID
	PropertyID property.PropertyID
	HostID     property.HostID
	Total      money.Money
	At         time.Time
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID  BookingID
	PropertyID property.PropertyID
	Reason     string
	At         time.Time
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type ReconciliationAnomalyDetected struct {
	BookingID BookingID
	EventID   string
	EventType string
	State     BookingState
	At        time.Time
}

func (e ReconciliationAnomalyDetected) EventName() string     { return "booking.reconciliation_anomaly" }
func (e ReconciliationAnomalyDetected) AggregateID() string   { return string(e.BookingID) }
func (e ReconciliationAnomalyDetected) OccurredAt() time.Time { return e.At }

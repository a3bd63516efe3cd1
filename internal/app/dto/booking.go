package dto

import (
	"time"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/pricing"
)

// PriceView exposes a quote at the HTTP boundary. Amounts are minor units.
type PriceView struct {
	Nights      int    `json:"nights"`
	Currency    string `json:"currency"`
	Nightly     int64  `json:"nightly"`
	BasePrice   int64  `json:"base_price"`
	CleaningFee int64  `json:"cleaning_fee"`
	Discount    int64  `json:"discount"`
	Total       int64  `json:"total"`
}

func MapPriceView(p pricing.PriceBreakdown) PriceView {
	return PriceView{
		Nights:      p.Nights,
		Currency:    p.Total.Currency,
		Nightly:     p.Nightly.Amount,
		BasePrice:   p.Base.Amount,
		CleaningFee: p.CleaningFee.Amount,
		Discount:    p.Discount.Amount,
		Total:       p.Total.Amount,
	}
}

type GuestBookingSummary struct {
	BookingID        string    `json:"booking_id"`
	PropertyID       string    `json:"property_id"`
	CheckIn          time.Time `json:"check_in"`
	CheckOut         time.Time `json:"check_out"`
	Guests           int       `json:"guests"`
	State            string    `json:"state"`
	Price            PriceView `json:"price"`
	PaymentIntentRef string    `json:"payment_intent_ref,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type GuestBookingCollection struct {
	Items []GuestBookingSummary `json:"items"`
}

func MapGuestBookingSummary(b *domainbooking.Booking) GuestBookingSummary {
	return GuestBookingSummary{
		BookingID:        string(b.ID),
		PropertyID:       string(b.PropertyID),
		CheckIn:          b.Range.CheckIn,
		CheckOut:         b.Range.CheckOut,
		Guests:           b.Guests,
		State:            string(b.State),
		Price:            MapPriceView(b.Price),
		PaymentIntentRef: b.PaymentIntentRef,
		CreatedAt:        b.CreatedAt,
	}
}

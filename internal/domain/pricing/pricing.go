package pricing

import (
	"errors"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var (
	ErrCurrencyUnset     = errors.New("pricing: currency must be defined")
	ErrNegativeComponent = errors.New("pricing: components cannot be negative unless modeled as discount")
	ErrRateUnavailable   = errors.New("pricing: nightly rate unavailable")
)

// PriceBreakdown is the quoted cost of a stay. All amounts are minor units.
type PriceBreakdown struct {
	Nights      int         `json:"nights" bson:"nights"`
	Nightly     money.Money `json:"nightly" bson:"nightly"`
	Base        money.Money `json:"base" bson:"base"`
	CleaningFee money.Money `json:"cleaning_fee" bson:"cleaning_fee"`
	Discount    money.Money `json:"discount" bson:"discount"`
	Total       money.Money `json:"total" bson:"total"`
}

// Quote computes the pre-discount breakdown for a stay on the given property.
func Quote(p *property.Property, dr daterange.DateRange) (PriceBreakdown, error) {
	if p == nil || p.NightlyRate.Currency == "" {
		return PriceBreakdown{}, ErrRateUnavailable
	}
	breakdown := PriceBreakdown{
		Nights:      dr.Nights(),
		Nightly:     p.NightlyRate,
		CleaningFee: p.CleaningFee,
		Discount:    money.Money{Amount: 0, Currency: p.NightlyRate.Currency},
	}
	if err := breakdown.RecalculateTotal(); err != nil {
		return PriceBreakdown{}, err
	}
	return breakdown, nil
}

// Subtotal is the pre-discount amount a coupon is measured against.
func (p PriceBreakdown) Subtotal() money.Money {
	subtotal := p.Base
	if !p.CleaningFee.IsZero() {
		if sum, err := subtotal.Add(p.CleaningFee); err == nil {
			subtotal = sum
		}
	}
	return subtotal
}

// ApplyDiscount replaces the discount component, capping it at the subtotal
// so the total can never go negative.
func (p *PriceBreakdown) ApplyDiscount(discount money.Money) error {
	if discount.Amount < 0 {
		return ErrNegativeComponent
	}
	subtotal := p.Subtotal()
	if discount.Amount > subtotal.Amount {
		discount.Amount = subtotal.Amount
	}
	p.Discount = discount
	return p.RecalculateTotal()
}

// RecalculateTotal derives Base and Total from the components:
// total = max(0, nightly*nights + cleaningFee - discount).
func (p *PriceBreakdown) RecalculateTotal() error {
	if p.Nightly.Currency == "" {
		return ErrCurrencyUnset
	}
	if p.Nights <= 0 {
		return errors.New("pricing: nights must be positive")
	}
	if p.CleaningFee.Amount < 0 || p.Discount.Amount < 0 {
		return ErrNegativeComponent
	}
	p.Base = p.Nightly.Multiply(int64(p.Nights))
	total := p.Base
	if !p.CleaningFee.IsZero() {
		sum, err := total.Add(p.CleaningFee)
		if err != nil {
			return err
		}
		total = sum
	}
	if !p.Discount.IsZero() {
		sum, err := total.Sub(p.Discount)
		if err != nil {
			return err
		}
		total = sum
	}
	if total.Amount < 0 {
		total.Amount = 0
	}
	p.Total = total
	return nil
}

package property

import (
	"context"
	"errors"

	"staybook/internal/domain/shared/money"
)

var ErrNotFound = errors.New("property: not found")

type PropertyID string

type HostID string

// Property is the slice of the listing catalog the booking engine needs.
// Catalog management and search live outside this service.
type Property struct {
	ID          PropertyID
	Host        HostID
	Title       string
	NightlyRate money.Money
	CleaningFee money.Money
	GuestsLimit int
	Active      bool
}

type Repository interface {
	ByID(ctx context.Context, id PropertyID) (*Property, error)
	Save(ctx context.Context, property *Property) error
}

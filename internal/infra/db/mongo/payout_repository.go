package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	domainbooking "staybook/internal/domain/booking"
	domainpayout "staybook/internal/domain/payout"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
)

type PayoutRepository struct {
	col *mongo.Collection
}

func NewPayoutRepository(db *mongo.Database) *PayoutRepository {
	return &PayoutRepository{col: db.Collection("payouts")}
}

// Insert relies on the unique booking_id index: a redelivered confirmation
// that somehow reaches derivation again hits a duplicate key, not a second
// payout.
func (r *PayoutRepository) Insert(ctx context.Context, p *domainpayout.Payout) error {
	if _, err := r.col.InsertOne(ctx, newPayoutDocument(p)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainpayout.ErrAlreadyDerived
		}
		return err
	}
	return nil
}

func (r *PayoutRepository) ByBooking(ctx context.Context, id domainbooking.BookingID) (*domainpayout.Payout, error) {
	var doc payoutDocument
	if err := r.col.FindOne(ctx, bson.M{"booking_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainpayout.ErrPayoutNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

type payoutDocument struct {
	ID        string      `bson:"_id"`
	HostID    string      `bson:"host_id"`
	BookingID string      `bson:"booking_id"`
	Gross     money.Money `bson:"gross"`
	Withheld  money.Money `bson:"withheld"`
	Net       money.Money `bson:"net"`
	Status    string      `bson:"status"`
	CreatedAt int64       `bson:"created_at"`
}

func newPayoutDocument(p *domainpayout.Payout) payoutDocument {
	return payoutDocument{
		ID:        string(p.ID),
		HostID:    string(p.HostID),
		BookingID: string(p.BookingID),
		Gross:     p.Gross,
		Withheld:  p.Withheld,
		Net:       p.Net,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt.UnixMilli(),
	}
}

func (d payoutDocument) toAggregate() *domainpayout.Payout {
	return &domainpayout.Payout{
		ID:        domainpayout.PayoutID(d.ID),
		HostID:    domainproperty.HostID(d.HostID),
		BookingID: domainbooking.BookingID(d.BookingID),
		Gross:     d.Gross,
		Withheld:  d.Withheld,
		Net:       d.Net,
		Status:    domainpayout.PayoutStatus(d.Status),
		CreatedAt: timestampToTime(d.CreatedAt),
	}
}

package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
)

type PropertyRepository struct {
	col *mongo.Collection
}

func NewPropertyRepository(db *mongo.Database) *PropertyRepository {
	return &PropertyRepository{col: db.Collection("properties")}
}

func (r *PropertyRepository) ByID(ctx context.Context, id domainproperty.PropertyID) (*domainproperty.Property, error) {
	var doc propertyDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainproperty.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *PropertyRepository) Save(ctx context.Context, p *domainproperty.Property) error {
	doc := newPropertyDocument(p)
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

type propertyDocument struct {
	ID          string      `bson:"_id"`
	HostID      string      `bson:"host_id"`
	Title       string      `bson:"title"`
	NightlyRate money.Money `bson:"nightly_rate"`
	CleaningFee money.Money `bson:"cleaning_fee"`
	GuestsLimit int         `bson:"guests_limit"`
	Active      bool        `bson:"active"`
}

func newPropertyDocument(p *domainproperty.Property) propertyDocument {
	return propertyDocument{
		ID:          string(p.ID),
		HostID:      string(p.Host),
		Title:       p.Title,
		NightlyRate: p.NightlyRate,
		CleaningFee: p.CleaningFee,
		GuestsLimit: p.GuestsLimit,
		Active:      p.Active,
	}
}

func (d propertyDocument) toAggregate() *domainproperty.Property {
	return &domainproperty.Property{
		ID:          domainproperty.PropertyID(d.ID),
		Host:        domainproperty.HostID(d.HostID),
		Title:       d.Title,
		NightlyRate: d.NightlyRate,
		CleaningFee: d.CleaningFee,
		GuestsLimit: d.GuestsLimit,
		Active:      d.Active,
	}
}

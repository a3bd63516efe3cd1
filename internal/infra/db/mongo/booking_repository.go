package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staybook/internal/domain/booking"
	domainpricing "staybook/internal/domain/pricing"
	domainproperty "staybook/internal/domain/property"
	domainrange "staybook/internal/domain/shared/daterange"
)

var ErrConcurrentUpdate = errors.New("mongo: concurrent update detected")

// Booking states that hold their date range. Kept in sync with
// BookingState.Blocking.
var blockingStates = []string{
	string(domainbooking.StatePending),
	string(domainbooking.StateConfirmed),
}

type BookingRepository struct {
	col    *mongo.Collection
	nights *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{
		col:    db.Collection("agg_booking"),
		nights: db.Collection("booking_nights"),
	}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *BookingRepository) ByPaymentRef(ctx context.Context, ref string) (*domainbooking.Booking, error) {
	if ref == "" {
		return nil, domainbooking.ErrBookingNotFound
	}
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"payment_intent_ref": ref}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

// InsertNew inserts a fresh pending booking inside the caller's session
// transaction. The overlap count alone cannot serialize two concurrent
// creations: Mongo transactions are snapshot-isolated, and two sessions
// inserting distinct booking documents never write-conflict. The real
// backstop is the per-night lock documents keyed (property, night): both
// racers try to insert the same _id for every shared night, so the loser
// fails with a duplicate key and its transaction rolls back.
func (r *BookingRepository) InsertNew(ctx context.Context, b *domainbooking.Booking) error {
	conflicting, err := r.countOverlapping(ctx, b.PropertyID, b.Range)
	if err != nil {
		return err
	}
	if conflicting > 0 {
		return domainbooking.ErrDateConflict
	}
	locks := make([]any, 0, b.Range.Nights())
	for _, key := range nightKeys(b.PropertyID, b.Range) {
		locks = append(locks, nightDocument{
			ID:         key,
			BookingID:  string(b.ID),
			PropertyID: string(b.PropertyID),
		})
	}
	if _, err := r.nights.InsertMany(ctx, locks); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrDateConflict
		}
		return err
	}
	doc := newBookingDocument(b)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrDateConflict
		}
		return err
	}
	b.Version = 1
	return nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConcurrentUpdate
	}
	// A cancelled booking stops blocking its dates; release its night locks in
	// the same transaction so the window books again atomically.
	if b.State == domainbooking.StateCancelled {
		if _, err := r.nights.DeleteMany(ctx, bson.M{"booking_id": string(b.ID)}); err != nil {
			return err
		}
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) AnyOverlapping(ctx context.Context, propertyID domainproperty.PropertyID, dr domainrange.DateRange) (bool, error) {
	count, err := r.countOverlapping(ctx, propertyID, dr)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"guest_id": guestID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var result []*domainbooking.Booking
	for cursor.Next(ctx) {
		var doc bookingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		agg, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	return result, cursor.Err()
}

// Half-open overlap: a blocking booking conflicts when its check-in is before
// the candidate's check-out and its check-out after the candidate's check-in.
func (r *BookingRepository) countOverlapping(ctx context.Context, propertyID domainproperty.PropertyID, dr domainrange.DateRange) (int64, error) {
	filter := bson.M{
		"property_id":     string(propertyID),
		"state":           bson.M{"$in": blockingStates},
		"range.check_in":  bson.M{"$lt": dr.CheckOut.UnixMilli()},
		"range.check_out": bson.M{"$gt": dr.CheckIn.UnixMilli()},
	}
	return r.col.CountDocuments(ctx, filter)
}

type bookingDocument struct {
	ID               string                       `bson:"_id"`
	PropertyID       string                       `bson:"property_id"`
	HostID           string                       `bson:"host_id"`
	GuestID          string                       `bson:"guest_id"`
	Range            rangeDocument                `bson:"range"`
	Guests           int                          `bson:"guests"`
	Price            domainpricing.PriceBreakdown `bson:"price"`
	State            string                       `bson:"state"`
	PaymentIntentRef string                       `bson:"payment_intent_ref,omitempty"`
	CouponCode       string                       `bson:"coupon_code,omitempty"`
	CreatedAt        int64                        `bson:"created_at"`
	UpdatedAt        int64                        `bson:"updated_at"`
	Version          int64                        `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:               string(b.ID),
		PropertyID:       string(b.PropertyID),
		HostID:           string(b.HostID),
		GuestID:          b.GuestID,
		Range:            rangeDocument{CheckIn: b.Range.CheckIn.UnixMilli(), CheckOut: b.Range.CheckOut.UnixMilli()},
		Guests:           b.Guests,
		Price:            b.Price,
		State:            string(b.State),
		PaymentIntentRef: b.PaymentIntentRef,
		CouponCode:       b.CouponCode,
		CreatedAt:        b.CreatedAt.UnixMilli(),
		UpdatedAt:        b.UpdatedAt.UnixMilli(),
		Version:          b.Version,
	}
}

func (d bookingDocument) toAggregate() (*domainbooking.Booking, error) {
	dr := domainrange.DateRange{CheckIn: timestampToTime(d.Range.CheckIn), CheckOut: timestampToTime(d.Range.CheckOut)}
	agg := &domainbooking.Booking{
		ID:               domainbooking.BookingID(d.ID),
		PropertyID:       domainproperty.PropertyID(d.PropertyID),
		HostID:           domainproperty.HostID(d.HostID),
		GuestID:          d.GuestID,
		Range:            dr,
		Guests:           d.Guests,
		Price:            d.Price,
		State:            domainbooking.BookingState(d.State),
		PaymentIntentRef: d.PaymentIntentRef,
		CouponCode:       d.CouponCode,
		CreatedAt:        timestampToTime(d.CreatedAt),
		UpdatedAt:        timestampToTime(d.UpdatedAt),
		Version:          d.Version,
	}
	return agg, nil
}

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

// nightDocument is a per-night lock. Its _id is the (property, night) pair,
// so holding a night means owning that _id.
type nightDocument struct {
	ID         string `bson:"_id"`
	BookingID  string `bson:"booking_id"`
	PropertyID string `bson:"property_id"`
}

// nightKeys enumerates the lock ids a booking must hold, one per night of the
// half-open range. The check-out day is excluded, so back-to-back bookings
// share no key.
func nightKeys(propertyID domainproperty.PropertyID, dr domainrange.DateRange) []string {
	keys := make([]string, 0, dr.Nights())
	for d := dr.CheckIn; d.Before(dr.CheckOut); d = d.AddDate(0, 0, 1) {
		keys = append(keys, string(propertyID)+":"+d.Format("2006-01-02"))
	}
	return keys
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

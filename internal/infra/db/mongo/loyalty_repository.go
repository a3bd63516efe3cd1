package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staybook/internal/domain/booking"
	domainloyalty "staybook/internal/domain/loyalty"
)

type LoyaltyRepository struct {
	col *mongo.Collection
}

func NewLoyaltyRepository(db *mongo.Database) *LoyaltyRepository {
	return &LoyaltyRepository{col: db.Collection("loyalty_ledger")}
}

func (r *LoyaltyRepository) Append(ctx context.Context, tx *domainloyalty.Transaction) error {
	_, err := r.col.InsertOne(ctx, newLoyaltyDocument(tx))
	return err
}

// BalanceOf aggregates the running sum server-side; no stored counter exists
// to drift from the ledger.
func (r *LoyaltyRepository) BalanceOf(ctx context.Context, userID string) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"balance": bson.M{"$sum": bson.M{"$subtract": []string{"$earned", "$redeemed"}}},
		}}},
	}
	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var result struct {
		Balance int64 `bson:"balance"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&result); err != nil {
			return 0, err
		}
	}
	return result.Balance, cursor.Err()
}

func (r *LoyaltyRepository) ListByUser(ctx context.Context, userID string) ([]*domainloyalty.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var result []*domainloyalty.Transaction
	for cursor.Next(ctx) {
		var doc loyaltyDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, doc.toTransaction())
	}
	return result, cursor.Err()
}

type loyaltyDocument struct {
	ID        string `bson:"_id"`
	UserID    string `bson:"user_id"`
	Earned    int64  `bson:"earned"`
	Redeemed  int64  `bson:"redeemed"`
	BookingID string `bson:"booking_id,omitempty"`
	ReviewID  string `bson:"review_id,omitempty"`
	Reason    string `bson:"reason"`
	At        int64  `bson:"at"`
}

func newLoyaltyDocument(tx *domainloyalty.Transaction) loyaltyDocument {
	return loyaltyDocument{
		ID:        string(tx.ID),
		UserID:    tx.UserID,
		Earned:    tx.Earned,
		Redeemed:  tx.Redeemed,
		BookingID: string(tx.BookingID),
		ReviewID:  tx.ReviewID,
		Reason:    string(tx.Reason),
		At:        tx.At.UnixMilli(),
	}
}

func (d loyaltyDocument) toTransaction() *domainloyalty.Transaction {
	return &domainloyalty.Transaction{
		ID:        domainloyalty.TransactionID(d.ID),
		UserID:    d.UserID,
		Earned:    d.Earned,
		Redeemed:  d.Redeemed,
		BookingID: domainbooking.BookingID(d.BookingID),
		ReviewID:  d.ReviewID,
		Reason:    domainloyalty.Reason(d.Reason),
		At:        timestampToTime(d.At),
	}
}

package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the repositories' atomicity guarantees
// depend on. Safe to call on every startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database, idempotencyTTL time.Duration) error {
	bookingIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "payment_intent_ref", Value: 1}}, Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"payment_intent_ref": bson.M{"$type": "string"}})},
		{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "range.check_in", Value: 1}, {Key: "range.check_out", Value: 1}}},
		{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := db.Collection("agg_booking").Indexes().CreateMany(ctx, bookingIdx); err != nil {
		return err
	}

	// Night locks are keyed by _id; this index only serves the release
	// delete on cancellation.
	nightIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}}},
	}
	if _, err := db.Collection("booking_nights").Indexes().CreateMany(ctx, nightIdx); err != nil {
		return err
	}

	couponIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := db.Collection("coupons").Indexes().CreateMany(ctx, couponIdx); err != nil {
		return err
	}

	// One redemption per (coupon, user); the Redeem insert relies on this.
	redemptionIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "coupon_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := db.Collection("coupon_redemptions").Indexes().CreateMany(ctx, redemptionIdx); err != nil {
		return err
	}

	// One payout per booking; Insert's duplicate-key path relies on this.
	payoutIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := db.Collection("payouts").Indexes().CreateMany(ctx, payoutIdx); err != nil {
		return err
	}

	loyaltyIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "at", Value: -1}}},
	}
	if _, err := db.Collection("loyalty_ledger").Indexes().CreateMany(ctx, loyaltyIdx); err != nil {
		return err
	}

	outboxIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "next_retry", Value: 1}}},
	}
	if _, err := db.Collection("outbox_events").Indexes().CreateMany(ctx, outboxIdx); err != nil {
		return err
	}

	if idempotencyTTL > 0 {
		ttlIdx := mongo.IndexModel{
			Keys:    bson.D{{Key: "occurred_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(idempotencyTTL.Seconds())),
		}
		if _, err := db.Collection("idempotency_keys").Indexes().CreateOne(ctx, ttlIdx); err != nil {
			return err
		}
	}
	return nil
}

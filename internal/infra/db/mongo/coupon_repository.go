package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	domaincoupon "staybook/internal/domain/coupon"
	"staybook/internal/domain/shared/money"
)

type CouponRepository struct {
	coupons     *mongo.Collection
	redemptions *mongo.Collection
}

func NewCouponRepository(db *mongo.Database) *CouponRepository {
	return &CouponRepository{
		coupons:     db.Collection("coupons"),
		redemptions: db.Collection("coupon_redemptions"),
	}
}

func (r *CouponRepository) ByCode(ctx context.Context, code string) (*domaincoupon.Coupon, error) {
	var doc couponDocument
	filter := bson.M{"code": domaincoupon.NormalizeCode(code)}
	if err := r.coupons.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaincoupon.ErrCouponNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *CouponRepository) HasRedemption(ctx context.Context, id domaincoupon.CouponID, userID string) (bool, error) {
	filter := bson.M{"coupon_id": string(id), "user_id": userID}
	count, err := r.redemptions.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Redeem performs the guarded increment and the redemption insert inside the
// caller's session transaction. The increment filter requires a free slot, so
// of N concurrent redeemers on a coupon with one use left exactly one
// matches; the unique (coupon_id, user_id) index backstops per-user
// uniqueness.
func (r *CouponRepository) Redeem(ctx context.Context, id domaincoupon.CouponID, redemption domaincoupon.Redemption) error {
	filter := bson.M{
		"_id": string(id),
		"$or": []bson.M{
			{"max_uses": bson.M{"$lte": 0}},
			{"$expr": bson.M{"$lt": []string{"$uses", "$max_uses"}}},
		},
	}
	res, err := r.coupons.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"uses": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domaincoupon.ErrExhausted
	}
	doc := redemptionDocument{
		CouponID: string(id),
		UserID:   redemption.UserID,
		Amount:   redemption.Amount,
		At:       redemption.At.UnixMilli(),
	}
	if _, err := r.redemptions.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domaincoupon.ErrAlreadyRedeemed
		}
		return err
	}
	return nil
}

type couponDocument struct {
	ID         string      `bson:"_id"`
	Code       string      `bson:"code"`
	Kind       string      `bson:"kind"`
	Value      int64       `bson:"value"`
	ValidFrom  int64       `bson:"valid_from,omitempty"`
	ValidTo    int64       `bson:"valid_to,omitempty"`
	MaxUses    int64       `bson:"max_uses"`
	Uses       int64       `bson:"uses"`
	MinBooking money.Money `bson:"min_booking"`
	Active     bool        `bson:"active"`
}

func (d couponDocument) toAggregate() *domaincoupon.Coupon {
	c := &domaincoupon.Coupon{
		ID:         domaincoupon.CouponID(d.ID),
		Code:       d.Code,
		Kind:       domaincoupon.DiscountKind(d.Kind),
		Value:      d.Value,
		MaxUses:    d.MaxUses,
		Uses:       d.Uses,
		MinBooking: d.MinBooking,
		Active:     d.Active,
	}
	if d.ValidFrom != 0 {
		c.ValidFrom = time.UnixMilli(d.ValidFrom).UTC()
	}
	if d.ValidTo != 0 {
		c.ValidTo = time.UnixMilli(d.ValidTo).UTC()
	}
	return c
}

type redemptionDocument struct {
	CouponID string      `bson:"coupon_id"`
	UserID   string      `bson:"user_id"`
	Amount   money.Money `bson:"amount"`
	At       int64       `bson:"at"`
}

package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	domainbooking "staybook/internal/domain/booking"
	domaincoupon "staybook/internal/domain/coupon"
	domainloyalty "staybook/internal/domain/loyalty"
	domainpayments "staybook/internal/domain/payments"
	domainpayout "staybook/internal/domain/payout"
	domainproperty "staybook/internal/domain/property"
	domainrange "staybook/internal/domain/shared/daterange"
)

// ErrConcurrentUpdate reports a version mismatch on Save, mirroring the
// optimistic-lock failure the mongo repositories surface.
var ErrConcurrentUpdate = errors.New("memory: concurrent update")

// PropertyRepository is an in-memory implementation for dev and tests.
type PropertyRepository struct {
	mu    sync.RWMutex
	items map[domainproperty.PropertyID]*domainproperty.Property
}

func NewPropertyRepository() *PropertyRepository {
	return &PropertyRepository{items: make(map[domainproperty.PropertyID]*domainproperty.Property)}
}

func (r *PropertyRepository) ByID(ctx context.Context, id domainproperty.PropertyID) (*domainproperty.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prop, ok := r.items[id]
	if !ok {
		return nil, domainproperty.ErrNotFound
	}
	return prop, nil
}

func (r *PropertyRepository) Save(ctx context.Context, prop *domainproperty.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[prop.ID] = prop
	return nil
}

// BookingRepository stores bookings in memory. One mutex covers the overlap
// check and the insert, which is what makes InsertNew the availability
// backstop the creation flow relies on.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]*domainbooking.Booking)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	clone := *b
	return &clone, nil
}

func (r *BookingRepository) ByPaymentRef(ctx context.Context, ref string) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ref == "" {
		return nil, domainbooking.ErrBookingNotFound
	}
	for _, b := range r.items {
		if b.PaymentIntentRef == ref {
			clone := *b
			return &clone, nil
		}
	}
	return nil, domainbooking.ErrBookingNotFound
}

func (r *BookingRepository) InsertNew(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.PropertyID != b.PropertyID || !existing.State.Blocking() {
			continue
		}
		if existing.Range.Overlaps(b.Range) {
			return domainbooking.ErrDateConflict
		}
	}
	clone := *b
	clone.Version = 1
	r.items[b.ID] = &clone
	b.Version = 1
	return nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[b.ID]
	if !ok {
		return domainbooking.ErrBookingNotFound
	}
	if current.Version != b.Version {
		return ErrConcurrentUpdate
	}
	clone := *b
	clone.Version = b.Version + 1
	r.items[b.ID] = &clone
	b.Version = clone.Version
	return nil
}

func (r *BookingRepository) AnyOverlapping(ctx context.Context, propertyID domainproperty.PropertyID, dr domainrange.DateRange) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.items {
		if b.PropertyID != propertyID || !b.State.Blocking() {
			continue
		}
		if b.Range.Overlaps(dr) {
			return true, nil
		}
	}
	return false, nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if b.GuestID == guestID {
			clone := *b
			matches = append(matches, &clone)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

// CouponRepository keeps coupons and their redemptions under one mutex so
// Redeem stays a single atomic increment-and-insert.
type CouponRepository struct {
	mu          sync.Mutex
	byCode      map[string]*domaincoupon.Coupon
	redemptions map[string]domaincoupon.Redemption
}

func NewCouponRepository() *CouponRepository {
	return &CouponRepository{
		byCode:      make(map[string]*domaincoupon.Coupon),
		redemptions: make(map[string]domaincoupon.Redemption),
	}
}

// Seed installs a coupon definition, keyed by its normalized code.
func (r *CouponRepository) Seed(c *domaincoupon.Coupon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Code = domaincoupon.NormalizeCode(c.Code)
	r.byCode[c.Code] = c
}

func (r *CouponRepository) ByCode(ctx context.Context, code string) (*domaincoupon.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byCode[domaincoupon.NormalizeCode(code)]
	if !ok {
		return nil, domaincoupon.ErrCouponNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *CouponRepository) HasRedemption(ctx context.Context, id domaincoupon.CouponID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.redemptions[redemptionKey(id, userID)]
	return ok, nil
}

func (r *CouponRepository) Redeem(ctx context.Context, id domaincoupon.CouponID, redemption domaincoupon.Redemption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var target *domaincoupon.Coupon
	for _, c := range r.byCode {
		if c.ID == id {
			target = c
			break
		}
	}
	if target == nil {
		return domaincoupon.ErrCouponNotFound
	}
	key := redemptionKey(id, redemption.UserID)
	if _, ok := r.redemptions[key]; ok {
		return domaincoupon.ErrAlreadyRedeemed
	}
	if target.Exhausted() {
		return domaincoupon.ErrExhausted
	}
	target.Uses++
	r.redemptions[key] = redemption
	return nil
}

func redemptionKey(id domaincoupon.CouponID, userID string) string {
	return string(id) + ":" + strings.TrimSpace(userID)
}

// LoyaltyRepository is the in-memory append-only ledger.
type LoyaltyRepository struct {
	mu      sync.RWMutex
	entries []*domainloyalty.Transaction
}

func NewLoyaltyRepository() *LoyaltyRepository {
	return &LoyaltyRepository{}
}

func (r *LoyaltyRepository) Append(ctx context.Context, tx *domainloyalty.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *tx
	r.entries = append(r.entries, &clone)
	return nil
}

func (r *LoyaltyRepository) BalanceOf(ctx context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var balance int64
	for _, tx := range r.entries {
		if tx.UserID == userID {
			balance += tx.Earned - tx.Redeemed
		}
	}
	return balance, nil
}

func (r *LoyaltyRepository) ListByUser(ctx context.Context, userID string) ([]*domainloyalty.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainloyalty.Transaction, 0)
	for _, tx := range r.entries {
		if tx.UserID == userID {
			clone := *tx
			matches = append(matches, &clone)
		}
	}
	return matches, nil
}

// PayoutRepository enforces one payout per booking.
type PayoutRepository struct {
	mu        sync.Mutex
	byBooking map[domainbooking.BookingID]*domainpayout.Payout
}

func NewPayoutRepository() *PayoutRepository {
	return &PayoutRepository{byBooking: make(map[domainbooking.BookingID]*domainpayout.Payout)}
}

func (r *PayoutRepository) Insert(ctx context.Context, p *domainpayout.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byBooking[p.BookingID]; ok {
		return domainpayout.ErrAlreadyDerived
	}
	clone := *p
	r.byBooking[p.BookingID] = &clone
	return nil
}

func (r *PayoutRepository) ByBooking(ctx context.Context, id domainbooking.BookingID) (*domainpayout.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byBooking[id]
	if !ok {
		return nil, domainpayout.ErrPayoutNotFound
	}
	clone := *p
	return &clone, nil
}

// WebhookEventLog is the in-memory processed-event log.
type WebhookEventLog struct {
	mu   sync.Mutex
	seen map[string]domainpayments.ProcessedRecord
}

func NewWebhookEventLog() *WebhookEventLog {
	return &WebhookEventLog{seen: make(map[string]domainpayments.ProcessedRecord)}
}

func (l *WebhookEventLog) Claim(ctx context.Context, rec domainpayments.ProcessedRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[rec.EventID]; ok {
		return domainpayments.ErrEventAlreadyProcessed
	}
	l.seen[rec.EventID] = rec
	return nil
}

func (l *WebhookEventLog) Seen(ctx context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[eventID]
	return ok, nil
}

package dto

import (
	"time"

	domainloyalty "staybook/internal/domain/loyalty"
)

type LoyaltyEntry struct {
	ID        string    `json:"id"`
	Earned    int64     `json:"earned,omitempty"`
	Redeemed  int64     `json:"redeemed,omitempty"`
	Reason    string    `json:"reason"`
	BookingID string    `json:"booking_id,omitempty"`
	ReviewID  string    `json:"review_id,omitempty"`
	At        time.Time `json:"at"`
}

type LoyaltyStatement struct {
	Balance int64          `json:"balance"`
	Entries []LoyaltyEntry `json:"entries"`
}

func MapLoyaltyEntry(tx *domainloyalty.Transaction) LoyaltyEntry {
	return LoyaltyEntry{
		ID:        string(tx.ID),
		Earned:    tx.Earned,
		Redeemed:  tx.Redeemed,
		Reason:    string(tx.Reason),
		BookingID: string(tx.BookingID),
		ReviewID:  tx.ReviewID,
		At:        tx.At,
	}
}

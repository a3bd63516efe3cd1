package memory

import (
	"context"
	"fmt"
	"sync"

	"staybook/internal/app/policies"
	domainpayments "staybook/internal/domain/payments"
	"staybook/internal/domain/shared/money"
)

// PaymentsStub satisfies the gateway port without talking to a real gateway.
// Intent refs are deterministic per booking so retried calls return the same
// intent, matching the idempotency contract of the HTTP adapter.
type PaymentsStub struct {
	mu      sync.Mutex
	intents map[string]domainpayments.Intent

	// FailNext forces the next OpenIntent call to fail, for exercising the
	// gateway-down path.
	FailNext bool
}

func NewPaymentsStub() *PaymentsStub {
	return &PaymentsStub{intents: make(map[string]domainpayments.Intent)}
}

func (s *PaymentsStub) OpenIntent(ctx context.Context, bookingID string, amount money.Money) (domainpayments.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext {
		s.FailNext = false
		return domainpayments.Intent{}, domainpayments.ErrIntentCreateFailed
	}
	if intent, ok := s.intents[bookingID]; ok {
		return intent, nil
	}
	intent := domainpayments.Intent{
		Ref:          fmt.Sprintf("pi_stub_%s", bookingID),
		ClientSecret: fmt.Sprintf("secret_%s", bookingID),
	}
	s.intents[bookingID] = intent
	return intent, nil
}

var _ policies.PaymentsPort = (*PaymentsStub)(nil)

// ReceiptArchive records receipts in memory.
type ReceiptArchive struct {
	mu       sync.Mutex
	receipts []policies.Receipt
}

func NewReceiptArchive() *ReceiptArchive {
	return &ReceiptArchive{}
}

func (a *ReceiptArchive) Store(ctx context.Context, receipt policies.Receipt) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.receipts = append(a.receipts, receipt)
	return fmt.Sprintf("memory://receipts/%s.json", receipt.BookingID), nil
}

// Stored returns a snapshot of archived receipts.
func (a *ReceiptArchive) Stored() []policies.Receipt {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]policies.Receipt, len(a.receipts))
	copy(out, a.receipts)
	return out
}

var _ policies.ReceiptArchive = (*ReceiptArchive)(nil)

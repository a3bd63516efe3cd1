package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainloyalty "staybook/internal/domain/loyalty"
	domainpayments "staybook/internal/domain/payments"
	domainpayout "staybook/internal/domain/payout"
)

const ingestEventKey = "reconcile.ingest"

// Outcome tells the webhook endpoint how the event was absorbed. Every
// outcome is acknowledged to the gateway; only transport-level failures
// (commit errors) bubble up so the gateway redelivers.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeAnomaly   Outcome = "anomaly"
)

type IngestEventCommand struct {
	EventID   string
	Type      string
	IntentRef string
}

func (c IngestEventCommand) Key() string { return ingestEventKey }

type IngestEventResult struct {
	Outcome   Outcome `json:"outcome"`
	BookingID string  `json:"booking_id,omitempty"`
}

// IngestEventHandler drives the booking state machine from gateway webhook
// events. The processed-event claim, the transition and its first-order side
// effects (payout derivation, loyalty accrual) share one transaction: they
// commit together or the claim rolls back and the gateway's redelivery gets
// another clean attempt.
type IngestEventHandler struct {
	UoWFactory uow.UoWFactory
	Rates      domainpayout.Rates
	Receipts   policies.ReceiptArchive
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

func (h *IngestEventHandler) Handle(ctx context.Context, cmd IngestEventCommand) (*IngestEventResult, error) {
	unit, execCtx, commit, cleanup, err := support.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	now := time.Now().UTC()

	result, err := h.process(execCtx, unit, cmd, now)
	if err != nil {
		return nil, err
	}
	if commit != nil {
		if err := commit(execCtx); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (h *IngestEventHandler) process(ctx context.Context, unit uow.UnitOfWork, cmd IngestEventCommand, now time.Time) (*IngestEventResult, error) {
	claim := domainpayments.ProcessedRecord{
		EventID:     cmd.EventID,
		Type:        cmd.Type,
		IntentRef:   cmd.IntentRef,
		Outcome:     string(OutcomeProcessed),
		ProcessedAt: now,
	}
	if err := unit.WebhookEvents().Claim(ctx, claim); err != nil {
		if errors.Is(err, domainpayments.ErrEventAlreadyProcessed) {
			h.log().Debug("duplicate webhook event absorbed", "event_id", cmd.EventID)
			return &IngestEventResult{Outcome: OutcomeDuplicate}, nil
		}
		return nil, err
	}

	b, err := unit.Bookings().ByPaymentRef(ctx, cmd.IntentRef)
	if err != nil {
		if errors.Is(err, domainbooking.ErrBookingNotFound) {
			// Unknown references are acknowledged so the gateway stops
			// retrying events we intentionally ignore.
			h.log().Info("webhook event references no booking", "event_id", cmd.EventID, "intent_ref", cmd.IntentRef)
			return &IngestEventResult{Outcome: OutcomeIgnored}, nil
		}
		return nil, err
	}

	switch cmd.Type {
	case domainpayments.EventIntentSucceeded:
		return h.confirm(ctx, unit, b, cmd, now)
	case domainpayments.EventIntentFailed, domainpayments.EventIntentCanceled:
		return h.cancel(ctx, unit, b, cmd, now)
	default:
		h.log().Info("unrecognized webhook event type acknowledged", "event_id", cmd.EventID, "type", cmd.Type)
		return &IngestEventResult{Outcome: OutcomeIgnored, BookingID: string(b.ID)}, nil
	}
}

func (h *IngestEventHandler) confirm(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking, cmd IngestEventCommand, now time.Time) (*IngestEventResult, error) {
	transitioned, err := b.Confirm(now)
	if err != nil {
		if errors.Is(err, domainbooking.ErrReconciliationAnomaly) {
			return h.anomaly(ctx, b, cmd, now)
		}
		return nil, err
	}
	if !transitioned {
		// Redelivered success after an earlier confirmation under a
		// different event id: the booking is already settled.
		return &IngestEventResult{Outcome: OutcomeDuplicate, BookingID: string(b.ID)}, nil
	}

	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}

	// Exactly-once side effects are gated on the transition having actually
	// happened inside this same transaction, not on retry-safe writes alone.
	pay, err := domainpayout.Derive(domainpayout.PayoutID(uuid.NewString()), b, h.Rates, now)
	if err != nil {
		return nil, err
	}
	if err := unit.Payouts().Insert(ctx, pay); err != nil && !errors.Is(err, domainpayout.ErrAlreadyDerived) {
		return nil, err
	}
	accrual := domainloyalty.AccrueForBooking(domainloyalty.TransactionID(uuid.NewString()), b, now)
	if accrual.Earned > 0 {
		if err := unit.Loyalty().Append(ctx, accrual); err != nil {
			return nil, err
		}
	}

	h.archiveReceipt(ctx, b, now)

	if err := h.recordEvents(ctx, b); err != nil {
		return nil, err
	}
	return &IngestEventResult{Outcome: OutcomeProcessed, BookingID: string(b.ID)}, nil
}

func (h *IngestEventHandler) cancel(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking, cmd IngestEventCommand, now time.Time) (*IngestEventResult, error) {
	transitioned, err := b.Cancel("payment "+cmd.Type, now)
	if err != nil {
		if errors.Is(err, domainbooking.ErrReconciliationAnomaly) {
			return h.anomaly(ctx, b, cmd, now)
		}
		return nil, err
	}
	if !transitioned {
		return &IngestEventResult{Outcome: OutcomeDuplicate, BookingID: string(b.ID)}, nil
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := h.recordEvents(ctx, b); err != nil {
		return nil, err
	}
	return &IngestEventResult{Outcome: OutcomeProcessed, BookingID: string(b.ID)}, nil
}

// anomaly surfaces a transition that conflicts with the booking's terminal
// state. The event stays claimed and acknowledged, but the conflict is logged
// and an alert event goes out for operator attention; it is never silently
// dropped.
func (h *IngestEventHandler) anomaly(ctx context.Context, b *domainbooking.Booking, cmd IngestEventCommand, now time.Time) (*IngestEventResult, error) {
	h.log().Error("reconciliation anomaly: webhook transition illegal from terminal state",
		"booking_id", b.ID, "state", b.State, "event_id", cmd.EventID, "event_type", cmd.Type)
	alert := domainbooking.ReconciliationAnomalyDetected{
		BookingID: b.ID,
		EventID:   cmd.EventID,
		EventType: cmd.Type,
		State:     b.State,
		At:        now,
	}
	if h.Outbox != nil {
		payload, err := h.encoder().Encode(alert)
		if err != nil {
			return nil, err
		}
		record := outbox.EventRecord{
			ID:         uuid.NewString(),
			Name:       alert.EventName(),
			Aggregate:  alert.AggregateID(),
			Payload:    payload,
			OccurredAt: now,
		}
		if err := h.Outbox.Add(ctx, record); err != nil {
			return nil, err
		}
	}
	return &IngestEventResult{Outcome: OutcomeAnomaly, BookingID: string(b.ID)}, nil
}

// archiveReceipt is best effort: a failed upload is logged, never rolled into
// the transaction outcome.
func (h *IngestEventHandler) archiveReceipt(ctx context.Context, b *domainbooking.Booking, now time.Time) {
	if h.Receipts == nil {
		return
	}
	receipt := policies.Receipt{
		BookingID:   b.ID,
		GuestID:     b.GuestID,
		Total:       b.Price.Total,
		ConfirmedAt: now,
	}
	if _, err := h.Receipts.Store(ctx, receipt); err != nil {
		h.log().Warn("receipt archive failed", "booking_id", b.ID, "error", err)
	}
}

func (h *IngestEventHandler) recordEvents(ctx context.Context, b *domainbooking.Booking) error {
	pending := b.PendingEvents()
	b.ClearEvents()
	return outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), pending)
}

func (h *IngestEventHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *IngestEventHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ commands.Handler[IngestEventCommand, *IngestEventResult] = (*IngestEventHandler)(nil)

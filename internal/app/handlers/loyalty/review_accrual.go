package loyalty

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/uow"
	domainloyalty "staybook/internal/domain/loyalty"
	domainpayments "staybook/internal/domain/payments"
)

const (
	accrueReviewKey  = "loyalty.accrue_review"
	reviewEventType  = "review.submitted.v1"
	reviewClaimScope = "review.submitted:"
)

type AccrueReviewCommand struct {
	ReviewID string
	AuthorID string
	Rating   int
}

func (c AccrueReviewCommand) Key() string { return accrueReviewKey }

type AccrueReviewResult struct {
	TransactionID string `json:"transaction_id"`
	Earned        int64  `json:"earned"`
}

// AccrueReviewHandler grants review points off the review-service event
// stream. Reviews themselves live outside this service; only the ledger
// effect lands here. The stream delivers at least once, so the review id is
// claimed in the processed-event log inside the same unit as the ledger
// append; a redelivered review becomes an acked no-op.
type AccrueReviewHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *AccrueReviewHandler) Handle(ctx context.Context, cmd AccrueReviewCommand) (*AccrueReviewResult, error) {
	points := domainloyalty.ReviewPoints(cmd.Rating)
	if points == 0 {
		return &AccrueReviewResult{}, nil
	}
	unit, execCtx, commit, cleanup, err := support.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	claim := domainpayments.ProcessedRecord{
		EventID:     reviewClaimScope + cmd.ReviewID,
		Type:        reviewEventType,
		Outcome:     "processed",
		ProcessedAt: time.Now().UTC(),
	}
	if err := unit.WebhookEvents().Claim(execCtx, claim); err != nil {
		if errors.Is(err, domainpayments.ErrEventAlreadyProcessed) {
			return &AccrueReviewResult{}, nil
		}
		return nil, err
	}

	tx := domainloyalty.AccrueForReview(
		domainloyalty.TransactionID(uuid.NewString()),
		cmd.AuthorID, cmd.ReviewID, cmd.Rating, time.Now(),
	)
	if err := unit.Loyalty().Append(execCtx, tx); err != nil {
		return nil, err
	}
	if commit != nil {
		if err := commit(execCtx); err != nil {
			return nil, err
		}
	}
	return &AccrueReviewResult{TransactionID: string(tx.ID), Earned: tx.Earned}, nil
}

var _ commands.Handler[AccrueReviewCommand, *AccrueReviewResult] = (*AccrueReviewHandler)(nil)

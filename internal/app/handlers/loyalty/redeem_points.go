package loyalty

import (
	"context"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/uow"
	domainloyalty "staybook/internal/domain/loyalty"
)

const redeemPointsKey = "loyalty.redeem"

type RedeemPointsCommand struct {
	UserID string
	Points int64
}

func (c RedeemPointsCommand) Key() string { return redeemPointsKey }

type RedeemPointsResult struct {
	TransactionID string `json:"transaction_id"`
	Redeemed      int64  `json:"redeemed"`
	Balance       int64  `json:"balance"`
}

// RedeemPointsHandler spends loyalty points. The balance read and the ledger
// append share the unit of work so concurrent redemptions cannot overdraw.
type RedeemPointsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *RedeemPointsHandler) Handle(ctx context.Context, cmd RedeemPointsCommand) (*RedeemPointsResult, error) {
	unit, execCtx, commit, cleanup, err := support.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	balance, err := unit.Loyalty().BalanceOf(execCtx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	tx, err := domainloyalty.Redeem(
		domainloyalty.TransactionID(uuid.NewString()),
		cmd.UserID, cmd.Points, balance, time.Now(),
	)
	if err != nil {
		return nil, err
	}
	if err := unit.Loyalty().Append(execCtx, tx); err != nil {
		return nil, err
	}
	if commit != nil {
		if err := commit(execCtx); err != nil {
			return nil, err
		}
	}
	return &RedeemPointsResult{
		TransactionID: string(tx.ID),
		Redeemed:      tx.Redeemed,
		Balance:       balance - tx.Redeemed,
	}, nil
}

var _ commands.Handler[RedeemPointsCommand, *RedeemPointsResult] = (*RedeemPointsHandler)(nil)

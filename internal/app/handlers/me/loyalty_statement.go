package me

import (
	"context"
	"errors"
	"strings"

	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
)

const loyaltyStatementKey = "me.loyalty.statement"

type LoyaltyStatementQuery struct {
	UserID string
}

func (q LoyaltyStatementQuery) Key() string { return loyaltyStatementKey }

// LoyaltyStatementHandler reads the ledger; the balance is computed as the
// running sum, never read off a stored counter.
type LoyaltyStatementHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *LoyaltyStatementHandler) Handle(ctx context.Context, q LoyaltyStatementQuery) (dto.LoyaltyStatement, error) {
	userID := strings.TrimSpace(q.UserID)
	if userID == "" {
		return dto.LoyaltyStatement{}, errors.New("user id is required")
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.LoyaltyStatement{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	balance, err := unit.Loyalty().BalanceOf(execCtx, userID)
	if err != nil {
		return dto.LoyaltyStatement{}, err
	}
	entries, err := unit.Loyalty().ListByUser(execCtx, userID)
	if err != nil {
		return dto.LoyaltyStatement{}, err
	}
	statement := dto.LoyaltyStatement{Balance: balance, Entries: make([]dto.LoyaltyEntry, 0, len(entries))}
	for _, tx := range entries {
		statement.Entries = append(statement.Entries, dto.MapLoyaltyEntry(tx))
	}
	return statement, nil
}

var _ queries.Handler[LoyaltyStatementQuery, dto.LoyaltyStatement] = (*LoyaltyStatementHandler)(nil)

package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	loyaltyapp "staybook/internal/app/handlers/loyalty"
	meapp "staybook/internal/app/handlers/me"
	"staybook/internal/app/queries"
)

type MeHandler struct {
	Queries  queries.Bus
	Commands commands.Bus
	Logger   *slog.Logger
}

func (h MeHandler) ListBookings(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Queries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queries unavailable"})
		return
	}
	query := meapp.ListGuestBookingsQuery{GuestID: user.ID}
	result, err := queries.Ask[meapp.ListGuestBookingsQuery, dto.GuestBookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("me bookings query failed", "error", err, "user_id", user.ID)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": codeInternal, "error": "failed to load bookings"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h MeHandler) LoyaltyStatement(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Queries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queries unavailable"})
		return
	}
	query := meapp.LoyaltyStatementQuery{UserID: user.ID}
	result, err := queries.Ask[meapp.LoyaltyStatementQuery, dto.LoyaltyStatement](c.Request.Context(), h.Queries, query)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("loyalty statement query failed", "error", err, "user_id", user.ID)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": codeInternal, "error": "failed to load loyalty statement"})
		return
	}
	c.JSON(http.StatusOK, result)
}

type redeemPointsRequest struct {
	Points int64 `json:"points"`
}

func (h MeHandler) RedeemPoints(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "commands unavailable"})
		return
	}
	var req redeemPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": err.Error()})
		return
	}
	cmd := loyaltyapp.RedeemPointsCommand{UserID: user.ID, Points: req.Points}
	result, err := commands.Dispatch[loyaltyapp.RedeemPointsCommand, *loyaltyapp.RedeemPointsResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ MeHTTP = MeHandler{}

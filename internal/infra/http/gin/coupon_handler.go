package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	couponapp "staybook/internal/app/handlers/coupons"
)

type CouponHandler struct {
	Commands commands.Bus
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

func (h CouponHandler) Apply(c *gin.Context) {
	user, ok := requireRole(c, RoleGuest)
	if !ok {
		return
	}
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "commands unavailable"})
		return
	}
	var req applyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": err.Error()})
		return
	}
	cmd := couponapp.ApplyCouponCommand{
		Code:      req.Code,
		BookingID: c.Param("id"),
		GuestID:   user.ID,
	}
	result, err := commands.Dispatch[couponapp.ApplyCouponCommand, *couponapp.ApplyCouponResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ CouponHTTP = CouponHandler{}

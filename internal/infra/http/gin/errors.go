package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	couponapp "staybook/internal/app/handlers/coupons"
	domainbooking "staybook/internal/domain/booking"
	domaincoupon "staybook/internal/domain/coupon"
	domainloyalty "staybook/internal/domain/loyalty"
	domainpayments "staybook/internal/domain/payments"
	domainproperty "staybook/internal/domain/property"
	domainrange "staybook/internal/domain/shared/daterange"
)

// Stable error codes surfaced to API clients. Message text may change; codes
// may not.
const (
	codeValidation     = "VALIDATION"
	codeNotFound       = "NOT_FOUND"
	codeForbidden      = "FORBIDDEN"
	codeDateConflict   = "AVAILABILITY_CONFLICT"
	codeNotCancellable = "BOOKING_NOT_CANCELLABLE"
	codeNotPending     = "BOOKING_NOT_PENDING"
	codeCouponApplied  = "COUPON_ALREADY_APPLIED"
	codeGatewayFailed  = "PAYMENT_GATEWAY"
	codeInternal       = "INTERNAL"
)

// writeError maps a command error onto the API's {code, error} envelope.
func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	c.JSON(status, gin.H{"code": code, "error": err.Error()})
}

func classify(err error) (int, string) {
	var rejection *domaincoupon.RejectionError
	if errors.As(err, &rejection) {
		return http.StatusUnprocessableEntity, rejection.Code
	}

	switch {
	case errors.Is(err, domainbooking.ErrDateConflict):
		return http.StatusConflict, codeDateConflict
	case errors.Is(err, domainbooking.ErrBookingNotFound),
		errors.Is(err, domainproperty.ErrNotFound),
		errors.Is(err, domaincoupon.ErrCouponNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, domainbooking.ErrNotOwner):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, domainbooking.ErrCancelOnlyWhilePending):
		return http.StatusConflict, codeNotCancellable
	case errors.Is(err, couponapp.ErrBookingNotPending):
		return http.StatusConflict, codeNotPending
	case errors.Is(err, couponapp.ErrCouponAlreadyApplied):
		return http.StatusConflict, codeCouponApplied
	case errors.Is(err, domainpayments.ErrIntentCreateFailed):
		return http.StatusBadGateway, codeGatewayFailed
	case errors.Is(err, domainrange.ErrInvalidRange),
		errors.Is(err, domainbooking.ErrCheckInInPast),
		errors.Is(err, domainbooking.ErrInvalidGuests),
		errors.Is(err, domainloyalty.ErrInsufficientBalance):
		return http.StatusBadRequest, codeValidation
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

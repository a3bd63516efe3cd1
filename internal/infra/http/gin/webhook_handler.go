package ginserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	reconcileapp "staybook/internal/app/handlers/reconcile"
	infrapayments "staybook/internal/infra/payments"
)

const maxWebhookBodyBytes = 1 << 20

// WebhookHandler is the gateway-facing ingress. Signature verification
// happens on the raw body before any parsing; once an event is recorded the
// endpoint acknowledges with 200 even when the event is a duplicate, refers
// to an unknown intent or conflicts with a terminal state. A non-2xx answer
// is reserved for failures where redelivery can still help.
type WebhookHandler struct {
	Commands commands.Bus
	Verifier infrapayments.SignatureVerifier
	Logger   *slog.Logger
}

type webhookPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

func (h WebhookHandler) Receive(c *gin.Context) {
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "commands unavailable"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": "cannot read request body"})
		return
	}

	if err := h.Verifier.Verify(body, c.GetHeader("X-Webhook-Signature")); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("webhook signature rejected", "error", err, "remote", c.ClientIP())
		}
		c.JSON(http.StatusUnauthorized, gin.H{"code": "INVALID_SIGNATURE", "error": "signature verification failed"})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": "malformed event payload"})
		return
	}
	if payload.ID == "" || payload.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": "event id and type are required"})
		return
	}

	cmd := reconcileapp.IngestEventCommand{
		EventID:   payload.ID,
		Type:      payload.Type,
		IntentRef: payload.Data.Object.ID,
	}
	result, err := commands.Dispatch[reconcileapp.IngestEventCommand, *reconcileapp.IngestEventResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("webhook processing failed", "error", err, "event_id", payload.ID, "type", payload.Type)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": codeInternal, "error": "event processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": result.Outcome})
}

var _ WebhookHTTP = WebhookHandler{}

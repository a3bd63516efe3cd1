package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"staybook/internal/app/policies"
	domainpayments "staybook/internal/domain/payments"
	"staybook/internal/domain/shared/money"
)

// Client talks to the external payment gateway over HTTP. The booking id is
// sent as the Idempotency-Key so a retried creation resolves to the same
// intent on the gateway side.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	APIKey  string
	Logger  *slog.Logger
}

type createIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Metadata struct {
		BookingID string `json:"booking_id"`
	} `json:"metadata"`
}

type createIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

func (c *Client) OpenIntent(ctx context.Context, bookingID string, amount money.Money) (domainpayments.Intent, error) {
	var zero domainpayments.Intent

	if c == nil || c.HTTP == nil {
		return zero, errors.New("payments: http client not configured")
	}
	if c.BaseURL == "" {
		return zero, errors.New("payments: base url not configured")
	}

	payload := createIntentRequest{Amount: amount.Amount, Currency: amount.Currency}
	payload.Metadata.BookingID = bookingID
	body, err := json.Marshal(payload)
	if err != nil {
		return zero, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return zero, err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Idempotency-Key", bookingID)
	if c.APIKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(request)
	if err != nil {
		c.logError("payment intent request failed", bookingID, err)
		return zero, fmt.Errorf("%w: %w", domainpayments.ErrIntentCreateFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%w: gateway returned status %d: %s", domainpayments.ErrIntentCreateFailed, resp.StatusCode, string(snippet))
		c.logError("payment intent rejected", bookingID, err)
		return zero, err
	}

	var intentResp createIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&intentResp); err != nil {
		c.logError("payment intent decode failed", bookingID, err)
		return zero, fmt.Errorf("%w: %w", domainpayments.ErrIntentCreateFailed, err)
	}
	if intentResp.ID == "" {
		return zero, fmt.Errorf("%w: gateway response missing intent id", domainpayments.ErrIntentCreateFailed)
	}
	return domainpayments.Intent{Ref: intentResp.ID, ClientSecret: intentResp.ClientSecret}, nil
}

func (c *Client) logError(msg, bookingID string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Error(msg, "booking_id", bookingID, "error", err)
}

var _ policies.PaymentsPort = (*Client)(nil)

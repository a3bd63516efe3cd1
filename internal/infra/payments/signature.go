package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidSignature reports a webhook whose signature does not match the
// shared secret. Such deliveries are rejected before any parsing.
var ErrInvalidSignature = errors.New("payments: invalid webhook signature")

// SignatureVerifier checks the HMAC-SHA256 signature the gateway attaches to
// each webhook delivery.
type SignatureVerifier struct {
	Secret []byte
}

// Verify compares the hex-encoded signature header against the HMAC of the
// raw body. Comparison is constant time.
func (v SignatureVerifier) Verify(body []byte, signature string) error {
	if len(v.Secret) == 0 {
		return errors.New("payments: webhook secret not configured")
	}
	signature = strings.TrimSpace(strings.TrimPrefix(signature, "sha256="))
	if signature == "" {
		return ErrInvalidSignature
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, v.Secret)
	mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign computes the hex signature for a body. Used by tests and the dev
// gateway stub to produce valid deliveries.
func (v SignatureVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.Secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

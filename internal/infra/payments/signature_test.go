package payments

import (
	"errors"
	"testing"
)

func TestSignatureRoundTrip(t *testing.T) {
	v := SignatureVerifier{Secret: []byte("whsec_test")}
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	sig := v.Sign(body)
	if err := v.Verify(body, sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := v.Verify(body, "sha256="+sig); err != nil {
		t.Fatalf("Verify with scheme prefix: %v", err)
	}
	if err := v.Verify(body, "  "+sig+"  "); err != nil {
		t.Fatalf("Verify with surrounding whitespace: %v", err)
	}
}

func TestSignatureRejects(t *testing.T) {
	v := SignatureVerifier{Secret: []byte("whsec_test")}
	body := []byte(`{"id":"evt_1"}`)
	sig := v.Sign(body)

	tests := []struct {
		name      string
		body      []byte
		signature string
	}{
		{"tampered body", []byte(`{"id":"evt_2"}`), sig},
		{"wrong secret", body, SignatureVerifier{Secret: []byte("other")}.Sign(body)},
		{"not hex", body, "sha256=zzzz"},
		{"empty", body, ""},
		{"prefix only", body, "sha256="},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := v.Verify(tc.body, tc.signature); !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("error = %v, want ErrInvalidSignature", err)
			}
		})
	}
}

func TestSignatureRequiresSecret(t *testing.T) {
	v := SignatureVerifier{}
	if err := v.Verify([]byte("body"), "abcd"); err == nil {
		t.Fatal("expected error with no secret configured")
	}
}

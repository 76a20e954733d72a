package signature_test

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // matches the production algorithm
	"encoding/hex"
	"strings"
	"testing"

	"github.com/xraph/vercel/signature"
)

func TestSignKnownVector(t *testing.T) {
	signer := signature.NewSigner()
	body := []byte(`{"type":"deployment.created"}`)
	secret := "vercel_testsecret123"

	got := signer.Sign(body, secret)

	// Compute expected HMAC-SHA1 independently.
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if got != expected {
		t.Errorf("Sign() = %q, want %q", got, expected)
	}
}

func TestSignRFC2202Vector(t *testing.T) {
	// RFC 2202 test case 2.
	got := signature.Sign([]byte("what do ya want for nothing?"), "Jefe")
	want := "effcdf6ae5eb2fa2d27416d5f184df9c259a7c79"
	if got != want {
		t.Errorf("Sign() = %q, want %q", got, want)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := signature.NewSigner()
	body := []byte(`{"id":"evt_1","type":"project.created"}`)
	secret := "roundtripsecret"

	sig := signer.Sign(body, secret)
	if !signer.Verify(body, secret, sig) {
		t.Error("Verify() returned false for valid signature")
	}
	if !signer.Verify(body, secret, strings.ToUpper(sig)) {
		t.Error("Verify() should ignore hex case")
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	signer := signature.NewSigner()
	secret := "tampersecret"

	sig := signer.Sign([]byte(`{"original":true}`), secret)

	if signer.Verify([]byte(`{"original":false}`), secret, sig) {
		t.Error("Verify() returned true for tampered body")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	signer := signature.NewSigner()
	body := []byte(`{"data":"value"}`)

	sig := signer.Sign(body, "correct")

	if signer.Verify(body, "wrong", sig) {
		t.Error("Verify() returned true for wrong secret")
	}
}

func TestVerifyRejectsEmptyAndMalformed(t *testing.T) {
	body := []byte(`{}`)
	if signature.Verify(body, "", signature.Sign(body, "")) {
		t.Error("empty secret should never verify")
	}
	if signature.Verify(body, "s", "") {
		t.Error("empty signature should not verify")
	}
	if signature.Verify(body, "s", "not-hex") {
		t.Error("malformed signature should not verify")
	}
}

func TestSignatureFormat(t *testing.T) {
	sig := signature.Sign([]byte("test"), "secret")

	// SHA1 = 20 bytes = 40 hex chars
	if len(sig) != 40 {
		t.Errorf("expected signature length 40, got %d", len(sig))
	}
}

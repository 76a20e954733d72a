package signature

import (
	"crypto/hmac"
	"encoding/hex"
	"strings"
)

// Verify reports whether sig is the signature of body under secret.
func (s *Signer) Verify(body []byte, secret, sig string) bool {
	return Verify(body, secret, sig)
}

// Verify reports whether sig is the signature of body under secret. The
// comparison is constant time and ignores hex case.
func Verify(body []byte, secret, sig string) bool {
	if secret == "" || sig == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(sig))
	if err != nil {
		return false
	}
	expected, _ := hex.DecodeString(Sign(body, secret))
	return hmac.Equal(expected, got)
}

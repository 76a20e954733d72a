// Package signature provides Vercel webhook signing and verification.
//
// Vercel signs the raw request body with HMAC-SHA1 keyed by the webhook
// secret and sends the hex digest in the x-vercel-signature header.
package signature

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // Vercel signs deliveries with HMAC-SHA1
	"encoding/hex"
)

// Header is the request header carrying the delivery signature.
const Header = "x-vercel-signature"

// Signer computes HMAC-SHA1 signatures for webhook bodies.
type Signer struct{}

// NewSigner returns a new Signer.
func NewSigner() *Signer {
	return &Signer{}
}

// Sign returns the hex HMAC-SHA1 of body keyed by secret.
func (s *Signer) Sign(body []byte, secret string) string {
	return Sign(body, secret)
}

// Sign returns the hex HMAC-SHA1 of body keyed by secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Signer computes HMAC-SHA256 signatures over webhook bodies.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer for secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the lowercase hex HMAC of CanonicalString(timestamp, body).
func (s *Signer) Sign(timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(CanonicalString(timestamp, body)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature in constant time.
func (s *Signer) Verify(timestamp int64, body []byte, signature string) bool {
	expected := s.Sign(timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// CanonicalString is the signed payload. Format: TIMESTAMP.BODY
func CanonicalString(timestamp int64, body []byte) string {
	return strconv.FormatInt(timestamp, 10) + "." + string(body)
}

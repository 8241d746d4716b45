package artifacts

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"stemsense/internal/services"
)

var (
	// ErrExpiredURL indicates the signed URL's deadline has passed.
	ErrExpiredURL = errors.New("signed url expired")
	// ErrBadSignature indicates the signature does not match the request.
	ErrBadSignature = errors.New("signature mismatch")
)

// Signer issues and verifies HMAC-SHA256 signatures binding an object name
// to an expiry deadline.
type Signer struct {
	secret []byte
}

// NewSigner builds a Signer from the configured secret.
func NewSigner(secret string) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "init signer", "storage.signing_secret is not set", nil)
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns the hex signature for an object name and unix expiry.
func (s *Signer) Sign(name string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%d", name, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented signature against the object name and expiry.
func (s *Signer) Verify(name string, expires int64, signature string, now time.Time) error {
	if now.Unix() > expires {
		return ErrExpiredURL
	}
	expected := s.Sign(name, expires)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

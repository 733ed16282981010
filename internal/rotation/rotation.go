package rotation

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	// DefaultWindowSeconds matches the 30-second refresh cadence the ticket
	// display runs on.
	DefaultWindowSeconds = 30

	DefaultCodeDigits = 8

	// SecretLength is the byte length of freshly issued account and purchase
	// keys (256 bits).
	SecretLength = 32
)

var hkdfInfo = []byte("ticket-rotating-code")

// Window maps a wall-clock instant to its rotation window index.
func Window(now time.Time, windowSeconds int64) int64 {
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindowSeconds
	}
	return now.Unix() / windowSeconds
}

// SecondsRemaining reports how long the current window is still valid, which
// is what the ticket display uses as its refresh countdown.
func SecondsRemaining(now time.Time, windowSeconds int64) int64 {
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindowSeconds
	}
	return windowSeconds - now.Unix()%windowSeconds
}

// DeriveCode computes the rotating code for one (accountKey, purchaseKey,
// window) triple. The two secrets are stretched into a dedicated MAC key with
// HKDF-SHA256, the window index is the MAC message, and the digest is
// truncated to a fixed number of decimal digits. Identical inputs always
// produce the identical code; neither secret is recoverable from the output.
func DeriveCode(accountKey, purchaseKey []byte, window int64, digits int) (string, error) {
	if len(accountKey) == 0 || len(purchaseKey) == 0 {
		return "", fmt.Errorf("derive code: both keys are required")
	}
	if digits < 6 || digits > 9 {
		return "", fmt.Errorf("derive code: digits must be between 6 and 9, got %d", digits)
	}

	ikm := make([]byte, 0, len(accountKey)+len(purchaseKey))
	ikm = append(ikm, accountKey...)
	ikm = append(ikm, purchaseKey...)

	macKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, hkdfInfo), macKey); err != nil {
		return "", fmt.Errorf("derive code: hkdf expand: %w", err)
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(window))

	mac := hmac.New(sha256.New, macKey)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// RFC 4226 dynamic truncation.
	offset := sum[len(sum)-1] & 0x0f
	bin := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	code := bin % uint32(math.Pow10(digits))

	return fmt.Sprintf("%0*d", digits, code), nil
}

// NewSecret returns n cryptographically random bytes for key issuance.
func NewSecret(n int) ([]byte, error) {
	if n < 16 {
		return nil, fmt.Errorf("new secret: at least 16 bytes required, got %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("new secret: %w", err)
	}
	return b, nil
}

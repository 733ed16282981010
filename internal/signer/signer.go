package signer

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/models"
	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/rotation"
)

var ErrMalformedPayload = errors.New("malformed scan payload")

// Signer builds and checks the rotating proof embedded in a scannable code.
// It is pure: both sides only need to agree on these three parameters and on
// wall-clock time.
type Signer struct {
	windowSeconds int64
	skewWindows   int
	codeDigits    int
}

func New(windowSeconds int64, skewWindows, codeDigits int) *Signer {
	if windowSeconds <= 0 {
		windowSeconds = rotation.DefaultWindowSeconds
	}
	if skewWindows < 0 {
		skewWindows = 0
	}
	if codeDigits == 0 {
		codeDigits = rotation.DefaultCodeDigits
	}
	return &Signer{
		windowSeconds: windowSeconds,
		skewWindows:   skewWindows,
		codeDigits:    codeDigits,
	}
}

func (s *Signer) WindowSeconds() int64 { return s.windowSeconds }

// BuildScanPayload derives the code for the current window and pairs it with
// the ticket identifier. The ticket display re-renders this every
// WindowSeconds seconds.
func (s *Signer) BuildScanPayload(ticket *models.Ticket, accountKey, purchaseKey []byte, now time.Time) (*models.ScanPayload, error) {
	window := rotation.Window(now, s.windowSeconds)
	code, err := rotation.DeriveCode(accountKey, purchaseKey, window, s.codeDigits)
	if err != nil {
		return nil, fmt.Errorf("build scan payload for ticket %s: %w", ticket.ID, err)
	}
	return &models.ScanPayload{
		TicketID:   ticket.ID,
		Code:       code,
		WindowHint: window,
	}, nil
}

// Verify recomputes the expected code for the current window and skewWindows
// adjacent windows on each side, and accepts if the presented code matches any
// of them. The window index is always taken from now, never from the payload:
// a hint embedded by the client is untrusted input.
func (s *Signer) Verify(payload *models.ScanPayload, accountKey, purchaseKey []byte, now time.Time) (bool, error) {
	center := rotation.Window(now, s.windowSeconds)
	presented := []byte(payload.Code)

	for delta := -s.skewWindows; delta <= s.skewWindows; delta++ {
		expected, err := rotation.DeriveCode(accountKey, purchaseKey, center+int64(delta), s.codeDigits)
		if err != nil {
			return false, fmt.Errorf("verify ticket %s: %w", payload.TicketID, err)
		}
		if hmac.Equal(presented, []byte(expected)) {
			return true, nil
		}
	}
	return false, nil
}

// Encode renders the payload as the QR string "ticketID:code:window". The
// trailing window segment is informational only.
func Encode(payload *models.ScanPayload) string {
	return fmt.Sprintf("%s:%s:%d", payload.TicketID, payload.Code, payload.WindowHint)
}

// Decode parses a scanned QR string. Both the two-segment "ticketID:code" and
// the three-segment form with a window hint are accepted.
func Decode(raw string) (*models.ScanPayload, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("%w: expected ticketID:code[:window], got %d segments", ErrMalformedPayload, len(parts))
	}
	if parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: empty ticket id or code", ErrMalformedPayload)
	}

	payload := &models.ScanPayload{
		TicketID: parts[0],
		Code:     parts[1],
	}
	if len(parts) == 3 {
		hint, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: window segment is not an integer", ErrMalformedPayload)
		}
		payload.WindowHint = hint
	}
	return payload, nil
}

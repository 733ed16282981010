package signer

import (
	"bytes"
	"testing"
	"time"

	"github.com/Lion17-ca/Billetterie-JO-Paris-2024/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAccountKey  = bytes.Repeat([]byte{0x11}, 32)
	testPurchaseKey = bytes.Repeat([]byte{0x22}, 32)
)

func testTicket() *models.Ticket {
	return &models.Ticket{
		ID:          "ticket-1",
		OwnerUserID: "user-1",
		EventID:     "event-1",
		Status:      models.TicketUnused,
	}
}

func TestBuildScanPayload(t *testing.T) {
	sig := New(30, 1, 8)
	// Window-aligned instant: window 1000.
	now := time.Unix(30000, 0)

	payload, err := sig.BuildScanPayload(testTicket(), testAccountKey, testPurchaseKey, now)
	require.NoError(t, err)

	assert.Equal(t, "ticket-1", payload.TicketID)
	assert.Len(t, payload.Code, 8)
	assert.Equal(t, int64(1000), payload.WindowHint)
}

func TestVerifyWithinSkewTolerance(t *testing.T) {
	sig := New(30, 1, 8)
	issued := time.Unix(30000, 0)

	payload, err := sig.BuildScanPayload(testTicket(), testAccountKey, testPurchaseKey, issued)
	require.NoError(t, err)

	cases := []struct {
		name    string
		scanAt  time.Time
		accepts bool
	}{
		{"same window", issued, true},
		{"same window, later second", issued.Add(29 * time.Second), true},
		{"next window", issued.Add(30 * time.Second), true},
		{"previous window", issued.Add(-30 * time.Second), true},
		{"two windows ahead", issued.Add(60 * time.Second), false},
		{"two windows behind", issued.Add(-60 * time.Second), false},
		{"four windows ahead", issued.Add(95 * time.Second), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := sig.Verify(payload, testAccountKey, testPurchaseKey, tc.scanAt)
			require.NoError(t, err)
			assert.Equal(t, tc.accepts, ok)
		})
	}
}

func TestVerifyZeroSkewIsStrict(t *testing.T) {
	sig := New(30, 0, 8)
	issued := time.Unix(30000, 0)

	payload, err := sig.BuildScanPayload(testTicket(), testAccountKey, testPurchaseKey, issued)
	require.NoError(t, err)

	ok, err := sig.Verify(payload, testAccountKey, testPurchaseKey, issued)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = sig.Verify(payload, testAccountKey, testPurchaseKey, issued.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsForeignPurchaseKey(t *testing.T) {
	sig := New(30, 1, 8)
	now := time.Unix(30000, 0)

	payload, err := sig.BuildScanPayload(testTicket(), testAccountKey, testPurchaseKey, now)
	require.NoError(t, err)

	foreign := bytes.Repeat([]byte{0x33}, 32)
	ok, err := sig.Verify(payload, testAccountKey, foreign, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyIgnoresWindowHint(t *testing.T) {
	sig := New(30, 1, 8)
	issued := time.Unix(30000, 0)

	payload, err := sig.BuildScanPayload(testTicket(), testAccountKey, testPurchaseKey, issued)
	require.NoError(t, err)

	// An attacker replaying a stale code cannot resurrect it by claiming an
	// old window index: the hint has no effect on verification.
	payload.WindowHint = 999999
	ok, err := sig.Verify(payload, testAccountKey, testPurchaseKey, issued.Add(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := &models.ScanPayload{
		TicketID:   "ticket-9",
		Code:       "12345678",
		WindowHint: 1000,
	}

	decoded, err := Decode(Encode(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestDecodeTwoSegmentForm(t *testing.T) {
	decoded, err := Decode("ticket-9:12345678")
	require.NoError(t, err)
	assert.Equal(t, "ticket-9", decoded.TicketID)
	assert.Equal(t, "12345678", decoded.Code)
	assert.Equal(t, int64(0), decoded.WindowHint)
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		"",
		"ticket-only",
		"ticket::",
		":12345678",
		"a:b:c:d",
		"ticket-9:12345678:not-a-number",
	}
	for _, raw := range cases {
		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrMalformedPayload, "input %q", raw)
	}
}

package rotation

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow(t *testing.T) {
	assert.Equal(t, int64(0), Window(time.Unix(0, 0), 30))
	assert.Equal(t, int64(0), Window(time.Unix(29, 0), 30))
	assert.Equal(t, int64(1), Window(time.Unix(30, 0), 30))
	assert.Equal(t, int64(1), Window(time.Unix(59, 0), 30))
	assert.Equal(t, int64(2), Window(time.Unix(60, 0), 30))
	assert.Equal(t, int64(100), Window(time.Unix(3000, 0), 30))
}

func TestWindowDefaultsOnBadLength(t *testing.T) {
	assert.Equal(t, int64(2), Window(time.Unix(60, 0), 0))
	assert.Equal(t, int64(2), Window(time.Unix(60, 0), -5))
}

func TestSecondsRemaining(t *testing.T) {
	assert.Equal(t, int64(30), SecondsRemaining(time.Unix(0, 0), 30))
	assert.Equal(t, int64(1), SecondsRemaining(time.Unix(29, 0), 30))
	assert.Equal(t, int64(30), SecondsRemaining(time.Unix(30, 0), 30))
	assert.Equal(t, int64(15), SecondsRemaining(time.Unix(45, 0), 30))
}

func TestDeriveCodeDeterministic(t *testing.T) {
	accountKey := bytes.Repeat([]byte{0x11}, 32)
	purchaseKey := bytes.Repeat([]byte{0x22}, 32)

	first, err := DeriveCode(accountKey, purchaseKey, 42, 8)
	require.NoError(t, err)
	second, err := DeriveCode(accountKey, purchaseKey, 42, 8)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDeriveCodeFixedWidthDigits(t *testing.T) {
	accountKey := bytes.Repeat([]byte{0xAA}, 32)
	purchaseKey := bytes.Repeat([]byte{0xBB}, 32)

	for _, digits := range []int{6, 7, 8, 9} {
		code, err := DeriveCode(accountKey, purchaseKey, 7, digits)
		require.NoError(t, err)
		assert.Len(t, code, digits)
		assert.NotContains(t, code, " ")
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "code %q contains non-digit %q", code, r)
		}
	}
}

func TestDeriveCodeChangesAcrossWindows(t *testing.T) {
	accountKey := bytes.Repeat([]byte{0x01}, 32)
	purchaseKey := bytes.Repeat([]byte{0x02}, 32)

	codes := make(map[string]bool)
	for window := int64(0); window < 10; window++ {
		code, err := DeriveCode(accountKey, purchaseKey, window, 8)
		require.NoError(t, err)
		codes[code] = true
	}
	// Ten consecutive windows all mapping to the same code would mean the
	// window is not actually part of the derivation.
	assert.Greater(t, len(codes), 1)
}

func TestDeriveCodeDependsOnBothKeys(t *testing.T) {
	accountKey := bytes.Repeat([]byte{0x01}, 32)
	purchaseKey := bytes.Repeat([]byte{0x02}, 32)
	otherPurchase := bytes.Repeat([]byte{0x03}, 32)
	otherAccount := bytes.Repeat([]byte{0x04}, 32)

	base, err := DeriveCode(accountKey, purchaseKey, 5, 8)
	require.NoError(t, err)

	swappedPurchase, err := DeriveCode(accountKey, otherPurchase, 5, 8)
	require.NoError(t, err)
	assert.NotEqual(t, base, swappedPurchase)

	swappedAccount, err := DeriveCode(otherAccount, purchaseKey, 5, 8)
	require.NoError(t, err)
	assert.NotEqual(t, base, swappedAccount)
}

func TestDeriveCodeRejectsBadInput(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, 32)

	_, err := DeriveCode(nil, key, 1, 8)
	assert.Error(t, err)

	_, err = DeriveCode(key, nil, 1, 8)
	assert.Error(t, err)

	_, err = DeriveCode(key, key, 1, 5)
	assert.Error(t, err)

	_, err = DeriveCode(key, key, 1, 10)
	assert.Error(t, err)
}

func TestNewSecret(t *testing.T) {
	first, err := NewSecret(SecretLength)
	require.NoError(t, err)
	assert.Len(t, first, SecretLength)

	second, err := NewSecret(SecretLength)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = NewSecret(8)
	assert.Error(t, err)

	assert.NotEqual(t, make([]byte, SecretLength), first)
}

package cryptox

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, 32)
	c, err := NewCipher(key)
	require.NoError(t, err)
	return c
}

func TestNewCipher_RejectsWrongKeySize(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	require.ErrorIs(t, err, ErrKeySize)
}

func TestSign_Deterministic(t *testing.T) {
	c := testCipher(t)

	s1 := c.Sign("payload", 1700000000, "device-1")
	s2 := c.Sign("payload", 1700000000, "device-1")
	require.Equal(t, s1, s2)

	// hex of a 32-byte MAC
	require.Len(t, s1, 64)
	_, err := hex.DecodeString(s1)
	require.NoError(t, err)
}

func TestVerify_FlipsOnAnyInputChange(t *testing.T) {
	c := testCipher(t)

	sig := c.Sign("payload", 1700000000, "device-1")
	require.True(t, c.Verify("payload", 1700000000, "device-1", sig))

	assert.False(t, c.Verify("payload2", 1700000000, "device-1", sig))
	assert.False(t, c.Verify("payload", 1700000001, "device-1", sig))
	assert.False(t, c.Verify("payload", 1700000000, "device-2", sig))
	assert.False(t, c.Verify("payload", 1700000000, "device-1", sig[:63]+"0"))
}

func TestPayload_RoundTrip(t *testing.T) {
	c := testCipher(t)

	for _, plaintext := range []string{"", "x", "hello world", strings.Repeat("a", 4096), "юникод ✓"} {
		ct, iv, tag, err := c.EncryptPayload(plaintext)
		require.NoError(t, err)

		got, err := c.DecryptPayload(ct, iv, tag)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	}
}

func TestPayload_FreshNoncePerCall(t *testing.T) {
	c := testCipher(t)

	_, iv1, _, err := c.EncryptPayload("same input")
	require.NoError(t, err)
	_, iv2, _, err := c.EncryptPayload("same input")
	require.NoError(t, err)

	require.NotEqual(t, iv1, iv2)
}

// flipHexByte flips one bit of the byte at the given position in a hex string.
func flipHexByte(t *testing.T, s string, pos int) string {
	t.Helper()
	raw, err := hex.DecodeString(s)
	require.NoError(t, err)
	raw[pos] ^= 0x01
	return hex.EncodeToString(raw)
}

func TestDecryptPayload_FailsOnCorruption(t *testing.T) {
	c := testCipher(t)

	ct, iv, tag, err := c.EncryptPayload("sensitive")
	require.NoError(t, err)

	cases := []struct {
		name        string
		ct, iv, tag string
	}{
		{"ciphertext bit flip", flipHexByte(t, ct, 0), iv, tag},
		{"nonce bit flip", ct, flipHexByte(t, iv, 0), tag},
		{"tag bit flip", ct, iv, flipHexByte(t, tag, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.DecryptPayload(tc.ct, tc.iv, tc.tag)
			require.ErrorIs(t, err, ErrDecryptionFailed)
		})
	}
}

func TestDecryptPayload_ValidatesLengths(t *testing.T) {
	c := testCipher(t)

	ct, iv, tag, err := c.EncryptPayload("data")
	require.NoError(t, err)

	_, err = c.DecryptPayload(ct, iv[:22], tag) // 11-byte nonce
	require.ErrorIs(t, err, ErrInvalidNonceSize)

	_, err = c.DecryptPayload(ct, iv, tag[:30]) // 15-byte tag
	require.ErrorIs(t, err, ErrInvalidTagSize)

	_, err = c.DecryptPayload(ct, "zz", tag)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptPayload_RejectsOversizedInputBeforeDecoding(t *testing.T) {
	c := testCipher(t)

	_, _, tag, err := c.EncryptPayload("data")
	require.NoError(t, err)

	huge := strings.Repeat("a", MaxEncodedPayloadLen+1)
	_, err = c.DecryptPayload(huge, strings.Repeat("0", 24), tag)
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = c.DecryptPayload("00", strings.Repeat("0", maxHexFieldLen+2), tag)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

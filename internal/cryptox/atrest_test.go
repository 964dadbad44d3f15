package cryptox

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtRest_RoundTrip(t *testing.T) {
	a := NewAtRest("0123456789abcdef0123456789abcdef", []byte("storage-salt"))

	for _, plaintext := range [][]byte{[]byte("{}"), []byte(`{"sessions":[]}`), make([]byte, 8192)} {
		encoded, err := a.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := a.Decrypt(encoded)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	}
}

func TestAtRest_KeyBoundToFingerprint(t *testing.T) {
	a := NewAtRest("fingerprint-a", []byte("salt"))
	b := NewAtRest("fingerprint-b", []byte("salt"))

	encoded, err := a.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = b.Decrypt(encoded)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestAtRest_RejectsShortInput(t *testing.T) {
	a := NewAtRest("fp", []byte("salt"))

	short := base64.StdEncoding.EncodeToString(make([]byte, NonceSize+TagSize-1))
	_, err := a.Decrypt(short)
	require.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = a.Decrypt("not-base64!!!")
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestAtRest_FreshNoncePerWrite(t *testing.T) {
	a := NewAtRest("fp", []byte("salt"))

	e1, err := a.Encrypt([]byte("record"))
	require.NoError(t, err)
	e2, err := a.Encrypt([]byte("record"))
	require.NoError(t, err)

	require.NotEqual(t, e1, e2)
}

// Package cryptox implements the symmetric cryptography used by the broker:
// HMAC-SHA256 request signing, AES-256-GCM wire payload encryption with the
// hex ciphertext/iv/tag split used by the authorization service, and the
// base64 at-rest format of the local vault.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	// NonceSize is the AES-GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the AES-GCM authentication tag length in bytes.
	TagSize = 16

	// MaxEncodedPayloadLen bounds the hex-encoded ciphertext accepted by
	// DecryptPayload. Oversized input is rejected before any decoding so a
	// malformed response cannot force a large allocation.
	MaxEncodedPayloadLen = 20 * 1024 * 1024

	// maxHexFieldLen bounds the iv and tag fields.
	maxHexFieldLen = 128
)

var (
	ErrKeySize          = errors.New("key must be 32 bytes")
	ErrPayloadTooLarge  = errors.New("input data too large")
	ErrInvalidNonceSize = errors.New("invalid nonce size")
	ErrInvalidTagSize   = errors.New("invalid tag size")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrInvalidPlaintext = errors.New("plaintext is not valid text")
)

// Cipher holds the shared communication key and performs request signing and
// wire payload encryption/decryption. The key is ordinary configuration, not
// a security boundary separate from the binary.
type Cipher struct {
	key []byte
}

// NewCipher returns a Cipher for the given 256-bit key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, ErrKeySize
	}
	c := &Cipher{key: make([]byte, 32)}
	copy(c.key, key)
	return c, nil
}

// Sign computes the request signature over data, timestamp and device id:
//
//	hex(HMAC-SHA256(key, data + "|" + timestamp + "|" + deviceID))
//
// Signing is pure and deterministic for a given key.
func (c *Cipher) Sign(data string, timestamp int64, deviceID string) string {
	mac := hmac.New(sha256.New, c.key)
	fmt.Fprintf(mac, "%s|%d|%s", data, timestamp, deviceID)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the independently computed
// signature for the same inputs. Comparison is constant-time.
func (c *Cipher) Verify(data string, timestamp int64, deviceID, signature string) bool {
	expected := c.Sign(data, timestamp, deviceID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// EncryptPayload encrypts plaintext with AES-256-GCM under the communication
// key, generating a fresh random 12-byte nonce per call. It returns the hex
// ciphertext, hex nonce and hex tag, with the tag split from the trailing 16
// bytes of the AEAD output.
func (c *Cipher) EncryptPayload(plaintext string) (ct, iv, tag string, err error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", "", "", fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}

	aead, err := newGCM(c.key)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	split := len(sealed) - TagSize

	return hex.EncodeToString(sealed[:split]),
		hex.EncodeToString(nonce),
		hex.EncodeToString(sealed[split:]),
		nil
}

// DecryptPayload reverses EncryptPayload. It rejects oversized input before
// decoding, then validates nonce and tag lengths; hex errors, authentication
// failure and non-text plaintext all fail the call.
func (c *Cipher) DecryptPayload(ct, iv, tag string) (string, error) {
	if len(ct) > MaxEncodedPayloadLen || len(iv) > maxHexFieldLen || len(tag) > maxHexFieldLen {
		return "", ErrPayloadTooLarge
	}

	nonce, err := hex.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("%w: iv: %w", ErrDecryptionFailed, err)
	}
	if len(nonce) != NonceSize {
		return "", fmt.Errorf("%w: expected %d, got %d", ErrInvalidNonceSize, NonceSize, len(nonce))
	}

	ciphertext, err := hex.DecodeString(ct)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %w", ErrDecryptionFailed, err)
	}
	tagBytes, err := hex.DecodeString(tag)
	if err != nil {
		return "", fmt.Errorf("%w: tag: %w", ErrDecryptionFailed, err)
	}
	if len(tagBytes) != TagSize {
		return "", fmt.Errorf("%w: expected %d, got %d", ErrInvalidTagSize, TagSize, len(tagBytes))
	}

	aead, err := newGCM(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	plaintext, err := aead.Open(nil, nonce, append(ciphertext, tagBytes...), nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if !utf8.Valid(plaintext) {
		return "", ErrInvalidPlaintext
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

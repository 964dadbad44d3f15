package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// AtRest encrypts local vault records under a key derived from the device
// fingerprint, so vault files cannot be copied to another machine and read.
//
// Format: base64(nonce(12) || AES-256-GCM output). Every Encrypt call uses a
// freshly generated nonce; records are rewritten in full, so a nonce is never
// reused for different versions of the same logical record.
type AtRest struct {
	key []byte
}

// NewAtRest derives the at-rest key as SHA-256(fingerprint || salt).
func NewAtRest(fingerprint string, salt []byte) *AtRest {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write(salt)
	return &AtRest{key: h.Sum(nil)}
}

func (a *AtRest) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}

	aead, err := newGCM(a.key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}

	combined := make([]byte, 0, NonceSize+len(plaintext)+TagSize)
	combined = append(combined, nonce...)
	combined = aead.Seal(combined, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(combined), nil
}

func (a *AtRest) Decrypt(encoded string) ([]byte, error) {
	combined, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	if len(combined) < NonceSize+TagSize {
		return nil, fmt.Errorf("%w: encrypted data too short", ErrDecryptionFailed)
	}

	aead, err := newGCM(a.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	plaintext, err := aead.Open(nil, combined[:NonceSize], combined[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

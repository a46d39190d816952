package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinKeySize is the minimum amount of secret material accepted by NewFieldEncryptor.
const MinKeySize = 32

var (
	ErrEmptyPlaintext    = errors.New("plaintext cannot be empty")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

const (
	encKeyInfo = "yumyum/pii/aes-256-gcm"
	macKeyInfo = "yumyum/pii/synthetic-iv"
)

// FieldEncryptor encrypts PII fields deterministically: the same plaintext
// always yields the same ciphertext under one key, so ciphertexts can be used
// as lookup keys. Equal plaintexts are therefore distinguishable.
//
// The nonce is HMAC-SHA256(macKey, plaintext) truncated to the GCM nonce size,
// so a nonce only repeats for a repeated plaintext. Both keys are derived from
// the configured secret with HKDF-SHA256.
type FieldEncryptor struct {
	aead   cipher.AEAD
	macKey []byte
}

func NewFieldEncryptor(secret []byte) (*FieldEncryptor, error) {
	if len(secret) < MinKeySize {
		return nil, fmt.Errorf("encryption secret must be at least %d bytes, got %d", MinKeySize, len(secret))
	}

	encKey, err := deriveKey(secret, encKeyInfo)
	if err != nil {
		return nil, err
	}
	macKey, err := deriveKey(secret, macKeyInfo)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &FieldEncryptor{aead: aead, macKey: macKey}, nil
}

// Encrypt returns base64url(nonce || ciphertext || tag).
func (e *FieldEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	nonce := e.syntheticNonce([]byte(plaintext))
	sealed := e.aead.Seal(nil, nonce, []byte(plaintext), nil)

	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (e *FieldEncryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	nonceSize := e.aead.NonceSize()
	if len(raw) < nonceSize+e.aead.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrInvalidCiphertext)
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrInvalidCiphertext)
	}

	if !hmac.Equal(nonce, e.syntheticNonce(plaintext)) {
		return "", fmt.Errorf("%w: nonce mismatch", ErrInvalidCiphertext)
	}

	return string(plaintext), nil
}

func (e *FieldEncryptor) syntheticNonce(plaintext []byte) []byte {
	mac := hmac.New(sha256.New, e.macKey)
	mac.Write(plaintext)
	return mac.Sum(nil)[:e.aead.NonceSize()]
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

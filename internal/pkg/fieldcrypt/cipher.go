// Package fieldcrypt encrypts individual sensitive record fields before
// they reach the storage layer. The store itself treats the field as an
// opaque string; only the catalog holds a Cipher.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// Cipher encrypts and decrypts individual string fields.
type Cipher interface {
	EncryptString(plaintext string) (string, error)
	DecryptString(ciphertext string) (string, error)
}

// AESGCM is a Cipher using AES-GCM with a random nonce per encryption.
// Output is base64(nonce || ciphertext).
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM builds a cipher from a 16-, 24- or 32-byte key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

func (c *AESGCM) EncryptString(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("fieldcrypt: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *AESGCM) DecryptString(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: decode: %w", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", errors.New("fieldcrypt: ciphertext too short")
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: open: %w", err)
	}
	return string(plain), nil
}

// Package secrets seals secret material, such as object storage secret keys,
// so that it is only ever stored encrypted.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// SealedPrefix marks a value produced by Seal
	SealedPrefix = "enc:v1:"

	// KeySize is the size in bytes of a cipher key
	KeySize = chacha20poly1305.KeySize
)

var (
	// ErrDecrypt is returned when a sealed value cannot be opened
	ErrDecrypt = errors.New("failed to decrypt sealed value")

	// ErrNotSealed is returned when Open is given a value without the sealed prefix
	ErrNotSealed = errors.New("value is not sealed")
)

// Cipher seals and opens secret values
type Cipher interface {
	// Seal encrypts plaintext and returns the sealed representation
	Seal(plaintext string) (string, error)

	// Open decrypts a value previously returned by Seal
	Open(sealed string) (string, error)
}

type xchachaCipher struct {
	key []byte
}

// IsSealed reports whether value carries the sealed prefix
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// GenerateKey returns a new random key, base64 encoded as expected in key files
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// NewCipher creates an XChaCha20-Poly1305 cipher from a raw key
func NewCipher(key []byte) (Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &xchachaCipher{key: k}, nil
}

// NewCipherFromKeyFile creates a cipher from a file containing a base64 encoded key
func NewCipherFromKeyFile(path string) (Cipher, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("key file %s is not valid base64: %w", path, err)
	}
	return NewCipher(key)
}

// Seal encrypts plaintext with a random nonce
func (c *xchachaCipher) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a sealed value
func (c *xchachaCipher) Open(sealed string) (string, error) {
	if !IsSealed(sealed) {
		return "", ErrNotSealed
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding", ErrDecrypt)
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("%w: value too short", ErrDecrypt)
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

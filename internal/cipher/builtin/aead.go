package builtin

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const aeadName = "ChaCha20-Poly1305 (AEAD)"

// AEAD seals under a fixed all-zero nonce with no associated data, which
// makes Encrypt deterministic. Ciphertext carries the 16-byte tag.
type AEAD struct{}

var aeadNonce = make([]byte, chacha20poly1305.NonceSize)

func (AEAD) Name() string { return aeadName }

func (AEAD) Encrypt(plaintext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(fitKey(key, chacha20poly1305.KeySize))
	if err != nil {
		return nil, fmt.Errorf("aead key setup: %w", err)
	}
	return aead.Seal(nil, aeadNonce, plaintext, nil), nil
}

func (AEAD) Decrypt(ciphertext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(fitKey(key, chacha20poly1305.KeySize))
	if err != nil {
		return nil, fmt.Errorf("aead key setup: %w", err)
	}
	out, err := aead.Open(nil, aeadNonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("aead open: %w", err)
	}
	return out, nil
}

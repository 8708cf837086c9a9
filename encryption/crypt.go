// Package encryption provides an authenticated payload codec for the Temporal
// data-converter pipeline, so workflow inputs, outputs and signals are opaque
// on the wire and at rest.
package encryption

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required length of the symmetric key in bytes.
const KeySize = chacha20poly1305.KeySize

// KeyError reports malformed key material.
type KeyError struct {
	Reason string
	Err    error
}

func (e *KeyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("encryption: %s", e.Reason)
	}
	return fmt.Sprintf("encryption: %s: %v", e.Reason, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// DecryptionError reports a payload that could not be authenticated and
// decrypted: tampered ciphertext, a wrong key, an unknown key id or a
// malformed envelope.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("encryption: %s", e.Reason)
	}
	return fmt.Sprintf("encryption: %s: %v", e.Reason, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// decodeKey parses a base64 encoded symmetric key.
func decodeKey(b64Key string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(b64Key)
	if err != nil {
		return nil, &KeyError{Reason: "invalid base64 encoding of encryption key", Err: err}
	}
	if len(key) != KeySize {
		return nil, &KeyError{Reason: fmt.Sprintf("invalid key length: expected %d bytes, got %d", KeySize, len(key))}
	}
	return key, nil
}

// encrypt seals plaintext with XChaCha20-Poly1305 under a fresh random nonce.
// The returned envelope is nonce || ciphertext.
func encrypt(plaintext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt opens a nonce || ciphertext envelope produced by encrypt.
func decrypt(sealed, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, &DecryptionError{Reason: "malformed envelope: shorter than nonce"}
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &DecryptionError{Reason: "incorrect key or corrupted payload", Err: err}
	}
	return plaintext, nil
}

// Package codec implements the hybrid encryption protocol used for every
// persisted health record: a fresh symmetric key per record, wrapped under the
// subject's public key, and the JSON payload encrypted under that key.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// KeySize is the length in bytes of a record's symmetric key (AES-256).
const KeySize = 32

// ErrCiphertextTooShort is returned when a symmetric ciphertext has no room for its nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Cipher provides the primitives the key-wrapping protocol is built on.
type Cipher interface {
	// WrapKey encrypts a symmetric key under pub.
	WrapKey(key []byte, pub *rsa.PublicKey) ([]byte, error)
	// UnwrapKey decrypts a wrapped symmetric key with priv.
	UnwrapKey(wrapped []byte, priv *rsa.PrivateKey) ([]byte, error)
	// Encrypt encrypts plaintext under a symmetric key.
	Encrypt(plaintext, key []byte) ([]byte, error)
	// Decrypt reverses Encrypt.
	Decrypt(ciphertext, key []byte) ([]byte, error)
	// NewKey returns a fresh random symmetric key.
	NewKey() ([]byte, error)
}

// HybridCipher wraps keys with RSA-OAEP (SHA-256) and encrypts payloads with
// AES-256-GCM. The GCM nonce is prepended to the ciphertext.
type HybridCipher struct {
	// Random is the entropy source; nil means crypto/rand.
	Random io.Reader
}

func (h HybridCipher) random() io.Reader {
	if h.Random == nil {
		return rand.Reader
	}
	return h.Random
}

func (h HybridCipher) WrapKey(key []byte, pub *rsa.PublicKey) ([]byte, error) {
	if pub == nil {
		return nil, ErrMissingKey
	}
	return rsa.EncryptOAEP(sha256.New(), h.random(), pub, key, nil)
}

func (h HybridCipher) UnwrapKey(wrapped []byte, priv *rsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, ErrMissingKey
	}
	return rsa.DecryptOAEP(sha256.New(), nil, priv, wrapped, nil)
}

func (h HybridCipher) Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(h.random(), nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (h HybridCipher) Decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func (h HybridCipher) NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(h.random(), key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

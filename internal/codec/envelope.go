package codec

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingKey means the record or the caller supplied no key material.
	ErrMissingKey = errors.New("missing key material")
	// ErrKeyUnwrap means the wrapped symmetric key could not be decrypted.
	ErrKeyUnwrap = errors.New("unwrap record key")
	// ErrPayloadDecrypt means the payload could not be decrypted.
	ErrPayloadDecrypt = errors.New("decrypt record payload")
	// ErrPayloadDecode means the decrypted payload is not the expected JSON.
	ErrPayloadDecode = errors.New("decode record payload")
)

// Envelope is the encrypted pair carried by every record, base64 encoded.
type Envelope struct {
	EncryptedKey  string
	EncryptedBlob string
}

// SealBytes encrypts plaintext under a fresh key wrapped for pub.
func SealBytes(c Cipher, pub *rsa.PublicKey, plaintext []byte) (Envelope, error) {
	if pub == nil {
		return Envelope{}, ErrMissingKey
	}
	key, err := c.NewKey()
	if err != nil {
		return Envelope{}, err
	}
	blob, err := c.Encrypt(plaintext, key)
	if err != nil {
		return Envelope{}, fmt.Errorf("encrypt payload: %w", err)
	}
	wrapped, err := c.WrapKey(key, pub)
	if err != nil {
		return Envelope{}, fmt.Errorf("wrap key: %w", err)
	}
	return Envelope{
		EncryptedKey:  base64.StdEncoding.EncodeToString(wrapped),
		EncryptedBlob: base64.StdEncoding.EncodeToString(blob),
	}, nil
}

// OpenBytes unwraps the envelope's key with priv and decrypts the payload.
// Errors wrap ErrMissingKey, ErrKeyUnwrap or ErrPayloadDecrypt.
func OpenBytes(c Cipher, priv *rsa.PrivateKey, env Envelope) ([]byte, error) {
	if priv == nil || env.EncryptedKey == "" || env.EncryptedBlob == "" {
		return nil, ErrMissingKey
	}
	wrapped, err := base64.StdEncoding.DecodeString(env.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnwrap, err)
	}
	key, err := c.UnwrapKey(wrapped, priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnwrap, err)
	}
	blob, err := base64.StdEncoding.DecodeString(env.EncryptedBlob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadDecrypt, err)
	}
	plaintext, err := c.Decrypt(blob, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadDecrypt, err)
	}
	return plaintext, nil
}

// Seal serializes v as JSON and seals it for pub.
func Seal[T any](c Cipher, pub *rsa.PublicKey, v T) (Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode payload: %w", err)
	}
	return SealBytes(c, pub, data)
}

// OpenErr opens env and decodes the payload as T, reporting which stage failed.
func OpenErr[T any](c Cipher, priv *rsa.PrivateKey, env Envelope) (T, error) {
	var out T
	data, err := OpenBytes(c, priv, env)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrPayloadDecode, err)
	}
	return out, nil
}

// Open opens env and decodes the payload as T. Any failure yields false.
func Open[T any](c Cipher, priv *rsa.PrivateKey, env Envelope) (T, bool) {
	v, err := OpenErr[T](c, priv, env)
	return v, err == nil
}

// Stage names the protocol stage an open error came from: "key", "unwrap",
// "decrypt", "decode" or "unknown".
func Stage(err error) string {
	switch {
	case errors.Is(err, ErrMissingKey):
		return "key"
	case errors.Is(err, ErrKeyUnwrap):
		return "unwrap"
	case errors.Is(err, ErrPayloadDecrypt):
		return "decrypt"
	case errors.Is(err, ErrPayloadDecode):
		return "decode"
	default:
		return "unknown"
	}
}

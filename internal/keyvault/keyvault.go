// Package keyvault encrypts and decrypts per-document wallet private keys
// under a single process-wide master key. A DocumentSecrets ciphertext
// blob is opaque to the core; it is decrypted only inside chain-client
// calls by key-unwrap helpers that take this master key.
package keyvault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrMasterKeySize is returned when the supplied master key is not 32 bytes.
var ErrMasterKeySize = errors.New("keyvault: master key must be 32 bytes")

// ErrCiphertext is returned when a ciphertext is malformed or fails
// authentication under the master key.
var ErrCiphertext = errors.New("keyvault: ciphertext invalid or key mismatch")

// Vault seals and opens wallet-key material with a static master key,
// using the authenticated encryption already present in the
// go-ethereum dependency chain.
type Vault struct {
	key [32]byte
}

// New constructs a Vault from a 32-byte master key.
func New(masterKey []byte) (*Vault, error) {
	if len(masterKey) != 32 {
		return nil, ErrMasterKeySize
	}
	v := &Vault{}
	copy(v.key[:], masterKey)
	return v, nil
}

// Seal encrypts plaintext wallet-key bytes into a base64 ciphertext
// suitable for storage in the DocumentSecrets table.
func (v *Vault) Seal(plaintext []byte) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("keyvault: generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &v.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a ciphertext produced by Seal back into the raw wallet-key
// bytes.
func (v *Vault) Open(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("keyvault: decode ciphertext: %w", err)
	}
	if len(raw) < 24 {
		return nil, ErrCiphertext
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plaintext, ok := secretbox.Open(nil, raw[24:], &nonce, &v.key)
	if !ok {
		return nil, ErrCiphertext
	}
	return plaintext, nil
}

// Package cryptox implements key derivation and authenticated encryption
// for records at rest. Payloads are sealed with AES-256-GCM under a key
// derived from the user secret; the derived key lives only in a Session
// and is never persisted or transmitted.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// NonceSize is the GCM nonce length in bytes. A fresh random nonce is
	// generated for every Encrypt call; there is no code path that accepts
	// a caller-supplied nonce, since reuse under the same key breaks GCM.
	NonceSize = 12

	// SaltSize is the length of the per-installation random salt.
	SaltSize = 16
)

// Blob is the stored form of an encrypted payload. It is written and read
// as a unit; there is no partial state.
type Blob struct {
	Ciphertext []byte
	Nonce      []byte
	KeyVersion int
}

// DeriveKey derives a 32-byte key from the user secret using PBKDF2-SHA256.
// Iteration counts below common.MinKDFIterations are clamped up. The salt
// must be the per-installation random salt created at first run.
//
// There is no escrow path: losing the secret makes all sealed payloads
// permanently unreadable.
func DeriveKey(secret, salt []byte, iterations int) []byte {
	if iterations < common.MinKDFIterations {
		iterations = common.MinKDFIterations
	}
	return pbkdf2.Key(secret, salt, iterations, KeySize, sha256.New)
}

// MakeVerifier returns a hash of the derived key that is safe to share with
// the remote endpoint for login, without revealing the key itself.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// NewSalt returns a fresh per-installation salt.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// Encrypt seals plaintext under key with AES-256-GCM and a fresh random
// nonce, tagging the result with keyVersion.
func Encrypt(key []byte, keyVersion int, plaintext []byte) (*Blob, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(NonceSize)
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return &Blob{Ciphertext: ciphertext, Nonce: nonce, KeyVersion: keyVersion}, nil
}

// Decrypt opens a Blob sealed by Encrypt. It fails closed: a tag mismatch,
// truncated ciphertext, wrong nonce length or key-version mismatch all
// return common.ErrAuthenticationFailed with no partial output. Callers
// must treat that as corruption or tampering, not as a soft error.
func Decrypt(key []byte, keyVersion int, b *Blob) ([]byte, error) {
	if b.KeyVersion != keyVersion {
		return nil, fmt.Errorf("key version %d, blob has %d: %w",
			keyVersion, b.KeyVersion, common.ErrAuthenticationFailed)
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(b.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("bad nonce length %d: %w", len(b.Nonce), common.ErrAuthenticationFailed)
	}

	plaintext, err := aead.Open(nil, b.Nonce, b.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", common.ErrAuthenticationFailed)
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

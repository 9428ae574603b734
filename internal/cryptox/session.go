package cryptox

import (
	"sync"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
)

// Session holds the single in-memory derived key for the active session.
// It is explicit state passed to callers that need crypto, never a package
// global, so tests can run with distinct keys side by side.
//
// After Lock the key material is wiped and every Encrypt/Decrypt fails with
// common.ErrKeyLocked until Unlock is called again with a re-derived key.
type Session struct {
	mu         sync.RWMutex
	key        []byte
	keyVersion int
}

func NewSession() *Session {
	return &Session{}
}

// Unlock installs a derived key. The slice is copied, so the caller may
// wipe its own copy afterwards.
func (s *Session) Unlock(key []byte, keyVersion int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	common.WipeByteArray(s.key)
	s.key = make([]byte, len(key))
	copy(s.key, key)
	s.keyVersion = keyVersion
}

// Lock wipes the key. Subsequent crypto operations fail until Unlock.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	common.WipeByteArray(s.key)
	s.key = nil
}

// Unlocked reports whether a key is currently installed.
func (s *Session) Unlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != nil
}

// KeyVersion returns the version of the installed key, or 0 when locked.
func (s *Session) KeyVersion() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keyVersion
}

// Encrypt seals plaintext under the session key.
func (s *Session) Encrypt(plaintext []byte) (*Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return nil, common.ErrKeyLocked
	}
	return Encrypt(s.key, s.keyVersion, plaintext)
}

// Decrypt opens a Blob with the session key. The plaintext exists only in
// memory for the duration of the caller's use; nothing decrypted is ever
// written back to storage.
func (s *Session) Decrypt(b *Blob) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return nil, common.ErrKeyLocked
	}
	return Decrypt(s.key, s.keyVersion, b)
}

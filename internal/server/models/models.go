// Package models holds the server-side persistence types.
package models

import "time"

// User is one account. Salt and Verifier come from the client at
// registration; the server never sees the secret or a decryption key.
type User struct {
	ID       string
	UserName string
	Salt     []byte
	Verifier []byte
}

// SyncRecord is the server's copy of one client record: opaque ciphertext
// plus the version used for conflict detection.
type SyncRecord struct {
	UserID     string
	Table      string
	RecordID   string
	Version    int64
	Payload    []byte
	Nonce      []byte
	KeyVersion int
	Deleted    bool
	UpdatedAt  time.Time
}

// RefreshToken is one issued refresh token; rotation deletes the row and
// inserts a successor.
type RefreshToken struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

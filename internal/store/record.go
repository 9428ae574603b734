// Package store implements the dual-tier persistent store: a durable
// SQLite-backed record table fronted by a write-through in-memory mirror.
// Logical tables share one physical table and are namespaced by key prefix
// "table:id", so new tables never need schema migrations.
package store

import (
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/cryptox"
)

// Table names used by the application. Anything listed as sensitive in the
// store configuration is encrypted before it touches durable storage.
const (
	TablePainEntries = "pain_entries"
	TableSettings    = "settings"
)

// Record is a versioned application entity. For sensitive tables Payload
// holds AEAD ciphertext and Nonce/KeyVersion locate the sealing key; for
// plain tables Nonce is nil and Payload is stored as-is.
//
// Records are owned by the Store and mutated only through its write API.
// Deletion writes a tombstone (Deleted=true, payload dropped) rather than
// removing the row, so a deletion survives until the remote acknowledges it
// and cannot be resurrected by a stale sync.
type Record struct {
	Table      string
	ID         string
	Payload    []byte
	Nonce      []byte
	KeyVersion int
	Version    int64
	Deleted    bool
	UpdatedAt  time.Time
}

// Key returns the durable-store key "table:id".
func (r *Record) Key() string {
	return r.Table + ":" + r.ID
}

// Encrypted reports whether the payload is sealed.
func (r *Record) Encrypted() bool {
	return r.Nonce != nil
}

// Blob repackages the encrypted payload for cryptox.Decrypt.
func (r *Record) Blob() *cryptox.Blob {
	return &cryptox.Blob{Ciphertext: r.Payload, Nonce: r.Nonce, KeyVersion: r.KeyVersion}
}

// clone returns a shallow-safe copy so mirror readers never alias a record
// that a writer may still mutate.
func (r *Record) clone() *Record {
	c := *r
	c.Payload = append([]byte(nil), r.Payload...)
	if r.Nonce != nil {
		c.Nonce = append([]byte(nil), r.Nonce...)
	}
	return &c
}

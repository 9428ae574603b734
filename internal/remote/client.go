// Package remote is the wire boundary with the sync endpoint. The core
// owns nothing behind it: a Change goes out, and the answer is an ack, a
// conflict carrying the remote's newer state, or an error classified as
// retryable or terminal.
package remote

import "context"

// Operation names a mutation kind on the wire.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Change is one queued mutation in transit. Payload and Nonce carry the
// encrypted form; the remote never sees plaintext.
type Change struct {
	Table      string    `json:"table"`
	RecordID   string    `json:"recordId"`
	Operation  Operation `json:"operation"`
	Version    int64     `json:"version"`
	Payload    []byte    `json:"payload,omitempty"`
	Nonce      []byte    `json:"nonce,omitempty"`
	KeyVersion int       `json:"keyVersion,omitempty"`
}

// Conflict is the remote's answer when the sent version is stale: its
// current version and payload.
type Conflict struct {
	Version    int64  `json:"version"`
	Payload    []byte `json:"payload,omitempty"`
	Nonce      []byte `json:"nonce,omitempty"`
	KeyVersion int    `json:"keyVersion,omitempty"`
	Deleted    bool   `json:"deleted,omitempty"`
}

// Result of a successful exchange. Conflict is nil on acknowledgment.
type Result struct {
	Conflict *Conflict
}

// Client sends changes to the remote endpoint. Errors wrap
// common.ErrRetryableNetwork (timeout, 5xx, offline) or common.ErrTerminal
// (explicit rejection); anything else is treated as retryable by callers.
type Client interface {
	Send(ctx context.Context, change *Change) (*Result, error)
	Ping(ctx context.Context) error
}

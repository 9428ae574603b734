// Package metadata stores small key/value installation state: the KDF salt,
// the verifier for offline unlock, and similar one-off settings.
package metadata

import (
	"context"
)

// Well-known metadata keys.
const (
	KeySalt          = "salt"
	KeyVerifier      = "verifier"
	KeyKDFIterations = "kdf_iterations"
	KeyKeyVersion    = "key_version"
	KeyUsername      = "username"
)

type Repository interface {
	// Get returns nil with no error when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}

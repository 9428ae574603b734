// Package services contains application services for the pain tracker
// client. This file defines the authentication service: online/offline
// unlock, register, liveness probe, and housekeeping of local (offline)
// auth metadata.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/client/repositories/metadata"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/cryptox"
)

// ErrLocalDataNotAvailable means no offline auth metadata has been stored
// yet, so an offline unlock is impossible until one online login succeeds.
var ErrLocalDataNotAvailable = errors.New("local auth data not available")

// currentKeyVersion tags ciphertext produced under today's single key slot.
const currentKeyVersion = 1

// APIClient is the remote surface the auth service needs. The HTTP sync
// client satisfies it.
type APIClient interface {
	Register(ctx context.Context, username string, salt, verifier []byte) error
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) error
	Ping(ctx context.Context) error
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Register: create a new user on the remote with a fresh salt.
//   - OnlineLogin: authenticate remotely and persist offline auth data.
//   - OfflineLogin: derive and verify credentials against locally cached
//     data; only possible after at least one online login.
//   - Ping: check endpoint liveness.
//   - ClearOfflineData: wipe locally cached auth metadata.
//
// Both login variants return the derived working key and its version; the
// caller installs them into the crypto session and wipes the password.
type AuthService interface {
	Register(ctx context.Context, username string, password []byte) error
	OnlineLogin(ctx context.Context, username string, password []byte) ([]byte, int, error)
	OfflineLogin(ctx context.Context, username string, password []byte) ([]byte, int, error)
	Ping(ctx context.Context) error
	ClearOfflineData(ctx context.Context) error
}

type authService struct {
	client     APIClient
	meta       metadata.Repository
	iterations int
}

// NewAuthService constructs an AuthService bound to the given API client and
// metadata repository. iterations is the PBKDF2 cost used for new
// registrations; existing installations keep the count recorded at their
// first login.
func NewAuthService(client APIClient, meta metadata.Repository, iterations int) AuthService {
	return &authService{client: client, meta: meta, iterations: iterations}
}

func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	salt := cryptox.NewSalt()
	key := cryptox.DeriveKey(password, salt, a.iterations)
	defer common.WipeByteArray(key)
	verifier := cryptox.MakeVerifier(key)

	if err := a.client.Register(ctx, username, salt, verifier); err != nil {
		return fmt.Errorf("register error: %w", err)
	}
	return a.saveOfflineData(ctx, username, salt, verifier)
}

// OnlineLogin authenticates against the remote, saves offline metadata
// (username, salt, verifier, KDF cost), and returns the derived working key.
func (a *authService) OnlineLogin(ctx context.Context, username string, password []byte) ([]byte, int, error) {
	salt, err := a.client.GetSalt(ctx, username)
	if err != nil {
		return nil, 0, fmt.Errorf("get salt error: %w", err)
	}

	key := cryptox.DeriveKey(password, salt, a.iterations)
	verifier := cryptox.MakeVerifier(key)

	if err := a.client.Login(ctx, username, verifier); err != nil {
		common.WipeByteArray(key)
		return nil, 0, fmt.Errorf("login error: %w", err)
	}

	if err := a.saveOfflineData(ctx, username, salt, verifier); err != nil {
		common.WipeByteArray(key)
		return nil, 0, fmt.Errorf("offline data saving error: %w", err)
	}
	return key, currentKeyVersion, nil
}

// OfflineLogin derives a working key from (password, salt) stored locally
// and verifies it against the locally cached verifier in constant time.
func (a *authService) OfflineLogin(ctx context.Context, username string, password []byte) ([]byte, int, error) {
	savedUsername, err := a.meta.Get(ctx, metadata.KeyUsername)
	if err != nil {
		return nil, 0, err
	}
	if savedUsername == nil {
		return nil, 0, ErrLocalDataNotAvailable
	}
	if string(savedUsername) != username {
		return nil, 0, common.ErrUnauthorized
	}

	salt, err := a.meta.Get(ctx, metadata.KeySalt)
	if err != nil {
		return nil, 0, err
	}
	verifier, err := a.meta.Get(ctx, metadata.KeyVerifier)
	if err != nil {
		return nil, 0, err
	}
	if salt == nil || verifier == nil {
		return nil, 0, ErrLocalDataNotAvailable
	}

	iterations, err := a.savedIterations(ctx)
	if err != nil {
		return nil, 0, err
	}

	key := cryptox.DeriveKey(password, salt, iterations)
	candidate := cryptox.MakeVerifier(key)

	if subtle.ConstantTimeCompare(verifier, candidate) == 0 {
		common.WipeByteArray(key)
		return nil, 0, common.ErrUnauthorized
	}
	return key, currentKeyVersion, nil
}

func (a *authService) savedIterations(ctx context.Context) (int, error) {
	raw, err := a.meta.Get(ctx, metadata.KeyKDFIterations)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return a.iterations, nil
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("corrupt kdf_iterations metadata: %w", err)
	}
	return n, nil
}

// saveOfflineData persists the metadata required for offline unlock.
func (a *authService) saveOfflineData(ctx context.Context, username string, salt, verifier []byte) error {
	if err := a.meta.Set(ctx, metadata.KeyUsername, []byte(username)); err != nil {
		return err
	}
	if err := a.meta.Set(ctx, metadata.KeySalt, salt); err != nil {
		return err
	}
	if err := a.meta.Set(ctx, metadata.KeyVerifier, verifier); err != nil {
		return err
	}
	return a.meta.Set(ctx, metadata.KeyKDFIterations, []byte(strconv.Itoa(a.iterations)))
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) ClearOfflineData(ctx context.Context) error {
	return a.meta.Clear(ctx)
}

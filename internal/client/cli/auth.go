package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts the user for a username and password and attempts to
// create a new account via the AuthService.
//
// On success it prints "Success!" and returns nil. The password byte slice
// is securely wiped before returning.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Register(ctx, username, password); err != nil {
		printlnFn("Registration failed:", err.Error())
		return err
	}

	printlnFn("Success!")
	return nil
}

// Login prompts for credentials and unlocks the crypto session.
//
// The method first attempts an online login. If the endpoint is unreachable
// (errors.Is(err, common.ErrRetryableNetwork)), it falls back to the local
// verifier, so a known device unlocks without a network. The derived key is
// installed into the session; the password is wiped before returning.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	key, keyVersion, err := a.authService.OnlineLogin(ctx, username, password)
	if err != nil {
		if !errors.Is(err, common.ErrRetryableNetwork) {
			printlnFn("Login failed:", err.Error())
			return err
		}
		printlnFn("Endpoint unavailable, trying offline unlock...")
		key, keyVersion, err = a.authService.OfflineLogin(ctx, username, password)
		if err != nil {
			printlnFn("Offline unlock failed:", err.Error())
			return err
		}
		printlnFn("Unlocked offline; changes will sync when the connection returns.")
	}

	a.session.Unlock(key, keyVersion)
	common.WipeByteArray(key)

	if err := a.records.Rebuild(ctx); err != nil {
		a.log.Warn(ctx, "cache rebuild failed", "error", err)
	}
	return nil
}

// Lock wipes the in-memory key. Local data stays; decrypted reads fail
// until the next login.
func (a *App) Lock(ctx context.Context) error {
	a.session.Lock()
	printlnFn("Locked.")
	return nil
}

func confirm(a *App, prompt string) (bool, error) {
	answer, err := getSimpleText(a.reader, fmt.Sprintf("%s (y/N)", prompt), os.Stdout)
	if err != nil {
		return false, err
	}
	return answer == "y" || answer == "Y", nil
}

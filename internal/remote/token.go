package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// tokenPair is the access/refresh pair issued by the remote on login.
type tokenPair struct {
	Access  string `json:"accessToken"`
	Refresh string `json:"refreshToken"`
}

// refreshLeeway is how close to expiry an access token may get before the
// client rotates it instead of risking a mid-drain 401.
const refreshLeeway = 30 * time.Second

// freshAccessToken returns the current access token, rotating the pair
// first when the token is expired or about to expire. The expiry comes
// from the token's own exp claim; the signature is the server's concern,
// so it is not verified here.
func (c *HTTPClient) freshAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	access, refresh := c.tokens.Access, c.tokens.Refresh
	c.mu.Unlock()

	if access == "" {
		// No session yet: send unauthenticated and let the server decide.
		return "", nil
	}
	if !tokenExpiresWithin(access, refreshLeeway) {
		return access, nil
	}
	if refresh == "" {
		return "", fmt.Errorf("access token expired: %w", common.ErrUnauthorized)
	}
	if err := c.refreshTokens(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens.Access, nil
}

// refreshTokens rotates the pair via /v1/token/refresh.
func (c *HTTPClient) refreshTokens(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.tokens.Refresh
	c.mu.Unlock()
	if refresh == "" {
		return common.ErrUnauthorized
	}

	payload, err := json.Marshal(map[string]string{"refreshToken": refresh})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/token/refresh", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("token refresh: %w", common.ErrRetryableNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return common.ErrRefreshTokenExpired
	}
	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp)
	}

	var tokens tokenPair
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return err
	}
	c.mu.Lock()
	c.tokens = tokens
	c.mu.Unlock()
	return nil
}

// tokenExpiresWithin inspects the exp claim without verifying the
// signature. Unparseable tokens count as expiring, which forces a rotation
// attempt rather than a guaranteed 401.
func tokenExpiresWithin(token string, leeway time.Duration) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false // no exp claim means the server owns the lifetime
	}
	return time.Until(exp.Time) < leeway
}

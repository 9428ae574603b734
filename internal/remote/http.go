package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
)

// HTTPClient talks JSON over HTTP to the sync endpoint:
//
//	POST /v1/sync          -> 200 ack, 409 conflict body, 4xx terminal
//	GET  /v1/ping          -> reachability probe
//	POST /v1/register      -> salt+verifier account creation
//	GET  /v1/salt          -> per-user KDF salt for login
//	POST /v1/login         -> access/refresh token pair
//	POST /v1/token/refresh -> token rotation
//
// Timeouts and transport errors are classified retryable; an explicit
// rejection is terminal. The client holds the token pair and refreshes
// proactively when the access token is about to expire.
type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu     sync.Mutex
	tokens tokenPair
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Send(ctx context.Context, change *Change) (*Result, error) {
	resp, err := c.postJSON(ctx, "/v1/sync", change, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return &Result{}, nil

	case resp.StatusCode == http.StatusConflict:
		var conflict Conflict
		if err := json.NewDecoder(resp.Body).Decode(&conflict); err != nil {
			return nil, fmt.Errorf("malformed conflict body: %w", common.ErrRetryableNetwork)
		}
		return &Result{Conflict: &conflict}, nil

	default:
		return nil, classifyStatus(resp)
	}
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/ping", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", common.ErrRetryableNetwork)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping status %d: %w", resp.StatusCode, common.ErrRetryableNetwork)
	}
	return nil
}

// Register creates an account from the username, per-installation salt and
// key verifier. The secret itself never goes on the wire.
func (c *HTTPClient) Register(ctx context.Context, username string, salt, verifier []byte) error {
	body := map[string]any{"username": username, "salt": salt, "verifier": verifier}
	resp, err := c.postJSON(ctx, "/v1/register", body, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return classifyStatus(resp)
	}
	return nil
}

// GetSalt fetches the stored KDF salt so a fresh device can re-derive the
// same key from the user secret.
func (c *HTTPClient) GetSalt(ctx context.Context, username string) ([]byte, error) {
	u := c.baseURL + "/v1/salt?username=" + url.QueryEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get salt: %w", common.ErrRetryableNetwork)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}
	var out struct {
		Salt []byte `json:"salt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Salt, nil
}

// Login exchanges the key verifier for a token pair.
func (c *HTTPClient) Login(ctx context.Context, username string, verifier []byte) error {
	body := map[string]any{"username": username, "verifier": verifier}
	resp, err := c.postJSON(ctx, "/v1/login", body, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return common.ErrUnauthorized
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

// postJSON sends a JSON body. When authed is set, the access token is
// attached and refreshed first if it is about to expire; a 401 triggers one
// refresh-and-retry before the error is returned.
func (c *HTTPClient) postJSON(ctx context.Context, path string, body any, authed bool) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	do := func(token string) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set(common.AccessTokenHeaderName, "Bearer "+token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, common.ErrRetryableNetwork)
		}
		return resp, nil
	}

	var token string
	if authed {
		if token, err = c.freshAccessToken(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := do(token)
	if err != nil {
		return nil, err
	}

	if authed && resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if err := c.refreshTokens(ctx); err != nil {
			return nil, err
		}
		c.mu.Lock()
		token = c.tokens.Access
		c.mu.Unlock()
		return do(token)
	}
	return resp, nil
}

// classifyStatus maps a non-success HTTP status onto the failure taxonomy:
// explicit rejections are terminal, everything transient is retryable.
func classifyStatus(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return fmt.Errorf("status %d: %s: %w", resp.StatusCode, bytes.TrimSpace(b), common.ErrRetryableNetwork)
	default:
		return fmt.Errorf("status %d: %s: %w", resp.StatusCode, bytes.TrimSpace(b), common.ErrTerminal)
	}
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/logging"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/remote"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/server/auth"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/server/models"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/server/services"
)

const testSecret = "test-secret"

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeUsers struct {
	registered  []string
	registerErr error

	salt    []byte
	saltErr error

	pair     *services.TokenPair
	loginErr error

	refreshErr error
}

func (f *fakeUsers) Register(ctx context.Context, username string, salt, verifier []byte) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = append(f.registered, username)
	return &models.User{ID: "u1", UserName: username, Salt: salt, Verifier: verifier}, nil
}

func (f *fakeUsers) GetSalt(ctx context.Context, username string) ([]byte, error) {
	return f.salt, f.saltErr
}

func (f *fakeUsers) Login(ctx context.Context, username string, verifier []byte) (*services.TokenPair, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.pair, nil
}

func (f *fakeUsers) RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.pair, nil
}

func (f *fakeUsers) VerifyAccessToken(tokenString string) (string, error) {
	return auth.GetUserIDFromToken(tokenString, []byte(testSecret))
}

type fakeSync struct {
	lastUserID string
	lastChange *remote.Change
	conflict   *remote.Conflict
	err        error
}

func (f *fakeSync) Apply(ctx context.Context, userID string, change *remote.Change) (*remote.Conflict, error) {
	f.lastUserID = userID
	f.lastChange = change
	return f.conflict, f.err
}

func newTestServer(t *testing.T, users *fakeUsers, sync *fakeSync) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(users, sync, discardLogger()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func accessToken(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return tok
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPing(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{}, &fakeSync{})

	resp, err := http.Get(srv.URL + "/v1/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister_Created(t *testing.T) {
	users := &fakeUsers{}
	srv := newTestServer(t, users, &fakeSync{})

	resp := postJSON(t, srv.URL+"/v1/register", map[string]any{
		"username": "alice", "salt": []byte("s"), "verifier": []byte("v"),
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{"alice"}, users.registered)
}

func TestRegister_MissingFields(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{}, &fakeSync{})

	resp := postJSON(t, srv.URL+"/v1/register", map[string]any{"username": "alice"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSalt_ReturnsStoredSalt(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{salt: []byte("salty")}, &fakeSync{})

	resp, err := http.Get(srv.URL + "/v1/salt?username=alice")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Salt []byte `json:"salt"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []byte("salty"), out.Salt)
}

func TestSalt_RequiresUsername(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{}, &fakeSync{})

	resp, err := http.Get(srv.URL + "/v1/salt")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogin_ReturnsTokenPair(t *testing.T) {
	users := &fakeUsers{pair: &services.TokenPair{AccessToken: "a", RefreshToken: "r"}}
	srv := newTestServer(t, users, &fakeSync{})

	resp := postJSON(t, srv.URL+"/v1/login", map[string]any{
		"username": "alice", "verifier": []byte("v"),
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "a", out["accessToken"])
	assert.Equal(t, "r", out["refreshToken"])
}

func TestLogin_Unauthorized(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{loginErr: common.ErrUnauthorized}, &fakeSync{})

	resp := postJSON(t, srv.URL+"/v1/login", map[string]any{
		"username": "alice", "verifier": []byte("bad"),
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefresh_ExpiredIsUnauthorized(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{refreshErr: common.ErrRefreshTokenExpired}, &fakeSync{})

	resp := postJSON(t, srv.URL+"/v1/token/refresh", map[string]string{"refreshToken": "old"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSync_RequiresAuth(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{}, &fakeSync{})

	resp := postJSON(t, srv.URL+"/v1/sync", &remote.Change{Table: "t", RecordID: "r"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSync_BadToken(t *testing.T) {
	srv := newTestServer(t, &fakeUsers{}, &fakeSync{})

	resp := postJSON(t, srv.URL+"/v1/sync", &remote.Change{Table: "t", RecordID: "r"},
		map[string]string{common.AccessTokenHeaderName: "Bearer not.a.jwt"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSync_Ack(t *testing.T) {
	sync := &fakeSync{}
	srv := newTestServer(t, &fakeUsers{}, sync)

	resp := postJSON(t, srv.URL+"/v1/sync",
		&remote.Change{Table: "pain_entries", RecordID: "r1", Operation: remote.OpCreate, Version: 1},
		map[string]string{common.AccessTokenHeaderName: "Bearer " + accessToken(t, "u42")})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u42", sync.lastUserID)
	require.NotNil(t, sync.lastChange)
	assert.Equal(t, "pain_entries", sync.lastChange.Table)
}

func TestSync_ConflictBody(t *testing.T) {
	sync := &fakeSync{conflict: &remote.Conflict{Version: 7, Payload: []byte("server"), Deleted: true}}
	srv := newTestServer(t, &fakeUsers{}, sync)

	resp := postJSON(t, srv.URL+"/v1/sync",
		&remote.Change{Table: "pain_entries", RecordID: "r1", Operation: remote.OpUpdate, Version: 3},
		map[string]string{common.AccessTokenHeaderName: "Bearer " + accessToken(t, "u1")})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var conflict remote.Conflict
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conflict))
	assert.Equal(t, int64(7), conflict.Version)
	assert.Equal(t, []byte("server"), conflict.Payload)
	assert.True(t, conflict.Deleted)
}

// The client transport and the server handlers share a wire format; drive one
// through the other to catch drift.
func TestClientRoundTrip_SyncConflict(t *testing.T) {
	sync := &fakeSync{conflict: &remote.Conflict{Version: 9, Payload: []byte("current")}}
	users := &fakeUsers{pair: &services.TokenPair{
		AccessToken:  accessToken(t, "u1"),
		RefreshToken: "refresh-1",
	}}
	srv := newTestServer(t, users, sync)

	client := remote.NewHTTPClient(srv.URL, 2*time.Second)
	require.NoError(t, client.Login(context.Background(), "alice", []byte("v")))

	res, err := client.Send(context.Background(),
		&remote.Change{Table: "pain_entries", RecordID: "r1", Operation: remote.OpUpdate, Version: 2})
	require.NoError(t, err)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, int64(9), res.Conflict.Version)
	assert.Equal(t, []byte("current"), res.Conflict.Payload)
}

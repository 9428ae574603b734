// Package httpapi exposes the sync server over HTTP/JSON. The routes mirror
// what the client transport expects:
//
//	POST /v1/sync          authenticated; 200 ack or 409 with conflict body
//	GET  /v1/ping          reachability probe
//	POST /v1/register      account creation
//	GET  /v1/salt          per-user KDF salt lookup
//	POST /v1/login         verifier exchange for a token pair
//	POST /v1/token/refresh refresh token rotation
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/common"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/logging"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/remote"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/server/models"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/server/services"
)

// UserProvider is the account surface the handlers need.
type UserProvider interface {
	Register(ctx context.Context, username string, salt, verifier []byte) (*models.User, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	VerifyAccessToken(tokenString string) (string, error)
}

// SyncProvider applies one client change for an authenticated user.
type SyncProvider interface {
	Apply(ctx context.Context, userID string, change *remote.Change) (*remote.Conflict, error)
}

// Server wires the account and sync services to HTTP handlers.
type Server struct {
	users UserProvider
	sync  SyncProvider
	log   logging.Logger
}

func NewServer(users UserProvider, sync SyncProvider, log logging.Logger) *Server {
	return &Server{users: users, sync: sync, log: log}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/ping", s.handlePing)
	mux.HandleFunc("POST /v1/register", s.handleRegister)
	mux.HandleFunc("GET /v1/salt", s.handleSalt)
	mux.HandleFunc("POST /v1/login", s.handleLogin)
	mux.HandleFunc("POST /v1/token/refresh", s.handleRefresh)
	mux.Handle("POST /v1/sync", s.requireAuth(http.HandlerFunc(s.handleSync)))
	return mux
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Salt     []byte `json:"salt,omitempty"`
	Verifier []byte `json:"verifier,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || len(req.Salt) == 0 || len(req.Verifier) == 0 {
		http.Error(w, "username, salt and verifier are required", http.StatusBadRequest)
		return
	}

	if _, err := s.users.Register(r.Context(), req.Username, req.Salt, req.Verifier); err != nil {
		s.log.Warn(r.Context(), "registration failed", "username", req.Username, "error", err)
		http.Error(w, "registration failed", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleSalt(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	salt, err := s.users.GetSalt(r.Context(), username)
	if err != nil {
		s.log.Error(r.Context(), "salt lookup failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"salt": salt})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	pair, err := s.users.Login(r.Context(), req.Username, req.Verifier)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		s.log.Error(r.Context(), "login failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeTokenPair(w, pair)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	pair, err := s.users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) || errors.Is(err, common.ErrRefreshTokenExpired) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		s.log.Error(r.Context(), "token refresh failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeTokenPair(w, pair)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	var change remote.Change
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if change.Table == "" || change.RecordID == "" {
		http.Error(w, "table and recordId are required", http.StatusBadRequest)
		return
	}

	conflict, err := s.sync.Apply(r.Context(), userID, &change)
	if err != nil {
		s.log.Error(r.Context(), "sync apply failed", "table", change.Table, "recordId", change.RecordID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if conflict != nil {
		writeJSON(w, http.StatusConflict, conflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeTokenPair(w http.ResponseWriter, pair *services.TokenPair) {
	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

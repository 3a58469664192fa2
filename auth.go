/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"
)

// Account is a registered identity. The stable UID, not the username,
// keys the player profile store.
type Account struct {
	UID          string    `json:"uid"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type accountStore struct {
	mu       sync.RWMutex
	path     string
	accounts map[string]*Account // keyed by lowercase username
}

func newAccountStore(path string) (*accountStore, error) {
	s := &accountStore{path: path, accounts: map[string]*Account{}}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if b, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(b, &s.accounts); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *accountStore) save() error {
	s.mu.RLock()
	b, err := json.MarshalIndent(s.accounts, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}

func (s *accountStore) get(username string) (*Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[strings.ToLower(username)]
	return a, ok
}

func (s *accountStore) put(a *Account) error {
	s.mu.Lock()
	s.accounts[strings.ToLower(a.Username)] = a
	s.mu.Unlock()
	return s.save()
}

// Auth issues and verifies the HS256 tokens every other endpoint and
// the websocket upgrade require.
type Auth struct {
	accounts *accountStore
	key      []byte
	issuer   string
	ttl      time.Duration
}

func NewAuth(dataDir string, ttl time.Duration) (*Auth, error) {
	accounts, err := newAccountStore(filepath.Join(dataDir, "accounts.json"))
	if err != nil {
		return nil, err
	}

	keyPath := filepath.Join(dataDir, "jwt.key")
	key, err := os.ReadFile(keyPath)
	if err != nil || len(key) < 32 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		if err := os.WriteFile(keyPath, key, 0o600); err != nil {
			return nil, err
		}
	}

	return &Auth{accounts: accounts, key: key, issuer: "trividuel", ttl: ttl}, nil
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	UID      string `json:"uid"`
	Username string `json:"username"`
}

func (a *Auth) HandleRegister(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 6 {
		http.Error(w, "invalid username or password too short", http.StatusBadRequest)
		return
	}
	if _, ok := a.accounts.get(req.Username); ok {
		http.Error(w, "username already exists", http.StatusConflict)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "hash failed", http.StatusInternalServerError)
		return
	}

	account := &Account{
		UID:          uuid.NewString(),
		Username:     req.Username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := a.accounts.put(account); err != nil {
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}

	a.writeToken(w, account)
}

func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	account, ok := a.accounts.get(req.Username)
	if !ok || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	a.writeToken(w, account)
}

func (a *Auth) writeToken(w http.ResponseWriter, account *Account) {
	claims := jwt.MapClaims{
		"sub":  account.UID,
		"name": account.Username,
		"iss":  a.issuer,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(a.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		http.Error(w, "token signing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(loginResponse{
		Token:    signed,
		UID:      account.UID,
		Username: account.Username,
	})
}

// AuthedUser is the verified identity attached to a request.
type AuthedUser struct {
	UID  string
	Name string
}

var errInvalidToken = errors.New("invalid or expired token")

// ParseToken verifies a token and extracts the identity.
func (a *Auth) ParseToken(token string) (AuthedUser, error) {
	if token == "" {
		return AuthedUser{}, errInvalidToken
	}

	t, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return a.key, nil
	})
	if err != nil || !t.Valid {
		return AuthedUser{}, errInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return AuthedUser{}, errInvalidToken
	}
	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return AuthedUser{}, errInvalidToken
	}
	if name == "" {
		name = "Anonymous"
	}
	return AuthedUser{UID: sub, Name: name}, nil
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Protected wraps a handler with token verification.
func (a *Auth) Protected(next func(http.ResponseWriter, *http.Request, httprouter.Params, AuthedUser)) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		user, err := a.ParseToken(tokenFromRequest(r))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r, p, user)
	}
}

/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T) *Auth {
	t.Helper()

	auth, err := NewAuth(t.TempDir(), time.Hour)
	require.NoError(t, err)
	return auth
}

func postJSON(handler httprouter.Handle, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req, nil)
	return rec
}

func TestRegisterIssuesValidToken(t *testing.T) {
	auth := newTestAuth(t)

	rec := postJSON(auth.HandleRegister, "/register", `{"username":"dana","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.UID)
	assert.Equal(t, "dana", resp.Username)

	user, err := auth.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.UID, user.UID)
	assert.Equal(t, "dana", user.Name)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	auth := newTestAuth(t)

	rec := postJSON(auth.HandleRegister, "/register", `{"username":"dana","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Usernames are case-insensitive.
	rec = postJSON(auth.HandleRegister, "/register", `{"username":"DANA","password":"hunter22"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	auth := newTestAuth(t)

	rec := postJSON(auth.HandleRegister, "/register", `{"username":"","password":"hunter22"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(auth.HandleRegister, "/register", `{"username":"dana","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(auth.HandleRegister, "/register", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginVerifiesPassword(t *testing.T) {
	auth := newTestAuth(t)
	postJSON(auth.HandleRegister, "/register", `{"username":"dana","password":"hunter22"}`)

	rec := postJSON(auth.HandleLogin, "/login", `{"username":"dana","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(auth.HandleLogin, "/login", `{"username":"nobody","password":"hunter22"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(auth.HandleLogin, "/login", `{"username":"dana","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
}

func TestAccountsPersistAcrossRestarts(t *testing.T) {
	dir := t.TempDir()

	auth, err := NewAuth(dir, time.Hour)
	require.NoError(t, err)
	rec := postJSON(auth.HandleRegister, "/register", `{"username":"dana","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var first loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	reloaded, err := NewAuth(dir, time.Hour)
	require.NoError(t, err)
	rec = postJSON(reloaded.HandleLogin, "/login", `{"username":"dana","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var again loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, first.UID, again.UID, "the stable UID survives a restart")

	// Same signing key reloaded from disk, so old tokens still verify.
	_, err = reloaded.ParseToken(first.Token)
	assert.NoError(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	auth := newTestAuth(t)

	_, err := auth.ParseToken("")
	assert.ErrorIs(t, err, errInvalidToken)

	_, err = auth.ParseToken("not.a.token")
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestParseTokenRejectsForeignKey(t *testing.T) {
	auth := newTestAuth(t)
	other := newTestAuth(t)

	rec := postJSON(other.HandleRegister, "/register", `{"username":"mallory","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	_, err := auth.ParseToken(resp.Token)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestProtectedRequiresToken(t *testing.T) {
	auth := newTestAuth(t)

	rec := postJSON(auth.HandleRegister, "/register", `{"username":"dana","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	var got AuthedUser
	handler := auth.Protected(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params, user AuthedUser) {
		got = user
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	w := httptest.NewRecorder()
	handler(w, req, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	w = httptest.NewRecorder()
	handler(w, req, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, resp.UID, got.UID)
	assert.Equal(t, "dana", got.Name)

	// The websocket path passes the token as a query parameter instead.
	req = httptest.NewRequest(http.MethodGet, "/ws?token="+resp.Token, nil)
	w = httptest.NewRecorder()
	handler(w, req, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamevault/pkg/database"
)

func testTokens() TokenService {
	return TokenService{Secret: []byte("test-secret"), Issuer: "gamevault", Duration: time.Hour}
}

func TestTokenRoundTrip(t *testing.T) {
	ts := testTokens()
	tok, exp, err := ts.Sign(&User{ID: "u1", Username: "ada", Email: "ada@example.com", TokenVersion: 3})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ts.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, 3, claims.TokenVersion)

	p := claims.Principal(tok)
	assert.Equal(t, "ada", p.Username)
	assert.Equal(t, tok, p.Token)
	assert.False(t, p.Expired(time.Now()))
}

func TestTokenRejectsTampering(t *testing.T) {
	ts := testTokens()
	tok, _, err := ts.Sign(&User{ID: "u1"})
	require.NoError(t, err)

	other := ts
	other.Secret = []byte("other")
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := ts
	wrongIssuer.Issuer = "someone-else"
	_, err = wrongIssuer.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := ts
	expired.Duration = -time.Minute
	old, _, err := expired.Sign(&User{ID: "u1"})
	require.NoError(t, err)
	_, err = ts.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	tok, ok = BearerToken("bearer   xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Bearer", "Bearer ", "Basic abc"} {
		_, ok := BearerToken(h)
		assert.False(t, ok, h)
	}
}

func newServerDB(t *testing.T) *Repo {
	t.Helper()
	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(t.TempDir(), "server.db")}, database.SchemaServer)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepo(db)
}

func TestRepoCreateAndLookup(t *testing.T) {
	repo := newServerDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, User{ID: "u1", Username: "ada", Email: "Ada@Example.com", PasswordHash: "h"}))
	err := repo.CreateUser(ctx, User{ID: "u2", Username: "ada", Email: "other@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrUserExists)

	u, err := repo.GetByLogin(ctx, "ADA@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)

	u, err = repo.GetByLogin(ctx, "ada")
	require.NoError(t, err)
	require.NotNil(t, u)

	u, err = repo.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, repo.BumpTokenVersion(ctx, "u1"))
	v, err := repo.GetTokenVersion(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	assert.Error(t, repo.BumpTokenVersion(ctx, "missing"))
}

func newRouter(t *testing.T) (*gin.Engine, *Repo) {
	gin.SetMode(gin.TestMode)
	repo := newServerDB(t)
	r := gin.New()
	NewHandler(repo, testTokens(), nil).RegisterRoutes(r.Group("/auth"))
	return r, repo
}

func do(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var payload io.Reader = http.NoBody
	if body != nil {
		b, _ := json.Marshal(body)
		payload = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerRegisterLoginLogout(t *testing.T) {
	r, _ := newRouter(t)

	w := do(r, http.MethodPost, "/auth/register", "", gin.H{"username": "ada", "email": "ada@example.com", "password": "password1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/auth/register", "", gin.H{"username": "ada", "email": "x@example.com", "password": "password1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/auth/login", "", gin.H{"login": "ada", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/auth/login", "", gin.H{"email": "ada@example.com", "password": "password1"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ada", resp.User.Username)

	w = do(r, http.MethodGet, "/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ada@example.com"`)

	w = do(r, http.MethodPost, "/auth/logout", resp.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/auth/me", resp.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "logout revokes the token")
}

func TestHandlerChangePassword(t *testing.T) {
	r, _ := newRouter(t)

	w := do(r, http.MethodPost, "/auth/register", "", gin.H{"username": "bob", "email": "bob@example.com", "password": "password1"})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = do(r, http.MethodPost, "/auth/change-password", resp.Token, gin.H{"old_password": "password1", "new_password": "password2"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/auth/login", "", gin.H{"login": "bob", "password": "password2"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionPersistsAndNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	s, err := OpenSession(path)
	require.NoError(t, err)

	_, ok := s.Current()
	assert.False(t, ok)

	events, cancel := s.Subscribe()
	defer cancel()

	p := Principal{UserID: "u1", Username: "ada", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.Login(p))
	ev := <-events
	assert.Equal(t, EventLogin, ev.Type)
	assert.Equal(t, "u1", ev.Principal.UserID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	restored, err := OpenSession(path)
	require.NoError(t, err)
	cur, ok := restored.Current()
	require.True(t, ok)
	assert.Equal(t, "tok", cur.Token)

	require.NoError(t, s.Logout())
	ev = <-events
	assert.Equal(t, EventLogout, ev.Type)
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, s.Logout(), "logout twice is fine")
}

func TestSessionDropsExpiredToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	b, _ := json.Marshal(Principal{UserID: "u1", Token: "old", ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(t, os.WriteFile(path, b, 0o600))

	s, err := OpenSession(path)
	require.NoError(t, err)
	_, ok := s.Current()
	assert.False(t, ok)

	assert.Error(t, s.Login(Principal{}))
}

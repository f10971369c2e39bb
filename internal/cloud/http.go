package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"gamevault/internal/auth"
	"gamevault/internal/library"
	"gamevault/pkg/models"
)

// HTTPCollection talks to the api-server: it signs users in and exposes
// their cloud library as a library.Store.
type HTTPCollection struct {
	BaseURL string
	HTTP    *http.Client
	log     *zap.Logger
}

func NewHTTPCollection(baseURL string, hc *http.Client, log *zap.Logger) *HTTPCollection {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPCollection{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    hc,
		log:     log.With(zap.String("component", "cloud-http")),
	}
}

// StatusError is a non-2xx answer of the api-server.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api-server returned %d: %s", e.Status, e.Body)
}

type loginResponse struct {
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (r loginResponse) principal() auth.Principal {
	p := auth.Principal{
		UserID:   r.User.ID,
		Username: r.User.Username,
		Email:    r.User.Email,
		Token:    r.Token,
	}
	if t, err := time.Parse(time.RFC3339, r.ExpiresAt); err == nil {
		p.ExpiresAt = t
	}
	return p
}

// Login exchanges credentials for a principal; login is a username or email.
func (c *HTTPCollection) Login(ctx context.Context, login, password string) (auth.Principal, error) {
	var out loginResponse
	body := map[string]string{"login": login, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &out); err != nil {
		return auth.Principal{}, fmt.Errorf("login: %w", err)
	}
	return out.principal(), nil
}

func (c *HTTPCollection) Register(ctx context.Context, username, email, password string) (auth.Principal, error) {
	var out loginResponse
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", body, &out); err != nil {
		return auth.Principal{}, fmt.Errorf("register: %w", err)
	}
	return out.principal(), nil
}

// Logout revokes every token of the user on the server.
func (c *HTTPCollection) Logout(ctx context.Context, p auth.Principal) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", p.Token, nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Stats returns the server-side play-state counts of the user.
func (c *HTTPCollection) Stats(ctx context.Context, p auth.Principal) (models.UserStats, error) {
	var st models.UserStats
	if p.Token == "" {
		return st, library.ErrNotAuthenticated
	}
	if err := c.do(ctx, http.MethodGet, "/users/library/stats", p.Token, nil, &st); err != nil {
		return st, fmt.Errorf("library stats: %w", err)
	}
	return st, nil
}

func (c *HTTPCollection) ForUser(p auth.Principal) library.Store {
	return &httpStore{c: c, token: p.Token}
}

type httpStore struct {
	c     *HTTPCollection
	token string
}

type putBody struct {
	Name     string           `json:"name,omitempty"`
	CoverURL *string          `json:"coverUrl,omitempty"`
	Status   models.PlayState `json:"status,omitempty"`
}

func (s *httpStore) Put(ctx context.Context, g models.OwnedGame) error {
	if s.token == "" {
		return library.ErrNotAuthenticated
	}
	body := putBody{Name: g.Name, CoverURL: g.CoverURL, Status: g.Status}
	if err := s.c.do(ctx, http.MethodPut, gamePath(g.GameID), s.token, body, nil); err != nil {
		return fmt.Errorf("put cloud game %d: %w", g.GameID, err)
	}
	return nil
}

func (s *httpStore) All(ctx context.Context) ([]models.OwnedGame, error) {
	if s.token == "" {
		return nil, library.ErrNotAuthenticated
	}
	var out struct {
		Items []models.OwnedGame `json:"items"`
	}
	if err := s.c.do(ctx, http.MethodGet, "/users/library", s.token, nil, &out); err != nil {
		return nil, fmt.Errorf("list cloud games: %w", err)
	}
	if out.Items == nil {
		out.Items = []models.OwnedGame{}
	}
	return out.Items, nil
}

// Delete succeeds when the game was already gone.
func (s *httpStore) Delete(ctx context.Context, gameID int64) error {
	if s.token == "" {
		return library.ErrNotAuthenticated
	}
	err := s.c.do(ctx, http.MethodDelete, gamePath(gameID), s.token, nil, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete cloud game %d: %w", gameID, err)
	}
	return nil
}

func gamePath(id int64) string {
	return "/users/library/" + strconv.FormatInt(id, 10)
}

func (c *HTTPCollection) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Debug("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

package cloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamevault/internal/auth"
	"gamevault/internal/library"
	"gamevault/pkg/models"
)

// fakeAPI mimics the api-server routes the collection calls.
type fakeAPI struct {
	mu    sync.Mutex
	games map[int64]models.OwnedGame
	auths []string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{games: map[int64]models.OwnedGame{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["password"] != "secret" {
			http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":       map[string]string{"id": "u1", "username": req["login"], "email": "a@b.c"},
			"token":      "tok",
			"expires_at": "2030-01-02T03:04:05Z",
		})
	})
	mux.HandleFunc("GET /users/library", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		items := []models.OwnedGame{}
		for _, g := range f.games {
			items = append(items, g)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"total": len(items), "items": items})
	})
	mux.HandleFunc("PUT /users/library/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var body models.OwnedGame
		var id int64
		if json.NewDecoder(r.Body).Decode(&body) != nil || json.Unmarshal([]byte(r.PathValue("id")), &id) != nil {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		body.GameID = id
		f.mu.Lock()
		f.games[id] = body.MergeInto(f.games[id])
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("DELETE /users/library/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	f.auths = append(f.auths, r.Header.Get("Authorization"))
	f.mu.Unlock()
}

func TestHTTPLogin(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := NewHTTPCollection(srv.URL+"/", nil, nil)

	p, err := c.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "tok", p.Token)
	assert.Equal(t, 2030, p.ExpiresAt.Year())

	_, err = c.Login(context.Background(), "alice", "wrong")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
}

func TestHTTPStoreRoundTrip(t *testing.T) {
	api, srv := newFakeAPI(t)
	store := NewHTTPCollection(srv.URL, srv.Client(), nil).ForUser(auth.Principal{UserID: "u1", Token: "tok"})
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, models.OwnedGame{GameID: 8, Name: "Hollow Knight"}))
	require.NoError(t, store.Put(ctx, models.OwnedGame{GameID: 8, Status: models.PlayStateCompleted}))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Hollow Knight", all[0].Name)
	assert.Equal(t, models.PlayStateCompleted, all[0].Status)

	assert.NoError(t, store.Delete(ctx, 8), "a missing game counts as deleted")

	for _, h := range api.auths {
		assert.Equal(t, "Bearer tok", h)
	}
}

func TestHTTPStoreWithoutToken(t *testing.T) {
	_, srv := newFakeAPI(t)
	store := NewHTTPCollection(srv.URL, nil, nil).ForUser(auth.Principal{UserID: "u1"})
	_, err := store.All(context.Background())
	assert.ErrorIs(t, err, library.ErrNotAuthenticated)
}

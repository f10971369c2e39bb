package library

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamevault/internal/auth"
	gvsync "gamevault/internal/sync"
	"gamevault/pkg/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func newRouter(t *testing.T, userID string) (*gin.Engine, *Repo, *recordingPublisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := openServer(t, "u1")
	pub := &recordingPublisher{}

	r := gin.New()
	users := r.Group("/users", func(c *gin.Context) {
		if userID != "" {
			c.Set(auth.CtxPrincipalKey, auth.Principal{UserID: userID})
		}
		c.Next()
	})
	NewHandler(repo, NewNotifier(gvsync.NewHub(nil), pub, nil), nil).RegisterRoutes(users)
	return r, repo, pub
}

func request(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerPutMergesAndPublishes(t *testing.T) {
	r, _, pub := newRouter(t, "u1")

	w := request(t, r, http.MethodPut, "/users/library/42", gin.H{"name": "Hades", "coverUrl": "https://img/c.jpg"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = request(t, r, http.MethodPut, "/users/library/42", gin.H{"status": "playing"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var g models.OwnedGame
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	assert.Equal(t, "Hades", g.Name)
	assert.Equal(t, models.PlayStatePlaying, g.Status)
	require.NotNil(t, g.CoverURL)

	assert.Equal(t, []string{"gamevault.library.updated", "gamevault.library.updated"}, pub.seen())
}

func TestHandlerRejectsBadInput(t *testing.T) {
	r, _, _ := newRouter(t, "u1")

	assert.Equal(t, http.StatusBadRequest, request(t, r, http.MethodPut, "/users/library/abc", gin.H{}).Code)
	assert.Equal(t, http.StatusBadRequest, request(t, r, http.MethodPut, "/users/library/0", gin.H{}).Code)
	assert.Equal(t, http.StatusBadRequest, request(t, r, http.MethodPut, "/users/library/1", gin.H{"status": "abandoned"}).Code)
	assert.Equal(t, http.StatusBadRequest, request(t, r, http.MethodGet, "/users/library?status=nope", nil).Code)
}

func TestHandlerRequiresPrincipal(t *testing.T) {
	r, _, _ := newRouter(t, "")
	assert.Equal(t, http.StatusUnauthorized, request(t, r, http.MethodGet, "/users/library", nil).Code)
}

func TestHandlerListGetDeleteStats(t *testing.T) {
	r, repo, pub := newRouter(t, "u1")
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, "u1", models.OwnedGame{GameID: 1, Name: "A", Status: models.PlayStateCompleted}))
	require.NoError(t, repo.Upsert(ctx, "u1", models.OwnedGame{GameID: 2, Name: "B"}))

	w := request(t, r, http.MethodGet, "/users/library?status=completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Total int                `json:"total"`
		Items []models.OwnedGame `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, int64(1), list.Items[0].GameID)

	assert.Equal(t, http.StatusOK, request(t, r, http.MethodGet, "/users/library/2", nil).Code)
	assert.Equal(t, http.StatusNotFound, request(t, r, http.MethodGet, "/users/library/3", nil).Code)

	w = request(t, r, http.MethodGet, "/users/library/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st models.UserStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Completed)

	assert.Equal(t, http.StatusOK, request(t, r, http.MethodDelete, "/users/library/2", nil).Code)
	assert.Equal(t, http.StatusNotFound, request(t, r, http.MethodDelete, "/users/library/2", nil).Code)
	assert.Equal(t, []string{"gamevault.library.deleted"}, pub.seen())
}

func TestNotifierKeepsEventOrder(t *testing.T) {
	hub := gvsync.NewHub(nil)
	server, client := net.Pipe()
	hub.Add(server)
	defer hub.Remove(server)
	defer client.Close()

	got := make(chan gvsync.LibraryEvent, 20)
	go func() {
		dec := json.NewDecoder(client)
		for {
			var ev gvsync.LibraryEvent
			if err := dec.Decode(&ev); err != nil {
				return
			}
			got <- ev
		}
	}()

	n := NewNotifier(hub, nil, nil)
	ctx := context.Background()
	for id := int64(1); id <= 5; id++ {
		n.Notify(ctx, gvsync.UpdatedEvent("u1", models.OwnedGame{GameID: id}))
		n.Notify(ctx, gvsync.DeletedEvent("u1", id))
	}

	for id := int64(1); id <= 5; id++ {
		for _, want := range []string{gvsync.EventLibraryUpdated, gvsync.EventLibraryDeleted} {
			select {
			case ev := <-got:
				assert.Equal(t, want, ev.Type)
				assert.Equal(t, id, ev.GameID)
			case <-time.After(2 * time.Second):
				t.Fatalf("missing %s for game %d", want, id)
			}
		}
	}
}

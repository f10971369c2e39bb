package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamevault/pkg/models"
)

type fakeSource struct {
	queries []string
	games   []models.Game
	details map[int64]models.GameDetails
	err     error
}

func (f *fakeSource) Games(_ context.Context, query string) ([]models.Game, error) {
	f.queries = append(f.queries, query)
	return f.games, f.err
}

func (f *fakeSource) GameDetails(_ context.Context, id int64) (*models.GameDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.details[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func newTestRouter(src Source) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(src).RegisterRoutes(r.Group("/catalog"))
	return r
}

func TestHandlerSearchBuildsQueryFromParams(t *testing.T) {
	src := &fakeSource{games: []models.Game{{ID: 1, Name: "Celeste"}}}
	r := newTestRouter(src)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/catalog/games?genres=8,9&genres=32&platforms=6&rating_min=60&sort=rating&dir=asc&page=2", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, src.queries, 1)

	want := DefaultFilterSpec()
	want.GenreIDs = []int{8, 9, 32}
	want.PlatformIDs = []int{6}
	want.Rating.From = 60
	want.Sort = SortRating
	want.Direction = SortAsc
	assert.Equal(t, BuildSearchQuery(want, 2), src.queries[0])

	var body struct {
		Page       int           `json:"page"`
		EndReached bool          `json:"end_reached"`
		Items      []models.Game `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Page)
	assert.True(t, body.EndReached)
	assert.Len(t, body.Items, 1)
}

func TestHandlerSearchMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&Error{Kind: KindAPI, Status: 401}, http.StatusBadGateway},
		{&Error{Kind: KindNetwork, Err: errors.New("dial")}, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := newTestRouter(&fakeSource{err: tc.err})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalog/games?q=x", nil))
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
	}
}

func TestHandlerDetails(t *testing.T) {
	src := &fakeSource{details: map[int64]models.GameDetails{5: {ID: 5, Name: "Tunic"}}}
	r := newTestRouter(src)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalog/games/5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Tunic")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalog/games/6", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalog/games/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerFacets(t *testing.T) {
	r := newTestRouter(&fakeSource{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalog/facets", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Split screen"`)
}

package search

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"gamevault/internal/catalog"
	"gamevault/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testDebounce = 20 * time.Millisecond

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []string
	respond func(ctx context.Context, query string) ([]models.Game, error)
}

func (f *fakeFetcher) Games(ctx context.Context, query string) ([]models.Game, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	f.mu.Unlock()
	return f.respond(ctx, query)
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func games(ids ...int64) []models.Game {
	out := make([]models.Game, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Game{ID: id})
	}
	return out
}

func idRange(from, to int64) []models.Game {
	var ids []int64
	for id := from; id <= to; id++ {
		ids = append(ids, id)
	}
	return games(ids...)
}

func ids(gs []models.Game) []int64 {
	out := make([]int64, 0, len(gs))
	for _, g := range gs {
		out = append(out, g.ID)
	}
	return out
}

func isPage(query string, page int) bool {
	return strings.Contains(query, "offset "+strconv.Itoa(page*catalog.PageSize)+";")
}

func await(t *testing.T, s *Session, done func(State) bool) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := s.Await(ctx, done)
	require.NoError(t, err, "last state: %+v", st)
	return st
}

// pages serves fixed pages and blocks on the given gate for page numbers
// listed in gates.
func pages(byPage map[int][]models.Game, gates map[int]chan struct{}) func(context.Context, string) ([]models.Game, error) {
	return func(ctx context.Context, q string) ([]models.Game, error) {
		for page, gate := range gates {
			if isPage(q, page) {
				select {
				case <-gate:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}
		for page, gs := range byPage {
			if isPage(q, page) {
				return gs, nil
			}
		}
		return nil, nil
	}
}

func TestInitialSearchRunsAfterDebounce(t *testing.T) {
	f := &fakeFetcher{respond: pages(map[int][]models.Game{0: games(1, 2)}, nil)}
	s := New(f, WithDebounce(testDebounce))
	defer s.Close()

	assert.Equal(t, PhaseInitial, s.State().Phase)

	st := await(t, s, Settled)
	assert.Equal(t, PhaseSuccess, st.Phase)
	assert.Equal(t, []int64{1, 2}, ids(st.Games))
	assert.False(t, st.EndReached)
	assert.Equal(t, 0, st.Page)
	assert.Len(t, f.Calls(), 1)
}

func TestRapidEditsCollapseIntoOneSearch(t *testing.T) {
	f := &fakeFetcher{respond: pages(map[int][]models.Game{0: games(1)}, nil)}
	s := New(f, WithDebounce(50*time.Millisecond))
	defer s.Close()

	s.UpdateQuery("z")
	s.UpdateQuery("ze")
	s.UpdateQuery("zel")
	s.UpdateQuery("zelda")

	st := await(t, s, Settled)
	assert.Equal(t, "zelda", st.Spec.Query)

	calls := f.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], `search "zelda";`)
}

func TestEqualSpecDoesNotSearchAgain(t *testing.T) {
	f := &fakeFetcher{respond: pages(map[int][]models.Game{0: games(1)}, nil)}
	s := New(f, WithDebounce(testDebounce))
	defer s.Close()

	s.UpdateQuery("doom")
	await(t, s, func(st State) bool { return Settled(st) && st.Spec.Query == "doom" })
	require.Len(t, f.Calls(), 1)

	spec := s.Spec()
	spec.GenreIDs = []int{5, 5}
	s.UpdateFilters(spec)
	spec.GenreIDs = nil
	s.UpdateFilters(spec)

	time.Sleep(5 * testDebounce)
	assert.Len(t, f.Calls(), 1)

	s.Retry()
	await(t, s, Settled)
	assert.Len(t, f.Calls(), 2)
}

func TestLatestSearchWins(t *testing.T) {
	oldStarted := make(chan struct{})
	f := &fakeFetcher{respond: func(ctx context.Context, q string) ([]models.Game, error) {
		if strings.Contains(q, `search "old"`) {
			close(oldStarted)
			<-ctx.Done()
			return games(99), nil
		}
		if strings.Contains(q, `search "new"`) {
			return games(1, 2, 3), nil
		}
		return nil, nil
	}}
	s := New(f, WithDebounce(testDebounce), WithInitialSpec(catalog.FilterSpec{Query: "old"}))
	defer s.Close()

	<-oldStarted
	s.UpdateQuery("new")

	st := await(t, s, func(st State) bool { return Settled(st) && st.Spec.Query == "new" })
	assert.Equal(t, []int64{1, 2, 3}, ids(st.Games))

	time.Sleep(2 * testDebounce)
	assert.Equal(t, []int64{1, 2, 3}, ids(s.State().Games))
}

func TestInitialFailureMovesToError(t *testing.T) {
	f := &fakeFetcher{respond: func(context.Context, string) ([]models.Game, error) {
		return nil, &catalog.Error{Kind: catalog.KindNetwork, Err: errors.New("dial tcp: refused")}
	}}
	s := New(f, WithDebounce(testDebounce))
	defer s.Close()

	st := await(t, s, Settled)
	assert.Equal(t, PhaseError, st.Phase)
	assert.Equal(t, catalog.KindNetwork, st.Kind())
	assert.NotEmpty(t, st.Message)
	assert.Empty(t, st.Games)
	assert.False(t, s.LoadMore(), "load more needs a successful search")
}

func TestLoadMoreIsGuardedWhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{respond: pages(
		map[int][]models.Game{0: idRange(1, 15), 1: idRange(16, 30)},
		map[int]chan struct{}{1: gate},
	)}
	s := New(f, WithDebounce(testDebounce))
	defer s.Close()
	await(t, s, Settled)

	assert.True(t, s.LoadMore())
	assert.False(t, s.LoadMore())
	assert.True(t, s.State().LoadingMore)

	close(gate)
	st := await(t, s, Settled)

	assert.Len(t, f.Calls(), 2)
	assert.Len(t, st.Games, 30)
	assert.Equal(t, 1, st.Page)
	assert.False(t, st.EndReached)
}

func TestLoadMoreDeduplicatesAndDetectsEnd(t *testing.T) {
	f := &fakeFetcher{respond: pages(map[int][]models.Game{0: games(1, 2, 3), 1: games(3, 4, 5)}, nil)}
	s := New(f, WithDebounce(testDebounce))
	defer s.Close()
	await(t, s, Settled)

	require.True(t, s.LoadMore())
	st := await(t, s, func(st State) bool { return Settled(st) && st.EndReached })

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(st.Games))
	assert.Equal(t, 1, st.Page)
	assert.True(t, st.EndReached)

	assert.False(t, s.LoadMore())
	assert.Len(t, f.Calls(), 2, "no fetch once the end is reached")
}

func TestLoadMoreWithNothingNewKeepsCursor(t *testing.T) {
	f := &fakeFetcher{respond: pages(map[int][]models.Game{0: idRange(1, 15), 1: idRange(1, 15)}, nil)}
	s := New(f, WithDebounce(testDebounce))
	defer s.Close()
	await(t, s, Settled)

	require.True(t, s.LoadMore())
	st := await(t, s, func(st State) bool { return Settled(st) && st.EndReached })

	assert.Len(t, st.Games, 15)
	assert.Equal(t, 0, st.Page)
}

func TestLoadMoreFailureKeepsResults(t *testing.T) {
	f := &fakeFetcher{respond: func(_ context.Context, q string) ([]models.Game, error) {
		if isPage(q, 0) {
			return idRange(1, 15), nil
		}
		return nil, &catalog.Error{Kind: catalog.KindAPI, Status: 500}
	}}
	s := New(f, WithDebounce(testDebounce))
	defer s.Close()
	await(t, s, Settled)

	require.True(t, s.LoadMore())
	st := await(t, s, func(st State) bool { return Settled(st) && len(f.Calls()) == 2 })

	assert.Equal(t, PhaseSuccess, st.Phase)
	assert.Len(t, st.Games, 15)
	assert.False(t, st.LoadingMore)
	assert.False(t, st.EndReached)
	assert.Nil(t, st.Err)

	assert.True(t, s.LoadMore(), "a failed load more can be retried")
	await(t, s, Settled)
}

func TestFilterChangeDiscardsPendingLoadMore(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{respond: func(ctx context.Context, q string) ([]models.Game, error) {
		switch {
		case strings.Contains(q, `search "next"`):
			return games(100), nil
		case isPage(q, 0):
			return idRange(1, 15), nil
		default:
			select {
			case <-gate:
			case <-ctx.Done():
			}
			return idRange(16, 30), nil
		}
	}}
	s := New(f, WithDebounce(testDebounce))
	defer s.Close()
	await(t, s, Settled)

	require.True(t, s.LoadMore())
	s.UpdateQuery("next")
	st := await(t, s, func(st State) bool { return Settled(st) && st.Spec.Query == "next" })
	close(gate)

	assert.Equal(t, []int64{100}, ids(st.Games))
	assert.Equal(t, 0, st.Page)
	assert.False(t, st.EndReached)
}

func TestUpdateSortTogglesDirection(t *testing.T) {
	f := &fakeFetcher{respond: pages(nil, nil)}
	s := New(f, WithDebounce(time.Hour))
	defer s.Close()

	s.UpdateSort(catalog.SortRating)
	assert.Equal(t, catalog.SortDesc, s.Spec().Direction)
	s.UpdateSort(catalog.SortRating)
	assert.Equal(t, catalog.SortAsc, s.Spec().Direction)
	s.UpdateSort(catalog.SortName)
	assert.Equal(t, catalog.SortName, s.Spec().Sort)
	assert.Equal(t, catalog.SortDesc, s.Spec().Direction)
	s.ToggleSortDirection()
	assert.Equal(t, catalog.SortAsc, s.Spec().Direction)

	assert.Empty(t, f.Calls())
}

func TestCloseClosesSubscribers(t *testing.T) {
	f := &fakeFetcher{respond: pages(nil, nil)}
	s := New(f, WithDebounce(time.Hour))
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Close()
	_, ok := <-ch
	assert.False(t, ok)

	s.UpdateQuery("ignored")
	assert.False(t, s.LoadMore())
}

package home

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gamevault/internal/catalog"
	"gamevault/pkg/models"
)

const (
	// UpcomingWindow is how far ahead a library game counts as upcoming.
	UpcomingWindow = 30 * 24 * time.Hour
	// RecommendationLimit caps the recommendation list before owned games
	// are removed.
	RecommendationLimit = 10
)

// Library is the user's collection as the reconciler presents it.
type Library interface {
	GetAllGames(ctx context.Context) []models.OwnedGame
}

// SectionState is one carousel of the feed.
type SectionState struct {
	Games       []models.Game `json:"games"`
	Page        int           `json:"page"`
	EndReached  bool          `json:"end_reached"`
	LoadingMore bool          `json:"-"`
	Err         error         `json:"-"`
}

// Snapshot is an immutable copy of the feed.
type Snapshot struct {
	Sections            map[catalog.Section]SectionState `json:"sections"`
	UpcomingFromLibrary []models.Game                    `json:"upcoming_from_library"`
	Recommended         []models.Game                    `json:"recommended"`
	Stats               models.UserStats                 `json:"stats"`
	FavouriteGenre      string                           `json:"favourite_genre,omitempty"`
}

// Feed assembles the home screen: four catalog carousels plus what can be
// derived from the user's library.
type Feed struct {
	catalog catalog.Fetcher
	library Library
	now     func() time.Time
	log     *zap.Logger

	mu        sync.Mutex
	sections  map[catalog.Section]*SectionState
	upcoming  []models.Game
	recs      []models.Game
	stats     models.UserStats
	favourite string
}

type Option func(*Feed)

func WithClock(now func() time.Time) Option { return func(f *Feed) { f.now = now } }

func WithLogger(log *zap.Logger) Option {
	return func(f *Feed) {
		if log != nil {
			f.log = log
		}
	}
}

func NewFeed(fetcher catalog.Fetcher, lib Library, opts ...Option) *Feed {
	f := &Feed{
		catalog:  fetcher,
		library:  lib,
		now:      time.Now,
		log:      zap.NewNop(),
		sections: make(map[catalog.Section]*SectionState, len(catalog.Sections)),
		stats:    models.UserStats{GenreCounts: map[string]int{}},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.With(zap.String("component", "home"))
	for _, s := range catalog.Sections {
		f.sections[s] = &SectionState{}
	}
	return f
}

// Load fetches the first page of every section and the library-derived
// data concurrently. A failing section keeps its error and does not stop
// the others; the failures are returned joined.
func (f *Feed) Load(ctx context.Context) error {
	now := f.now()
	errs := make([]error, len(catalog.Sections))

	var g errgroup.Group
	for i, s := range catalog.Sections {
		g.Go(func() error {
			games, err := f.fetchSection(ctx, s, 0, now)
			f.mu.Lock()
			defer f.mu.Unlock()
			st := f.sections[s]
			if err != nil {
				st.Err = err
				errs[i] = fmt.Errorf("load %s: %w", s, err)
				return nil
			}
			*st = SectionState{Games: dedupe(nil, games), Page: 0}
			return nil
		})
	}
	g.Go(func() error {
		f.RefreshLibrary(ctx)
		return nil
	})
	_ = g.Wait()
	return errors.Join(errs...)
}

// LoadMore appends the next page of section. It reports false without
// fetching while a load of that section is in flight, when its end was
// reached, or when its first page never loaded; Load retries the latter.
func (f *Feed) LoadMore(ctx context.Context, section catalog.Section) (bool, error) {
	f.mu.Lock()
	st, ok := f.sections[section]
	if !ok {
		f.mu.Unlock()
		return false, fmt.Errorf("unknown section %q", section)
	}
	if st.LoadingMore || st.EndReached || (st.Err != nil && len(st.Games) == 0) {
		f.mu.Unlock()
		return false, nil
	}
	st.LoadingMore = true
	page := st.Page + 1
	f.mu.Unlock()

	games, err := f.fetchSection(ctx, section, page, f.now())

	f.mu.Lock()
	defer f.mu.Unlock()
	st.LoadingMore = false
	if err != nil {
		f.log.Warn("load more failed", zap.String("section", string(section)), zap.Error(err))
		st.Err = err
		return true, err
	}
	st.Err = nil
	before := len(st.Games)
	st.Games = dedupe(st.Games, games)
	fresh := len(st.Games) - before
	if fresh > 0 {
		st.Page = page
	}
	st.EndReached = fresh < catalog.SectionPageSize
	return true, nil
}

func (f *Feed) fetchSection(ctx context.Context, s catalog.Section, page int, now time.Time) ([]models.Game, error) {
	q, err := catalog.SectionQuery(s, page, now)
	if err != nil {
		return nil, err
	}
	return f.catalog.Games(ctx, q)
}

// RefreshLibrary recomputes the library-derived parts of the feed, e.g.
// after a sync. Catalog failures leave the derived lists empty; the status
// counts only need the library.
func (f *Feed) RefreshLibrary(ctx context.Context) {
	owned := f.library.GetAllGames(ctx)
	stats := statusCounts(owned)

	var records []models.Game
	if len(owned) > 0 {
		var err error
		records, err = f.catalog.Games(ctx, catalog.IDsQuery(models.GameIDs(owned)))
		if err != nil {
			f.log.Warn("library catalog lookup failed", zap.Int("games", len(owned)), zap.Error(err))
			records = nil
		}
	}

	for _, g := range records {
		for _, name := range g.GenreNames() {
			stats.GenreCounts[name]++
		}
	}
	upcoming := UpcomingFrom(records, f.now(), UpcomingWindow)
	favourite := FavouriteGenre(stats.GenreCounts)

	var recs []models.Game
	if favourite != "" {
		games, err := f.catalog.Games(ctx, catalog.RecommendationQuery(favourite, RecommendationLimit))
		if err != nil {
			f.log.Warn("recommendations failed", zap.String("genre", favourite), zap.Error(err))
		} else {
			recs = ExcludeOwned(games, owned)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = stats
	f.upcoming = upcoming
	f.recs = recs
	f.favourite = favourite
}

func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := Snapshot{
		Sections:            make(map[catalog.Section]SectionState, len(f.sections)),
		UpcomingFromLibrary: slices.Clone(f.upcoming),
		Recommended:         slices.Clone(f.recs),
		Stats:               f.stats,
		FavouriteGenre:      f.favourite,
	}
	snap.Stats.GenreCounts = make(map[string]int, len(f.stats.GenreCounts))
	for k, v := range f.stats.GenreCounts {
		snap.Stats.GenreCounts[k] = v
	}
	for s, st := range f.sections {
		cp := *st
		cp.Games = slices.Clone(st.Games)
		snap.Sections[s] = cp
	}
	return snap
}

func statusCounts(owned []models.OwnedGame) models.UserStats {
	st := models.UserStats{Total: len(owned), GenreCounts: map[string]int{}}
	for _, g := range owned {
		switch g.Status {
		case models.PlayStateWantToPlay:
			st.WantToPlay++
		case models.PlayStatePlaying:
			st.Playing++
		case models.PlayStateCompleted:
			st.Completed++
		}
	}
	return st
}

// UpcomingFrom keeps the games releasing between now and now+window,
// soonest first.
func UpcomingFrom(games []models.Game, now time.Time, window time.Duration) []models.Game {
	from, to := now.Unix(), now.Add(window).Unix()
	var out []models.Game
	for _, g := range games {
		if g.FirstReleaseDate == nil {
			continue
		}
		if d := *g.FirstReleaseDate; d >= from && d <= to {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].FirstReleaseDate < *out[j].FirstReleaseDate })
	return out
}

// FavouriteGenre is the most frequent genre; ties go to the name that sorts
// first.
func FavouriteGenre(counts map[string]int) string {
	best, bestN := "", 0
	for name, n := range counts {
		if n > bestN || (n == bestN && name < best) {
			best, bestN = name, n
		}
	}
	return best
}

// ExcludeOwned drops games already in the library.
func ExcludeOwned(games []models.Game, owned []models.OwnedGame) []models.Game {
	have := make(map[int64]struct{}, len(owned))
	for _, g := range owned {
		have[g.GameID] = struct{}{}
	}
	out := make([]models.Game, 0, len(games))
	for _, g := range games {
		if _, ok := have[g.ID]; !ok {
			out = append(out, g)
		}
	}
	return out
}

func dedupe(existing, incoming []models.Game) []models.Game {
	seen := make(map[int64]struct{}, len(existing)+len(incoming))
	out := slices.Clone(existing)
	for _, g := range out {
		seen[g.ID] = struct{}{}
	}
	for _, g := range incoming {
		if _, ok := seen[g.ID]; ok {
			continue
		}
		seen[g.ID] = struct{}{}
		out = append(out, g)
	}
	return out
}

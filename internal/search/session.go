package search

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"gamevault/internal/catalog"
	"gamevault/pkg/models"
)

// DefaultDebounce is how long filter edits settle before a search runs.
const DefaultDebounce = 300 * time.Millisecond

type Phase int

const (
	PhaseInitial Phase = iota
	PhaseLoading
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return "initial"
	}
}

// State is an immutable snapshot of a search. Sessions replace it wholesale
// on every transition; callers must not modify Games.
type State struct {
	Phase       Phase
	Spec        catalog.FilterSpec
	Games       []models.Game
	Page        int // last page merged into Games
	EndReached  bool
	LoadingMore bool
	Err         error
	Message     string
}

// Kind classifies the error of a failed search.
func (s State) Kind() catalog.Kind { return catalog.KindOf(s.Err) }

type Option func(*Session)

func WithDebounce(d time.Duration) Option {
	return func(s *Session) { s.debounce = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithInitialSpec replaces the default filter spec the session starts from.
func WithInitialSpec(spec catalog.FilterSpec) Option {
	return func(s *Session) { s.pending = spec }
}

// Session is the search screen state machine: filter edits are debounced,
// only the latest search is applied, and LoadMore appends de-duplicated
// pages.
type Session struct {
	fetcher  catalog.Fetcher
	debounce time.Duration
	log      *zap.Logger

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu         sync.Mutex
	state      State
	pending    catalog.FilterSpec
	applied    catalog.FilterSpec
	hasApplied bool
	timer      *time.Timer
	gen        uint64
	runCtx     context.Context
	cancelRun  context.CancelFunc
	subs       map[int]chan State
	nextSub    int
	closed     bool
}

// New starts a session; the initial spec is searched once the debounce
// window elapses.
func New(fetcher catalog.Fetcher, opts ...Option) *Session {
	base, stop := context.WithCancel(context.Background())
	s := &Session{
		fetcher:  fetcher,
		debounce: DefaultDebounce,
		log:      zap.NewNop(),
		base:     base,
		stop:     stop,
		pending:  catalog.DefaultFilterSpec(),
		subs:     make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("component", "search"))
	s.state.Spec = s.pending.Normalize()

	s.mu.Lock()
	s.scheduleLocked(s.pending)
	s.mu.Unlock()
	return s
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Spec returns the latest edited filter spec, which may not have been
// searched yet.
func (s *Session) Spec() catalog.FilterSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) UpdateQuery(q string) {
	s.edit(func(f catalog.FilterSpec) catalog.FilterSpec {
		f.Query = q
		return f
	})
}

// UpdateFilters replaces the whole filter spec.
func (s *Session) UpdateFilters(spec catalog.FilterSpec) {
	s.edit(func(catalog.FilterSpec) catalog.FilterSpec { return spec })
}

// UpdateSort selects a sort field; selecting the active field flips the
// direction.
func (s *Session) UpdateSort(field catalog.SortField) {
	s.edit(func(f catalog.FilterSpec) catalog.FilterSpec { return f.WithSort(field) })
}

func (s *Session) ToggleSortDirection() {
	s.edit(func(f catalog.FilterSpec) catalog.FilterSpec { return f.WithDirectionFlipped() })
}

func (s *Session) edit(fn func(catalog.FilterSpec) catalog.FilterSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.scheduleLocked(fn(s.pending))
}

func (s *Session) scheduleLocked(spec catalog.FilterSpec) {
	s.pending = spec
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.fire)
}

// fire runs when the debounce window closes.
func (s *Session) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	spec := s.pending.Normalize()
	if s.hasApplied && s.applied.Equal(spec) {
		return
	}
	s.startLocked(spec)
}

// Retry searches the current spec again without waiting for an edit.
func (s *Session) Retry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.startLocked(s.pending.Normalize())
}

func (s *Session) startLocked(spec catalog.FilterSpec) {
	s.applied = spec
	s.hasApplied = true
	s.gen++
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.runCtx, s.cancelRun = context.WithCancel(s.base)

	s.setLocked(State{Phase: PhaseLoading, Spec: spec})

	s.wg.Add(1)
	go s.fetchFirst(s.runCtx, s.gen, spec)
}

func (s *Session) fetchFirst(ctx context.Context, gen uint64, spec catalog.FilterSpec) {
	defer s.wg.Done()

	games, err := s.fetcher.Games(ctx, catalog.BuildSearchQuery(spec, 0))

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.closed {
		s.log.Debug("discarding superseded search", zap.Uint64("generation", gen))
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Warn("search failed",
			zap.String("query", spec.Query),
			zap.Stringer("kind", catalog.KindOf(err)),
			zap.Error(err),
		)
		s.setLocked(State{Phase: PhaseError, Spec: spec, Err: err, Message: catalog.Message(err)})
		return
	}

	s.setLocked(State{Phase: PhaseSuccess, Spec: spec, Games: appendNew(nil, games)})
}

// LoadMore requests the next page. It reports whether a fetch was started:
// it is a no-op while another page is loading, when the current search did
// not succeed, or when the end of the results was reached.
func (s *Session) LoadMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state.Phase != PhaseSuccess || s.state.EndReached || s.state.LoadingMore {
		return false
	}

	next := s.state
	next.LoadingMore = true
	s.setLocked(next)

	s.wg.Add(1)
	go s.fetchMore(s.runCtx, s.gen, next.Spec, next.Page+1)
	return true
}

func (s *Session) fetchMore(ctx context.Context, gen uint64, spec catalog.FilterSpec, page int) {
	defer s.wg.Done()

	games, err := s.fetcher.Games(ctx, catalog.BuildSearchQuery(spec, page))

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.closed {
		return
	}

	next := s.state
	next.LoadingMore = false
	if err != nil {
		// the accumulated list stays as it was
		s.log.Warn("load more failed", zap.Int("page", page), zap.Error(err))
		s.setLocked(next)
		return
	}

	merged := appendNew(next.Games, games)
	fresh := len(merged) - len(next.Games)
	if fresh > 0 {
		next.Games = merged
		next.Page = page
		next.EndReached = fresh < catalog.PageSize
	} else {
		next.EndReached = true
	}
	s.setLocked(next)
}

// appendNew returns a new slice holding have followed by the games of page
// whose ids are not already present.
func appendNew(have, page []models.Game) []models.Game {
	seen := make(map[int64]struct{}, len(have)+len(page))
	for _, g := range have {
		seen[g.ID] = struct{}{}
	}
	out := slices.Clone(have)
	for _, g := range page {
		if _, dup := seen[g.ID]; dup {
			continue
		}
		seen[g.ID] = struct{}{}
		out = append(out, g)
	}
	return out
}

func (s *Session) setLocked(st State) {
	s.state = st
	for _, ch := range s.subs {
		// keep only the newest snapshot for slow subscribers
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

// Subscribe returns a channel receiving every new snapshot. Slow readers
// only see the latest one. The channel is closed by cancel or Close.
func (s *Session) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Await blocks until a snapshot satisfies done, or ctx ends.
func (s *Session) Await(ctx context.Context, done func(State) bool) (State, error) {
	ch, cancel := s.Subscribe()
	defer cancel()

	if st := s.State(); done(st) {
		return st, nil
	}
	for {
		select {
		case <-ctx.Done():
			return s.State(), ctx.Err()
		case st, ok := <-ch:
			if !ok {
				return s.State(), errors.New("search session closed")
			}
			if done(st) {
				return st, nil
			}
		}
	}
}

// Settled reports whether a search has finished and no page is loading.
func Settled(st State) bool {
	return (st.Phase == PhaseSuccess || st.Phase == PhaseError) && !st.LoadingMore
}

// Close cancels pending work and waits for in-flight fetches to return.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.stop()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

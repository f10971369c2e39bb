package library

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"gamevault/internal/auth"
	"gamevault/pkg/models"
)

// Identity reports the signed-in user, if any. *auth.Session implements it.
type Identity interface {
	Current() (auth.Principal, bool)
}

// Reconciler presents one library over two backends: the cloud collection
// of the signed-in user, or the local table while signed out.
//
// Mutations are serialised, so a login sync never interleaves with AddGame
// or UpdateGameStatus.
type Reconciler struct {
	local    LocalBackend
	remote   Remote
	identity Identity
	log      *zap.Logger

	mu sync.Mutex
}

func NewReconciler(local LocalBackend, remote Remote, identity Identity, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		local:    local,
		remote:   remote,
		identity: identity,
		log:      log.With(zap.String("component", "library")),
	}
}

// Route picks the backend for one operation from an identity snapshot.
func Route(p auth.Principal, signedIn bool, local Store, remote Remote) Store {
	if signedIn && p.UserID != "" {
		return remote.ForUser(p)
	}
	return local
}

func (r *Reconciler) backend() (Store, auth.Principal, bool) {
	p, ok := r.identity.Current()
	return Route(p, ok, r.local, r.remote), p, ok
}

// AddGame writes to the cloud collection (merge) when signed in, otherwise
// replaces the local entry.
func (r *Reconciler) AddGame(ctx context.Context, g models.OwnedGame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	store, _, remote := r.backend()
	if err := store.Put(ctx, g); err != nil {
		return fmt.Errorf("add game %d: %w", g.GameID, err)
	}
	r.log.Debug("game added", zap.Int64("game_id", g.GameID), zap.Bool("remote", remote))
	return nil
}

// GetAllGames lists the active backend. Read failures are logged and yield
// an empty library.
func (r *Reconciler) GetAllGames(ctx context.Context) []models.OwnedGame {
	store, p, remote := r.backend()
	games, err := store.All(ctx)
	if err != nil {
		r.log.Warn("read library failed",
			zap.Bool("remote", remote),
			zap.String("user_id", p.UserID),
			zap.Error(err),
		)
		return []models.OwnedGame{}
	}
	if games == nil {
		games = []models.OwnedGame{}
	}
	return games
}

// GetAllGameIDs is GetAllGames projected to ids.
func (r *Reconciler) GetAllGameIDs(ctx context.Context) []int64 {
	return models.GameIDs(r.GetAllGames(ctx))
}

func (r *Reconciler) DeleteGameByID(ctx context.Context, gameID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	store, _, _ := r.backend()
	if err := store.Delete(ctx, gameID); err != nil {
		return fmt.Errorf("delete game %d: %w", gameID, err)
	}
	return nil
}

// UpdateGameStatus writes g to the cloud collection when signed in and, in
// every case, to the local table, which doubles as an offline copy. Failures
// of both writes are joined.
func (r *Reconciler) UpdateGameStatus(ctx context.Context, g models.OwnedGame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if p, ok := r.identity.Current(); ok && p.UserID != "" {
		if err := r.remote.ForUser(p).Put(ctx, g); err != nil {
			errs = append(errs, fmt.Errorf("update remote status of game %d: %w", g.GameID, err))
		}
	}
	if err := r.local.Put(ctx, g); err != nil {
		errs = append(errs, fmt.Errorf("update local status of game %d: %w", g.GameID, err))
	}
	return errors.Join(errs...)
}

// ClearLocalData wipes the local table; the cloud collection is untouched.
func (r *Reconciler) ClearLocalData(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.local.Clear(ctx); err != nil {
		return fmt.Errorf("clear local data: %w", err)
	}
	return nil
}

// SyncReport describes one upload of local entries to the cloud.
type SyncReport struct {
	Skipped  bool    // signed out, or nothing stored locally
	Uploaded int     // entries written to the cloud
	Failed   []int64 // ids whose upload failed
}

// SyncLocalGamesToCloud uploads every local entry to the signed-in user's
// collection, one at a time. A failed entry does not stop the others; the
// failures are returned joined. Local entries are never deleted.
//
// The reconciler keeps no record of past syncs: running it once per login
// is up to the caller (see LoginSync).
func (r *Reconciler) SyncLocalGamesToCloud(ctx context.Context) (SyncReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.identity.Current()
	if !ok || p.UserID == "" {
		return SyncReport{Skipped: true}, nil
	}

	games, err := r.local.All(ctx)
	if err != nil {
		return SyncReport{}, fmt.Errorf("read local games: %w", err)
	}
	if len(games) == 0 {
		return SyncReport{Skipped: true}, nil
	}

	remote := r.remote.ForUser(p)
	var (
		report SyncReport
		errs   []error
	)
	for _, g := range games {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := remote.Put(ctx, g); err != nil {
			report.Failed = append(report.Failed, g.GameID)
			errs = append(errs, fmt.Errorf("upload game %d: %w", g.GameID, err))
			continue
		}
		report.Uploaded++
	}

	r.log.Info("local library synced to cloud",
		zap.String("user_id", p.UserID),
		zap.Int("uploaded", report.Uploaded),
		zap.Int("failed", len(report.Failed)),
	)
	return report, errors.Join(errs...)
}

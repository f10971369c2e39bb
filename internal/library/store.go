package library

import (
	"context"
	"errors"

	"gamevault/internal/auth"
	"gamevault/pkg/models"
)

// ErrNotAuthenticated is returned by remote backends used without a user.
var ErrNotAuthenticated = errors.New("not authenticated")

// Store is one library backend keyed by game id.
//
// The local backend replaces the whole entry on Put; remote backends merge,
// keeping stored fields the entry leaves empty.
type Store interface {
	Put(ctx context.Context, game models.OwnedGame) error
	All(ctx context.Context) ([]models.OwnedGame, error)
	Delete(ctx context.Context, gameID int64) error
}

// LocalBackend is the device table, which can also be wiped.
type LocalBackend interface {
	Store
	Clear(ctx context.Context) error
}

// Remote opens the cloud collection of one user.
type Remote interface {
	ForUser(p auth.Principal) Store
}

// RemoteFunc adapts a function to Remote.
type RemoteFunc func(p auth.Principal) Store

func (f RemoteFunc) ForUser(p auth.Principal) Store { return f(p) }

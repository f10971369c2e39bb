package library

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gamevault/internal/auth"
)

// LoginSync runs the local-to-cloud upload at most once per login session.
// A logout re-arms it for the next login.
type LoginSync struct {
	rec *Reconciler
	log *zap.Logger

	mu       sync.Mutex
	syncedTo string // user id of the session already synced
}

func NewLoginSync(rec *Reconciler, log *zap.Logger) *LoginSync {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoginSync{rec: rec, log: log.With(zap.String("component", "login-sync"))}
}

// OnLogin syncs unless this session has been synced already. The attempt
// counts even when some uploads fail, as long as p is still signed in.
func (l *LoginSync) OnLogin(ctx context.Context, p auth.Principal) (SyncReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.syncedTo != "" && l.syncedTo == p.UserID {
		return SyncReport{Skipped: true}, nil
	}
	report, err := l.rec.SyncLocalGamesToCloud(ctx)
	if err != nil {
		l.log.Warn("login sync incomplete", zap.String("user_id", p.UserID), zap.Error(err))
	}
	if cur, ok := l.rec.identity.Current(); ok && cur.UserID == p.UserID {
		l.syncedTo = p.UserID
	}
	return report, err
}

func (l *LoginSync) OnLogout() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.syncedTo = ""
}

// Synced reports whether the session of userID has been synced.
func (l *LoginSync) Synced(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return userID != "" && l.syncedTo == userID
}

// Run follows session events until ctx ends or the channel closes. When
// report is set it receives the outcome of every login.
func (l *LoginSync) Run(ctx context.Context, events <-chan auth.Event, report func(SyncReport, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case auth.EventLogin:
				r, err := l.OnLogin(ctx, ev.Principal)
				if report != nil {
					report(r, err)
				}
			case auth.EventLogout:
				l.OnLogout()
			}
		}
	}
}

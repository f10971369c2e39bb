package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Principal is an authenticated user as seen by clients and handlers.
type Principal struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

func (p Principal) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

type EventType int

const (
	EventLogin EventType = iota + 1
	EventLogout
)

func (t EventType) String() string {
	switch t {
	case EventLogin:
		return "login"
	case EventLogout:
		return "logout"
	default:
		return "unknown"
	}
}

type Event struct {
	Type      EventType
	Principal Principal
}

// Session holds the signed-in user of a client, optionally persisted to a
// token file so that it survives restarts. It publishes login and logout
// events but never decides on its own to sign anybody in or out, except for
// dropping an expired token on load.
type Session struct {
	path string
	now  func() time.Time

	mu      sync.RWMutex
	current *Principal
	subs    map[int]chan Event
	nextSub int
}

// NewSession returns a session that lives in memory only.
func NewSession() *Session {
	return &Session{now: time.Now, subs: make(map[int]chan Event)}
}

// OpenSession restores the session stored at path. A missing, unreadable or
// expired token file yields a signed-out session.
func OpenSession(path string) (*Session, error) {
	s := NewSession()
	s.path = path

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var p Principal
	if err := json.Unmarshal(b, &p); err != nil || p.UserID == "" || p.Expired(s.now()) {
		_ = os.Remove(path)
		return s, nil
	}
	s.current = &p
	return s, nil
}

// Current returns the signed-in user, if any.
func (s *Session) Current() (Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.Expired(s.now()) {
		return Principal{}, false
	}
	return *s.current, true
}

// Login records p as the signed-in user and notifies subscribers.
func (s *Session) Login(p Principal) error {
	if p.UserID == "" {
		return errors.New("login: principal has no user id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(&p); err != nil {
		return err
	}
	s.current = &p
	s.notifyLocked(Event{Type: EventLogin, Principal: p})
	return nil
}

// Logout forgets the signed-in user. It is a no-op when nobody is signed in.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	if err := s.persist(nil); err != nil {
		return err
	}
	prev := *s.current
	s.current = nil
	s.notifyLocked(Event{Type: EventLogout, Principal: prev})
	return nil
}

func (s *Session) persist(p *Principal) error {
	if s.path == "" {
		return nil
	}
	if p == nil {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session: %w", err)
		}
		return nil
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

// Subscribe delivers login and logout events. Slow readers lose the oldest
// pending events first.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, 8)
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

func (s *Session) notifyLocked(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Package session models the authenticated-session boundary the core is gated on.
// Authentication itself happens elsewhere; a Session only records that it succeeded.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is an active user session. It ends exactly once.
type Session struct {
	ID        string
	User      string
	StartedAt time.Time

	mu    sync.Mutex
	ended bool
	hooks []func()
}

// New starts a session for user.
func New(user string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		User:      user,
		StartedAt: time.Now(),
	}
}

// Active reports whether the session has not ended. A nil session is inactive.
func (s *Session) Active() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ended
}

// OnEnd registers fn to run when the session ends. If the session has already
// ended, fn runs immediately.
func (s *Session) OnEnd(fn func()) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		fn()
		return
	}
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// End marks the session inactive and runs the registered hooks in reverse order
// of registration. Later calls do nothing.
func (s *Session) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

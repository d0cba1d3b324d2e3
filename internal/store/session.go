package store

import (
	"sync"

	"fintrack/internal/core"
)

// SessionStore owns the authenticated session. It is created empty and
// hydrated from the persisted snapshot at startup; the token itself is never
// part of the snapshot.
type SessionStore struct {
	broadcaster

	mu      sync.RWMutex
	session core.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Login records a successful authentication.
func (s *SessionStore) Login(user core.User, token string) {
	s.mu.Lock()
	s.session = core.Session{User: &user, Token: token, Authenticated: true}
	s.mu.Unlock()
	s.notify()
}

// Logout clears the session entirely.
func (s *SessionStore) Logout() {
	s.mu.Lock()
	s.session = core.Session{}
	s.mu.Unlock()
	s.notify()
}

// SetUser replaces the user profile, keeping the credential.
func (s *SessionStore) SetUser(user core.User) {
	s.mu.Lock()
	s.session.User = &user
	s.mu.Unlock()
	s.notify()
}

// SetLanguage updates the user's preferred language in place.
func (s *SessionStore) SetLanguage(language string) {
	s.mu.Lock()
	if s.session.User != nil {
		u := *s.session.User
		u.Language = language
		s.session.User = &u
	}
	s.mu.Unlock()
	s.notify()
}

// SetCurrency updates the user's preferred currency in place.
func (s *SessionStore) SetCurrency(currency string) {
	s.mu.Lock()
	if s.session.User != nil {
		u := *s.session.User
		u.Currency = currency
		s.session.User = &u
	}
	s.mu.Unlock()
	s.notify()
}

// Session returns a copy of the current session.
func (s *SessionStore) Session() core.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session := s.session
	if session.User != nil {
		u := *session.User
		session.User = &u
	}
	return session
}

// Token returns the current bearer token, if any. Suitable as an
// api.TokenSource.
func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

// Authenticated reports whether a user is logged in.
func (s *SessionStore) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.LoggedIn()
}

// Restore hydrates the store from a persisted snapshot. The restored session
// carries no token; deployments using bearer tokens re-authenticate, while
// cookie-based ones resume directly.
func (s *SessionStore) Restore(user core.User, authenticated bool) {
	s.mu.Lock()
	s.session = core.Session{Authenticated: authenticated}
	if user.ID != "" {
		s.session.User = &user
	}
	s.mu.Unlock()
	s.notify()
}

package store

import (
	"testing"

	"fintrack/internal/core"
)

func TestSessionStoreLoginLogout(t *testing.T) {
	s := NewSessionStore()
	if s.Authenticated() {
		t.Fatal("fresh store must not be authenticated")
	}

	s.Login(core.User{ID: "u1", Email: "ada@example.com"}, "tok-1")
	if !s.Authenticated() || s.Token() != "tok-1" {
		t.Fatalf("unexpected state after login: %v %q", s.Authenticated(), s.Token())
	}

	s.Logout()
	if s.Authenticated() || s.Token() != "" {
		t.Fatal("logout must clear everything")
	}
}

func TestSessionStoreRestoreDropsToken(t *testing.T) {
	s := NewSessionStore()
	s.Restore(core.User{ID: "u1"}, true)

	session := s.Session()
	if session.Token != "" {
		t.Fatal("restored session must not carry a token")
	}
	if !session.Authenticated || session.User == nil || session.User.ID != "u1" {
		t.Fatalf("unexpected restored session: %+v", session)
	}
}

func TestSessionStoreReturnsCopies(t *testing.T) {
	s := NewSessionStore()
	s.Login(core.User{ID: "u1", Name: "Ada"}, "tok-1")

	session := s.Session()
	session.User.Name = "mutated"
	if s.Session().User.Name != "Ada" {
		t.Fatal("Session must return a copy")
	}
}

func TestSessionStorePreferenceUpdates(t *testing.T) {
	s := NewSessionStore()
	s.Login(core.User{ID: "u1"}, "tok-1")

	s.SetLanguage("it")
	s.SetCurrency("EUR")
	session := s.Session()
	if session.User.Language != "it" || session.User.Currency != "EUR" {
		t.Fatalf("preferences not applied: %+v", session.User)
	}

	// No user, no panic.
	s.Logout()
	s.SetLanguage("en")
}

func TestSessionStoreNotifiesListeners(t *testing.T) {
	s := NewSessionStore()
	calls := 0
	unsubscribe := s.Subscribe(func() { calls++ })

	s.Login(core.User{ID: "u1"}, "tok-1")
	s.Logout()
	if calls != 2 {
		t.Fatalf("expected 2 notifications, got %d", calls)
	}

	unsubscribe()
	s.Login(core.User{ID: "u1"}, "tok-2")
	if calls != 2 {
		t.Fatalf("unsubscribed listener fired, got %d", calls)
	}
}

package bot

import (
	"testing"
	"time"

	"github.com/ppiankov/factbot/internal/cache"
)

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(cache.NewMemoryCache(time.Hour, time.Hour), time.Hour)

	if got := store.Get("u1"); got != (Session{}) {
		t.Errorf("Expected empty session, got %+v", got)
	}

	store.Update("u1", func(s *Session) {
		s.Mode = ModeCheckFact
		s.LastTopic = "topic"
	})

	got := store.Get("u1")
	if got.Mode != ModeCheckFact || got.LastTopic != "topic" {
		t.Errorf("Unexpected session: %+v", got)
	}

	// Get returns a copy
	got.Mode = ModeNone
	if store.Get("u1").Mode != ModeCheckFact {
		t.Error("Modifying a copy changed the stored session")
	}

	if store.Get("u2") != (Session{}) {
		t.Error("Sessions leaked between users")
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	store := NewSessionStore(cache.NewMemoryCache(time.Hour, time.Hour), 10*time.Millisecond)

	store.Update("u1", func(s *Session) { s.WaitingPromo = true })
	time.Sleep(30 * time.Millisecond)

	if store.Get("u1").WaitingPromo {
		t.Error("Expected session to expire")
	}
}

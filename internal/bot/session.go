package bot

import (
	"sync"
	"time"

	"github.com/ppiankov/factbot/internal/cache"
)

// Input modes
const (
	ModeNone           = ""
	ModeAnalyzeArticle = "analyze_article"
	ModeCheckFact      = "check_fact"
)

// Session is the per-user conversation state
type Session struct {
	Mode         string
	WaitingPromo bool
	LastTopic    string
	LastAnalysis string
	ChannelID    string // where to reach the user, e.g. for payment notices
}

// SessionStore keeps sessions in a TTL cache. Sessions expire after ttl
// of inactivity.
type SessionStore struct {
	mu    sync.Mutex
	cache cache.Cache
	ttl   time.Duration
}

// NewSessionStore creates a session store backed by c
func NewSessionStore(c cache.Cache, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: c, ttl: ttl}
}

// Get returns a copy of the user's session, or an empty one
func (s *SessionStore) Get(userID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(userID)
}

// Update applies fn to the user's session and stores the result
func (s *SessionStore) Update(userID string, fn func(*Session)) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.load(userID)
	fn(&sess)
	s.cache.Set(cache.Key("session", userID), sess, s.ttl)
	return sess
}

func (s *SessionStore) load(userID string) Session {
	if v, ok := s.cache.Get(cache.Key("session", userID)); ok {
		if sess, ok := v.(Session); ok {
			return sess
		}
	}
	return Session{}
}

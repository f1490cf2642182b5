package dialogue

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/fabfab/symptom-agent/chat"
	"github.com/fabfab/symptom-agent/diagnostic"
)

// Session is the per-conversation state. mu serializes turns within one
// conversation; different sessions never share a lock.
type Session struct {
	ID     string
	State  diagnostic.State
	Memory *chat.Memory

	mu sync.Mutex
	// holders counts turns between Acquire and Release. Guarded by the
	// store's mu.
	holders int
}

// SessionStore keeps sessions in memory, evicting ones idle for longer than
// the TTL. A session with a turn in progress is pinned and never expires
// underneath it. Nothing survives a restart.
type SessionStore struct {
	cache    *cache.Cache
	maxTurns int

	mu     sync.Mutex
	active map[string]*Session
}

func NewSessionStore(ttl time.Duration, maxTurns int) *SessionStore {
	expiration := ttl
	cleanup := 10 * time.Minute
	if ttl <= 0 {
		expiration = cache.NoExpiration
	} else if ttl < cleanup {
		cleanup = ttl
	}

	return &SessionStore{
		cache:    cache.New(expiration, cleanup),
		maxTurns: maxTurns,
		active:   make(map[string]*Session),
	}
}

// Acquire returns the session for id, creating an idle one if needed, and
// pins it until the matching Release. created reports a new session.
func (s *SessionStore) Acquire(id string) (sess *Session, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.active[id]
	if !ok {
		if x, found := s.cache.Get(id); found {
			sess = x.(*Session)
		} else {
			sess = &Session{
				ID:     id,
				State:  diagnostic.State{Mode: diagnostic.ModeIdle},
				Memory: chat.NewMemory(s.maxTurns),
			}
			created = true
		}
		s.active[id] = sess
	}
	sess.holders++
	s.cache.Set(id, sess, cache.DefaultExpiration)
	return sess, created
}

// Release unpins sess and restarts its idle timer.
func (s *SessionStore) Release(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.holders--; sess.holders <= 0 {
		sess.holders = 0
		if s.active[sess.ID] == sess {
			delete(s.active, sess.ID)
		}
	}
	s.cache.Set(sess.ID, sess, cache.DefaultExpiration)
}

func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.active[id]; ok {
		return sess, true
	}
	if x, found := s.cache.Get(id); found {
		return x.(*Session), true
	}
	return nil, false
}

// Len counts live sessions, pinned ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.cache.Items()
	n := len(items)
	for id := range s.active {
		if _, ok := items[id]; !ok {
			n++
		}
	}
	return n
}

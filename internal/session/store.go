package session

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"ai-mockup-studio/internal/mockup"
)

type Session struct {
	ID           string
	Orchestrator *mockup.Orchestrator

	// Telegram wizard state.
	UserID    int64
	ChatID    int64
	Username  string
	Menu      string
	MessageID int

	LastActivity time.Time
}

type Options struct {
	// TTL is how long an untouched session is kept.
	TTL time.Duration
	// NewOrchestrator builds the orchestrator for a fresh session.
	NewOrchestrator func(id string) *mockup.Orchestrator
	Logger          *slog.Logger
}

type Store struct {
	mu      sync.Mutex
	items   *cache.Cache
	factory func(id string) *mockup.Orchestrator
	logger  *slog.Logger
}

func NewStore(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	factory := opts.NewOrchestrator
	if factory == nil {
		factory = func(id string) *mockup.Orchestrator {
			return mockup.New(mockup.Options{ID: id, Logger: logger})
		}
	}

	s := &Store{
		items:   cache.New(ttl, cleanupInterval(ttl)),
		factory: factory,
		logger:  logger,
	}
	s.items.OnEvicted(func(id string, _ any) {
		s.logger.Debug("session evicted", "session", id)
	})
	return s
}

func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}

// Create starts a session under a fresh random id.
func (s *Store) Create() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return *s.createLocked(uuid.NewString())
}

// Get returns a copy of the session and extends its lifetime. The copy
// shares the orchestrator; UI fields change only through Update.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.touchLocked(id)
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// GetOrCreate returns a copy of the session with the given id, creating it
// if it expired or never existed.
func (s *Store) GetOrCreate(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.touchLocked(id); ok {
		return *sess
	}
	return *s.createLocked(id)
}

// Update runs fn on the session under the store lock. It reports false when
// the session does not exist.
func (s *Store) Update(id string, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.touchLocked(id)
	if !ok {
		return false
	}
	fn(sess)
	return true
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items.Delete(id)
}

func (s *Store) Len() int {
	return s.items.ItemCount()
}

func (s *Store) touchLocked(id string) (*Session, bool) {
	v, ok := s.items.Get(id)
	if !ok {
		return nil, false
	}
	sess := v.(*Session)
	sess.LastActivity = time.Now()
	s.items.SetDefault(id, sess)
	return sess, true
}

func (s *Store) createLocked(id string) *Session {
	sess := &Session{
		ID:           id,
		Orchestrator: s.factory(id),
		LastActivity: time.Now(),
	}
	s.items.SetDefault(id, sess)
	s.logger.Debug("session created", "session", id)
	return sess
}

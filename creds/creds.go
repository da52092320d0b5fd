// Package creds holds the two persisted session slots: the bearer token
// and the pending second-factor challenge.
//
// The slots live under distinct well-known keys so their lifecycles can
// differ: a successful verification replaces the challenge with a token,
// a logout clears both. An in-memory mirror backs every read, so a broken
// persistence layer degrades to a session that lasts for the current
// process instead of breaking requests outright.
package creds

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/lichtbild/fotoadmin/storage"
)

// Well-known persistence keys.
const (
	TokenKey     = "auth_token"
	ChallengeKey = "twofa_challenge"
)

type slot struct {
	value   string
	present bool
}

// Store is the process-wide credential store. All methods are safe for
// concurrent use. Persistence failures are swallowed here (logged, never
// returned): callers must not be able to crash on a full or unavailable
// storage layer.
type Store struct {
	mu        sync.Mutex
	backend   storage.Store
	logger    *slog.Logger
	token     slot
	challenge slot
}

// Open rehydrates both slots from the backend. This is the single startup
// read; afterwards the in-memory mirror is authoritative for reads and
// every write goes through to the backend best-effort.
func Open(backend storage.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{backend: backend, logger: logger}
	s.token = s.load(TokenKey)
	s.challenge = s.load(ChallengeKey)
	return s
}

func (s *Store) load(key string) slot {
	v, err := s.backend.Get(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("reading persisted slot failed", "key", key, "error", err)
		}
		return slot{}
	}
	return slot{value: v, present: true}
}

// SetToken persists the bearer token. Any non-empty string is accepted;
// validity is the server's concern.
func (s *Store) SetToken(token string) { s.set(TokenKey, &s.token, token) }

// ClearToken removes the persisted token. Idempotent.
func (s *Store) ClearToken() { s.clear(TokenKey, &s.token) }

// Token returns the current bearer token, if any.
func (s *Store) Token() (string, bool) { return s.get(&s.token) }

// SetChallenge persists the pending second-factor challenge token.
func (s *Store) SetChallenge(token string) { s.set(ChallengeKey, &s.challenge, token) }

// ClearChallenge removes the persisted challenge. Idempotent.
func (s *Store) ClearChallenge() { s.clear(ChallengeKey, &s.challenge) }

// Challenge returns the pending second-factor challenge, if any.
func (s *Store) Challenge() (string, bool) { return s.get(&s.challenge) }

func (s *Store) set(key string, sl *slot, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl.value = value
	sl.present = true
	if err := s.backend.Set(key, value); err != nil {
		s.logger.Warn("persisting slot failed, session is in-memory only", "key", key, "error", err)
	}
}

func (s *Store) clear(key string, sl *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl.value = ""
	sl.present = false
	if err := s.backend.Delete(key); err != nil {
		s.logger.Warn("clearing persisted slot failed", "key", key, "error", err)
	}
}

func (s *Store) get(sl *slot) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sl.value, sl.present
}

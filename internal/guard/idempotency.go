package guard

import (
	"sync"
	"time"
)

type idemKey struct {
	agent string
	key   string
}

type idemEntry struct {
	result    any
	expiresAt time.Time
}

// IdempotencyStore caches the result of a mutating call per (agent, key)
// until the TTL elapses. Keys from different agents never collide.
type IdempotencyStore struct {
	ttl time.Duration
	now Clock

	mu        sync.Mutex
	entries   map[idemKey]idemEntry
	lastSweep time.Time
}

// NewIdempotencyStore creates a store whose entries live for ttl.
func NewIdempotencyStore(ttl time.Duration, now Clock) *IdempotencyStore {
	if now == nil {
		now = time.Now
	}
	return &IdempotencyStore{ttl: ttl, now: now, entries: make(map[idemKey]idemEntry)}
}

// Lookup returns the stored result for (agentID, key) if it has not expired.
// An entry is expired once now >= insertion time + TTL.
func (s *IdempotencyStore) Lookup(agentID, key string) (any, bool) {
	if key == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemKey{agentID, key}
	e, ok := s.entries[k]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, k)
		return nil, false
	}
	return e.result, true
}

// Store records result for (agentID, key), replacing any prior entry. Expired
// entries are swept at most once per TTL.
func (s *IdempotencyStore) Store(agentID, key string, result any) {
	if key == "" {
		return
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSweep.IsZero() || now.Sub(s.lastSweep) >= s.ttl {
		s.sweep(now)
	}
	s.entries[idemKey{agentID, key}] = idemEntry{result: result, expiresAt: now.Add(s.ttl)}
}

func (s *IdempotencyStore) sweep(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.lastSweep = now
}

// Len returns the number of entries held, expired or not.
func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Package session owns all per-user conversation state. Sessions are
// bounded (ring-buffer history) and time-limited (inactivity TTL), and
// live only in process memory.
package session

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/shirayu/docent/pkg/model"
)

const (
	// DefaultMaxHistory is the maximum number of exchanges retained per user.
	DefaultMaxHistory = 20
	// DefaultTimeout is the inactivity duration after which a session expires.
	DefaultTimeout = 30 * time.Minute

	shardCount = 16
)

// Store maps user IDs to their conversation sessions. The map is
// sharded by user ID so that activity on one user never blocks
// unrelated users.
type Store struct {
	maxHistory int
	timeout    time.Duration
	now        func() time.Time

	shards [shardCount]shard
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*state
}

// state is the mutable per-user record. It is only touched while the
// owning shard is locked.
type state struct {
	id           model.SessionID
	exchanges    []model.Exchange
	lastActivity time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMaxHistory caps the number of exchanges kept per user.
func WithMaxHistory(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// WithTimeout sets the inactivity TTL of a session.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock replaces the time source, mainly for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		maxHistory: DefaultMaxHistory,
		timeout:    DefaultTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i].sessions = make(map[string]*state)
	}
	return s
}

func (s *Store) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.shards[h.Sum32()%shardCount]
}

// expired reports whether st has been inactive for at least the TTL.
// Expiry is derived, never stored.
func (s *Store) expired(st *state, now time.Time) bool {
	return now.Sub(st.lastActivity) >= s.timeout
}

// GetHistory returns the user's exchanges in insertion order, oldest
// first. An unknown user yields an empty history. An expired session is
// deleted on access and likewise yields an empty history.
func (s *Store) GetHistory(userID string) []model.Exchange {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.sessions[userID]
	if !ok {
		return nil
	}
	if s.expired(st, s.now()) {
		delete(sh.sessions, userID)
		return nil
	}

	out := make([]model.Exchange, len(st.exchanges))
	copy(out, st.exchanges)
	return out
}

// Append records one completed exchange for the user. A missing or
// expired session is replaced with a fresh one first. The history is
// trimmed to the configured cap, dropping the oldest exchanges.
func (s *Store) Append(userID, human, assistant string) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := s.now()

	st, ok := sh.sessions[userID]
	if !ok || s.expired(st, now) {
		st = &state{id: model.NewSessionID()}
		sh.sessions[userID] = st
	}

	st.exchanges = append(st.exchanges, model.Exchange{
		Human:     human,
		Assistant: assistant,
		CreatedAt: now,
	})
	if n := len(st.exchanges) - s.maxHistory; n > 0 {
		trimmed := make([]model.Exchange, s.maxHistory)
		copy(trimmed, st.exchanges[n:])
		st.exchanges = trimmed
	}

	// lastActivity must never move backwards even with a skewed clock.
	if now.After(st.lastActivity) {
		st.lastActivity = now
	}
}

// Clear drops the user's exchanges but keeps the session entry alive
// with a refreshed lastActivity, leaving the user active with an empty
// history. Natural expiry removes the entry outright instead; the
// asymmetry is intentional so that an explicit "start over" does not
// look like a timeout. Returns false when the user has no session.
func (s *Store) Clear(userID string) bool {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.sessions[userID]
	if !ok {
		return false
	}
	st.exchanges = nil
	st.lastActivity = s.now()
	return true
}

// IsActive reports whether the user has a session within its TTL.
func (s *Store) IsActive(userID string) bool {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.sessions[userID]
	return ok && !s.expired(st, s.now())
}

// SweepExpired deletes every expired session and returns how many were
// removed. Safe to call concurrently with reads and appends; each shard
// is locked in turn so an in-flight append is never interleaved with
// its own deletion.
func (s *Store) SweepExpired() int {
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		now := s.now()
		for userID, st := range sh.sessions {
			if s.expired(st, now) {
				delete(sh.sessions, userID)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// ActiveCount returns the number of sessions within their TTL.
func (s *Store) ActiveCount() int {
	count := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		now := s.now()
		for _, st := range sh.sessions {
			if !s.expired(st, now) {
				count++
			}
		}
		sh.mu.Unlock()
	}
	return count
}

// Summary describes the user's session state for diagnostics. Unknown
// users are not an error; they yield a zero summary.
func (s *Store) Summary(userID string) model.Summary {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	summary := model.Summary{UserID: userID}

	st, ok := sh.sessions[userID]
	if !ok {
		return summary
	}

	summary.Exists = true
	summary.MessageCount = len(st.exchanges) * 2 // one human + one assistant per exchange
	summary.LastActivity = st.lastActivity
	summary.Active = !s.expired(st, s.now())
	return summary
}

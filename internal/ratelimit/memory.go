package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryStore keeps one token bucket per key. A bucket holds limit tokens and
// refills at limit/window, so a client can burst its whole budget and then
// earns requests back continuously.
type MemoryStore struct {
	mu           sync.Mutex
	entries      map[string]*memoryEntry
	limit        int
	every        rate.Limit
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type memoryEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryOption customizes a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithIdleTTL sets how long an untouched key is kept.
func WithIdleTTL(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.idleTTL = d }
}

// WithCleanupEvery sets the janitor period.
func WithCleanupEvery(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore allows limit requests per window for each key.
func NewMemoryStore(limit int, window time.Duration, opts ...MemoryOption) *MemoryStore {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	s := &MemoryStore{
		entries:      make(map[string]*memoryEntry),
		limit:        limit,
		every:        rate.Limit(float64(limit) / window.Seconds()),
		idleTTL:      2 * window,
		cleanupEvery: time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Take implements Store.
func (s *MemoryStore) Take(_ context.Context, key string) (Decision, error) {
	now := s.now()
	lim := s.limiter(key, now)

	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)
	if tokens < 0 {
		tokens = 0
	}

	dec := Decision{
		Allowed:   allowed,
		Limit:     s.limit,
		Remaining: int(math.Floor(tokens)),
		Reset:     s.refill(float64(s.limit) - tokens),
	}
	if !allowed {
		dec.RetryAfter = s.refill(1 - tokens)
	}
	return dec, nil
}

// refill is the time the bucket needs to earn n tokens.
func (s *MemoryStore) refill(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n / float64(s.every) * float64(time.Second))
}

func (s *MemoryStore) limiter(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}
	lim := rate.NewLimiter(s.every, s.limit)
	s.entries[key] = &memoryEntry{lim: lim, lastSeen: now}
	return lim
}

// Cleanup drops keys idle for longer than the idle TTL.
func (s *MemoryStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// Len reports how many keys are tracked.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor cleans idle keys periodically until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}
	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// Package ratelimit implements the fixed-window admission limiter and its counter stores
package ratelimit

import (
	"context"
	"sync"
	"time"

	ptime "authgate/internal/platform/time"
)

// Hit is the caller's standing after one increment
type Hit struct {
	Count   int
	ResetAt time.Time
}

// Store counts hits per client key inside fixed windows
// Increment must be atomic per key: concurrent callers never observe the same count
type Store interface {
	Increment(ctx context.Context, key string) (Hit, error)
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps windows in process memory
// A window opens at the client's first hit and lasts for the configured length
type MemoryStore struct {
	mu     sync.Mutex
	length time.Duration
	hits   map[string]*window
	clock  ptime.Clock

	stop chan struct{}
	once sync.Once
}

// MemoryOption tunes a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock replaces the wall clock
func WithClock(c ptime.Clock) MemoryOption {
	return func(s *MemoryStore) { s.clock = c }
}

// NewMemoryStore returns a store with windows of length d and starts its sweeper.
// Close stops the sweeper
func NewMemoryStore(d time.Duration, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		length: d,
		hits:   make(map[string]*window),
		clock:  ptime.System,
		stop:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.sweepEvery(d)
	return s
}

// Increment counts one hit for key, opening a new window when the last one expired
func (s *MemoryStore) Increment(_ context.Context, key string) (Hit, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.hits[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(s.length)}
		s.hits[key] = w
	}
	w.count++
	return Hit{Count: w.count, ResetAt: w.resetAt}, nil
}

// Len reports how many keys hold a window
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hits)
}

// Close stops the sweeper; safe to call more than once
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) sweepEvery(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.sweep(s.clock.Now())
		}
	}
}

// sweep drops expired windows
func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, w := range s.hits {
		if !now.Before(w.resetAt) {
			delete(s.hits, k)
		}
	}
}

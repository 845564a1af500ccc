package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemory is a single-process sliding window store.
type InMemory struct {
	mu      sync.Mutex
	buckets map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	hits   []time.Time
	window time.Duration
}

func NewInMemory() *InMemory {
	return &InMemory{
		buckets: make(map[string]*slidingWindow),
		now:     time.Now,
	}
}

// Allow records one hit for key if it fits in the window.
func (s *InMemory) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sw := s.buckets[key]
	if sw == nil {
		sw = &slidingWindow{window: window}
		s.buckets[key] = sw
	}
	sw.window = window
	sw.cleanup(now)

	if len(sw.hits) >= limit {
		resetAt := now.Add(window)
		if len(sw.hits) > 0 {
			resetAt = sw.hits[0].Add(window)
		}
		return &Result{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: retryAfter(resetAt, now),
		}, nil
	}

	sw.hits = append(sw.hits, now)
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.hits),
		ResetAt:   sw.hits[0].Add(window),
	}, nil
}

// DeleteExpired drops keys with no hits left in their window.
func (s *InMemory) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, sw := range s.buckets {
		sw.cleanup(now)
		if len(sw.hits) == 0 {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed, nil
}

// cleanup drops hits that have left the window. hits is ordered.
func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.hits); i++ {
		if sw.hits[i].After(cutoff) {
			break
		}
	}
	sw.hits = sw.hits[i:]
}

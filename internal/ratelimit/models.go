// Package ratelimit throttles unauthenticated provider endpoints per client IP
// with a sliding window.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one check against a window.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds
}

// Store counts requests per key within a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Rule is the allowance for one endpoint class.
type Rule struct {
	Class  string
	Limit  int
	Window time.Duration
}

// ExceededResponse is written with 429.
type ExceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}

func retryAfter(resetAt, now time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

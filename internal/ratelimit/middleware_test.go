package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpauth/pkg/platform/middleware/metadata"
	"mcpauth/pkg/testutil"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("redis down")
}

func limitedHandler(l *Limiter, rule Rule) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return metadata.ClientMetadata(l.ByIP(rule)(ok))
}

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/register", nil)
	req.RemoteAddr = ip + ":5555"
	return req
}

func TestByIP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := limitedHandler(New(NewInMemory(), logger), Rule{Class: "register", Limit: 2, Window: time.Minute})

	for range 2 {
		rr := testutil.DoRequest(h, requestFrom("10.0.0.1"))
		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
	}

	rr := testutil.DoRequest(h, requestFrom("10.0.0.1"))
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
	testutil.AssertJSONContains(t, rr, "error", "rate_limit_exceeded")
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = testutil.DoRequest(h, requestFrom("10.0.0.2"))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestByIPIgnoresForwardedHeaders(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := limitedHandler(New(NewInMemory(), logger), Rule{Class: "register", Limit: 2, Window: time.Minute})

	codes := make([]int, 0, 5)
	for i := range 5 {
		req := requestFrom("10.0.0.1")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", i))
		codes = append(codes, testutil.DoRequest(h, req).Code)
	}

	assert.Equal(t, []int{
		http.StatusNoContent, http.StatusNoContent,
		http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests,
	}, codes)
}

func TestByIPFailsOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := limitedHandler(New(failingStore{}, logger), Rule{Class: "token", Limit: 1, Window: time.Minute})

	rr := testutil.DoRequest(h, requestFrom("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
}

func TestByIPDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := limitedHandler(New(NewInMemory(), logger, WithDisabled(true)), Rule{Class: "token", Limit: 1, Window: time.Minute})

	for range 3 {
		assert.Equal(t, http.StatusNoContent, testutil.DoRequest(h, requestFrom("10.0.0.1")).Code)
	}
}

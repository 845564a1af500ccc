package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"mcpauth/pkg/platform/httputil"
	"mcpauth/pkg/platform/middleware/metadata"
	"mcpauth/pkg/requestcontext"
)

// Limiter builds per-IP throttling middleware over a Store.
type Limiter struct {
	store    Store
	logger   *slog.Logger
	disabled bool
}

type Option func(*Limiter)

// WithDisabled turns every middleware into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(l *Limiter) {
		l.disabled = disabled
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{store: store, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	if l.disabled {
		logger.Info("rate limiting disabled")
	}
	return l
}

// ByIP limits requests per client IP under rule. Store failures let the
// request through.
func (l *Limiter) ByIP(rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.disabled || rule.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			if ip == "" {
				ip = metadata.ClientIPFromRequest(r)
			}

			result, err := l.store.Allow(ctx, rule.Class+":"+ip, rule.Limit, rule.Window)
			if err != nil {
				l.logger.ErrorContext(ctx, "failed to check rate limit",
					"class", rule.Class,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			addHeaders(w, result)
			if !result.Allowed {
				l.logger.WarnContext(ctx, "rate limit exceeded",
					"class", rule.Class,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, &ExceededResponse{
					Error:            "rate_limit_exceeded",
					ErrorDescription: "Too many requests from this IP address. Please try again later.",
					RetryAfter:       result.RetryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

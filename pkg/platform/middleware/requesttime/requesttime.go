// Package requesttime pins one "now" per HTTP request. Audit events emitted
// while serving the request are stamped with it.
package requesttime

import (
	"net/http"
	"time"

	"mcpauth/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

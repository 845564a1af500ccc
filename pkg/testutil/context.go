package testutil

import (
	"net/http"

	"mcpauth/pkg/requestcontext"
)

// WithAuth puts the values RequireAuth would set on the request context.
func WithAuth(req *http.Request, userID, sessionID, clientID string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithSessionID(ctx, sessionID)
	ctx = requestcontext.WithClientID(ctx, clientID)
	return req.WithContext(ctx)
}

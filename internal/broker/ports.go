package broker

import (
	"context"
	"net/http"

	"mcpauth/internal/domain"
	"mcpauth/internal/upstream"
	"mcpauth/pkg/platform/audit"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Provider,Upstream,IdentityFetcher,ConsentCache,AuditPublisher

// Provider is the downstream authorization server the broker fronts. It owns
// client registration and grant issuance.
type Provider interface {
	ParseAuthRequest(r *http.Request) (*domain.AuthRequest, error)
	// LookupClient returns nil and no error for unknown clients.
	LookupClient(ctx context.Context, clientID string) (*domain.ClientInfo, error)
	// CompleteAuthorization mints the downstream grant and returns the URL the
	// user agent is sent back to.
	CompleteAuthorization(ctx context.Context, c domain.Completion) (string, error)
}

// Upstream is the identity provider's OAuth endpoint pair.
type Upstream interface {
	AuthorizeURL(p upstream.AuthorizeParams) string
	ExchangeCode(ctx context.Context, p upstream.ExchangeParams) (string, error)
}

// IdentityFetcher resolves an upstream access token to the user behind it.
type IdentityFetcher interface {
	FetchIdentity(ctx context.Context, accessToken string) (domain.Identity, error)
}

// ConsentCache answers whether this browser already approved a client.
type ConsentCache interface {
	IsApproved(cookieHeader, clientID string) bool
	Approve(cookieHeader, clientID string) (*http.Cookie, error)
}

// AuditPublisher records flow transitions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Package models holds the downstream authorization server's aggregates:
// registered clients, single-use grants and issued-token sessions.
package models

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"slices"
	"time"

	"mcpauth/internal/domain"
)

const (
	ResponseTypeCode = "code"

	GrantTypeAuthorizationCode = "authorization_code"

	AuthMethodNone        = "none"
	AuthMethodSecretPost  = "client_secret_post"
	AuthMethodSecretBasic = "client_secret_basic"

	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"

	TokenTypeBearer = "bearer"
)

// Client is a registered OAuth client.
//
// Invariants:
//   - ClientID is non-empty and immutable
//   - RedirectURIs is non-empty
//   - ClientSecretHash is empty iff TokenEndpointAuthMethod is "none"
type Client struct {
	ClientID                string    `json:"client_id"`
	ClientSecretHash        string    `json:"-"`
	ClientName              string    `json:"client_name,omitempty"`
	ClientURI               string    `json:"client_uri,omitempty"`
	LogoURI                 string    `json:"logo_uri,omitempty"`
	PolicyURI               string    `json:"policy_uri,omitempty"`
	TosURI                  string    `json:"tos_uri,omitempty"`
	RedirectURIs            []string  `json:"redirect_uris"`
	Contacts                []string  `json:"contacts,omitempty"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method"`
	CreatedAt               time.Time `json:"created_at"`
}

// IsPublic reports whether the client authenticates with PKCE only.
func (c *Client) IsPublic() bool {
	return c.TokenEndpointAuthMethod == AuthMethodNone
}

// HasRedirectURI requires an exact match against the registered URIs.
func (c *Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// Info projects the client onto the display metadata used by the consent dialog.
func (c *Client) Info() *domain.ClientInfo {
	return &domain.ClientInfo{
		ClientID:     c.ClientID,
		ClientName:   c.ClientName,
		ClientURI:    c.ClientURI,
		LogoURI:      c.LogoURI,
		PolicyURI:    c.PolicyURI,
		TosURI:       c.TosURI,
		RedirectURIs: slices.Clone(c.RedirectURIs),
		Contacts:     slices.Clone(c.Contacts),
	}
}

// Props are the identity attributes carried from the upstream login into the
// downstream grant and session.
type Props struct {
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// PropsFromIdentity copies the upstream identity. The upstream access token is
// not carried.
func PropsFromIdentity(id domain.Identity) Props {
	return Props{Login: id.Login, Name: id.Name, Email: id.Email}
}

// Grant is a pending authorization code.
type Grant struct {
	Code                string    `json:"code"`
	ClientID            string    `json:"client_id"`
	RedirectURI         string    `json:"redirect_uri"`
	Scope               []string  `json:"scope"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	UserID              string    `json:"user_id"`
	Label               string    `json:"label"`
	Props               Props     `json:"props"`
	CreatedAt           time.Time `json:"created_at"`
	ExpiresAt           time.Time `json:"expires_at"`
}

// IsExpired reports whether the grant can no longer be redeemed at now.
func (g *Grant) IsExpired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// VerifyPKCE checks verifier against the grant's challenge. Grants without a
// challenge accept any verifier, including none.
func (g *Grant) VerifyPKCE(verifier string) bool {
	if g.CodeChallenge == "" {
		return true
	}
	if verifier == "" {
		return false
	}
	var computed string
	switch g.CodeChallengeMethod {
	case PKCEMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		computed = base64.RawURLEncoding.EncodeToString(sum[:])
	case PKCEMethodPlain, "":
		computed = verifier
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(g.CodeChallenge)) == 1
}

// Session records an issued access token, keyed by its JTI.
type Session struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	UserID    string    `json:"user_id"`
	Label     string    `json:"label"`
	Scope     []string  `json:"scope"`
	Props     Props     `json:"props"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the session's token has lapsed at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// UserInfo is the /userinfo response.
type UserInfo struct {
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// TokenResult is returned from the token endpoint.
type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// RegistrationResult is the RFC 7591 registration response. ClientSecret is
// only ever returned here, in plaintext, once.
type RegistrationResult struct {
	*Client
	ClientSecret          string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt      int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt int64    `json:"client_secret_expires_at"`
	GrantTypes            []string `json:"grant_types"`
	ResponseTypes         []string `json:"response_types"`
}

// ServerMetadata is the RFC 8414 authorization server metadata document.
type ServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

// Package consent remembers which MCP clients a browser has approved.
//
// The approved set lives entirely in a signed cookie:
//
//	hex(HMAC-SHA256(payload)) "." base64(payload)
//
// where payload is a JSON array of client ids. A cookie that does not verify
// is treated as "nothing approved", so tampering can only cause an extra
// prompt and never a skipped one.
package consent

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"mcpauth/internal/platform/config"
	"mcpauth/internal/platform/metrics"
	"mcpauth/internal/signer"
	dErrors "mcpauth/pkg/domain-errors"
	pstrings "mcpauth/pkg/platform/strings"
)

// MaxAge is one year, in seconds.
const MaxAge = 31536000

// Cache reads and writes the consent cookie. It holds no mutable state.
type Cache struct {
	signer  *signer.Signer
	name    string
	domain  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithCookieName overrides the default cookie name.
func WithCookieName(name string) Option {
	return func(c *Cache) {
		if name != "" {
			c.name = name
		}
	}
}

// WithDomain sets the Domain attribute on issued cookies.
func WithDomain(domain string) Option {
	return func(c *Cache) {
		c.domain = domain
	}
}

// WithLogger sets the logger for unreadable cookies. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics counts consent cookies that fail signature checks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New builds a Cache that signs with s.
func New(s *signer.Signer, opts ...Option) *Cache {
	c := &Cache{
		signer: s,
		name:   config.DefaultCookieName,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CookieName returns the name of the consent cookie.
func (c *Cache) CookieName() string {
	return c.name
}

// IsApproved reports whether clientID is in the verified set carried by the
// Cookie header. Every parse or verification failure yields false.
func (c *Cache) IsApproved(cookieHeader, clientID string) bool {
	if clientID == "" {
		return false
	}
	for _, approved := range c.ApprovedClients(cookieHeader) {
		if approved == clientID {
			return true
		}
	}
	return false
}

// ApprovedClients returns the verified set carried by the Cookie header, or
// nil when there is no cookie or it does not verify.
func (c *Cache) ApprovedClients(cookieHeader string) []string {
	value, ok := c.cookieValue(cookieHeader)
	if !ok {
		return nil
	}

	sig, encoded, ok := strings.Cut(value, ".")
	if !ok || sig == "" || strings.Contains(encoded, ".") {
		c.logger.Debug("consent cookie malformed")
		return nil
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		c.logger.Debug("consent cookie payload is not base64", "error", err)
		return nil
	}
	if !c.signer.Verify(sig, payload) {
		c.logger.Warn("consent cookie signature mismatch")
		c.metrics.IncrementConsentIntegrityFailures()
		return nil
	}

	var clients []string
	if err := json.Unmarshal(payload, &clients); err != nil {
		c.logger.Warn("consent cookie payload is not a list of client ids", "error", err)
		return nil
	}
	return clients
}

// Approve adds clientID to the set carried by the Cookie header and returns
// the cookie to set. An unreadable existing cookie starts a fresh set.
func (c *Cache) Approve(cookieHeader, clientID string) (*http.Cookie, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "client id is required")
	}

	clients := pstrings.Union(c.ApprovedClients(cookieHeader), clientID)
	payload, err := json.Marshal(clients)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode consent")
	}

	return &http.Cookie{
		Name:     c.name,
		Value:    c.signer.Sign(payload) + "." + base64.StdEncoding.EncodeToString(payload),
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   MaxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// cookieValue finds the consent cookie in a raw Cookie header using the
// net/http parser. Malformed pairs elsewhere in the header are skipped.
func (c *Cache) cookieValue(cookieHeader string) (string, bool) {
	if cookieHeader == "" {
		return "", false
	}
	r := &http.Request{Header: http.Header{"Cookie": {cookieHeader}}}
	cookie, err := r.Cookie(c.name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

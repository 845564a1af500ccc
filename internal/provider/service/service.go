// Package service implements the downstream authorization server the broker
// hands completed logins to: client registry, grant issuance and the token
// endpoint.
package service

import (
	"context"
	"log/slog"
	"time"

	jwttoken "mcpauth/internal/jwt_token"
	"mcpauth/internal/platform/metrics"
	"mcpauth/internal/provider/models"
	"mcpauth/pkg/platform/audit"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ClientStore,GrantStore,SessionStore,TokenIssuer,AuditPublisher

const (
	DefaultGrantTTL       = 10 * time.Minute
	DefaultAccessTokenTTL = time.Hour
)

// ClientStore persists registrations. Create returns sentinel.ErrConflict for a
// taken id; FindByID returns sentinel.ErrNotFound.
type ClientStore interface {
	Create(ctx context.Context, c *models.Client) error
	FindByID(ctx context.Context, clientID string) (*models.Client, error)
}

// GrantStore holds pending codes. Consume is atomic: a code is returned at
// most once. Missing codes yield sentinel.ErrNotFound, stale ones
// sentinel.ErrExpired.
type GrantStore interface {
	Save(ctx context.Context, g *models.Grant) error
	Consume(ctx context.Context, code string) (*models.Grant, error)
}

// SessionStore records issued tokens by JTI.
type SessionStore interface {
	Save(ctx context.Context, s *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

// TokenIssuer mints downstream access tokens.
type TokenIssuer interface {
	GenerateAccessToken(userID, clientID string, scope []string, expiresIn time.Duration) (*jwttoken.AccessToken, error)
}

// AuditPublisher records registry and token events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the downstream provider.
type Service struct {
	clients  ClientStore
	grants   GrantStore
	sessions SessionStore
	tokens   TokenIssuer

	auditor AuditPublisher
	logger  *slog.Logger
	metrics *metrics.Metrics

	grantTTL       time.Duration
	accessTokenTTL time.Duration
	now            func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithGrantTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.grantTTL = d
		}
	}
}

func WithAccessTokenTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.accessTokenTTL = d
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a provider Service.
func New(clients ClientStore, grants GrantStore, sessions SessionStore, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		clients:        clients,
		grants:         grants,
		sessions:       sessions,
		tokens:         tokens,
		logger:         slog.Default(),
		grantTTL:       DefaultGrantTTL,
		accessTokenTTL: DefaultAccessTokenTTL,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err.Error(),
		)
	}
}

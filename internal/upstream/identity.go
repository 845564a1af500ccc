package upstream

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v74/github"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mcpauth/internal/domain"
	"mcpauth/internal/platform/metrics"
	dErrors "mcpauth/pkg/domain-errors"
)

// IdentityFetcher resolves the user behind an upstream access token.
type IdentityFetcher interface {
	FetchIdentity(ctx context.Context, accessToken string) (domain.Identity, error)
}

// GitHubIdentity reads the authenticated user from the GitHub REST API.
type GitHubIdentity struct {
	httpClient *http.Client
	baseURL    *url.URL
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// GitHubOption configures a GitHubIdentity.
type GitHubOption func(*GitHubIdentity)

// WithAPIBaseURL points the client at a GitHub Enterprise or test server.
func WithAPIBaseURL(raw string) GitHubOption {
	return func(g *GitHubIdentity) {
		if raw == "" {
			return
		}
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		if u, err := url.Parse(raw); err == nil {
			g.baseURL = u
		}
	}
}

// WithHTTPClient replaces the transport used for API calls. Nil is ignored.
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHubIdentity) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// WithTimeout bounds each identity fetch. Zero means no extra deadline.
func WithTimeout(d time.Duration) GitHubOption {
	return func(g *GitHubIdentity) {
		g.timeout = d
	}
}

// WithLogger sets the logger for failed lookups. Nil is ignored.
func WithLogger(logger *slog.Logger) GitHubOption {
	return func(g *GitHubIdentity) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics records identity fetch latency.
func WithMetrics(m *metrics.Metrics) GitHubOption {
	return func(g *GitHubIdentity) {
		g.metrics = m
	}
}

// NewGitHubIdentity builds a GitHubIdentity against api.github.com unless
// WithAPIBaseURL says otherwise.
func NewGitHubIdentity(opts ...GitHubOption) *GitHubIdentity {
	g := &GitHubIdentity{
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FetchIdentity calls GET /user with the access token.
func (g *GitHubIdentity) FetchIdentity(ctx context.Context, accessToken string) (domain.Identity, error) {
	if accessToken == "" {
		return domain.Identity{}, dErrors.New(dErrors.CodeBadRequest, "missing access token")
	}

	ctx, span := g.tracer.Start(ctx, "upstream.fetch_identity", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	client := github.NewClient(g.httpClient).WithAuthToken(accessToken)
	if g.baseURL != nil {
		client.BaseURL = g.baseURL
	}

	start := time.Now()
	user, resp, err := client.Users.Get(ctx, "")
	if err != nil {
		g.metrics.ObserveUpstreamLatency("identity", "error", time.Since(start))
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		g.logger.WarnContext(ctx, "failed to fetch upstream identity", "status", status, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity fetch failed")
		if ctx.Err() != nil {
			return domain.Identity{}, dErrors.Wrap(err, dErrors.CodeTimeout, "upstream identity request timed out")
		}
		return domain.Identity{}, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to fetch user identity")
	}
	g.metrics.ObserveUpstreamLatency("identity", "ok", time.Since(start))

	if user.GetLogin() == "" {
		span.SetStatus(codes.Error, "identity without login")
		return domain.Identity{}, dErrors.New(dErrors.CodeUpstream, "upstream identity has no login")
	}
	return domain.Identity{
		Login: user.GetLogin(),
		Name:  user.GetName(),
		Email: user.GetEmail(),
	}, nil
}

// Package upstream talks to the identity provider the broker delegates login
// to: it builds the authorize redirect, trades the returned code for an access
// token, and fetches the user's identity with that token.
//
// Nothing here retries. Authorization codes are single use, so a failed
// exchange ends the flow and the user starts again from /authorize.
package upstream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"mcpauth/internal/platform/metrics"
	dErrors "mcpauth/pkg/domain-errors"
)

const tracerName = "mcpauth/internal/upstream"

// Config describes the upstream OAuth application.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	Scope        string
	// Timeout bounds the token exchange. Zero means no extra deadline.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// AuthorizeParams are the per-request parts of the authorize redirect.
type AuthorizeParams struct {
	RedirectURI string
	State       string
	// Scope overrides Config.Scope when set.
	Scope string
}

// ExchangeParams are the inputs of one code exchange.
type ExchangeParams struct {
	Code        string
	RedirectURI string
}

// Exchanger performs the authorization-code exchange against the upstream
// token endpoint.
type Exchanger struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// New builds an Exchanger. logger and m may be nil.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Exchanger {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Exchanger{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer(tracerName),
	}
}

func (e *Exchanger) oauthConfig(redirectURI, scope string) *oauth2.Config {
	if scope == "" {
		scope = e.cfg.Scope
	}
	return &oauth2.Config{
		ClientID:     e.cfg.ClientID,
		ClientSecret: e.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       strings.Fields(scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:   e.cfg.AuthorizeURL,
			TokenURL:  e.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizeURL builds the upstream authorize redirect. It sets client_id,
// redirect_uri, scope, state (when non-empty) and response_type=code, keeping
// any query already present on the configured URL. No I/O.
func (e *Exchanger) AuthorizeURL(p AuthorizeParams) string {
	return e.oauthConfig(p.RedirectURI, p.Scope).AuthCodeURL(p.State)
}

// ExchangeCode trades an authorization code for an upstream access token.
//
// Error codes:
//   - empty code: CodeBadRequest, nothing is sent
//   - non-2xx from the token endpoint: CodeUpstream (500)
//   - 2xx without access_token: CodeBadRequest (400)
//   - transport failure: CodeBadGateway (502)
//   - deadline exceeded: CodeTimeout (504)
//
// The response body is never part of the returned error.
func (e *Exchanger) ExchangeCode(ctx context.Context, p ExchangeParams) (string, error) {
	if p.Code == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "missing code")
	}

	ctx, span := e.tracer.Start(ctx, "upstream.exchange_code", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.cfg.HTTPClient)

	start := time.Now()
	tok, err := e.oauthConfig(p.RedirectURI, "").Exchange(ctx, p.Code)
	if err != nil {
		e.metrics.ObserveUpstreamLatency("token", "error", time.Since(start))
		err = e.classify(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return "", err
	}
	e.metrics.ObserveUpstreamLatency("token", "ok", time.Since(start))
	span.SetAttributes(attribute.String("oauth.token_type", tok.TokenType))
	return tok.AccessToken, nil
}

func (e *Exchanger) classify(ctx context.Context, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		status := 0
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		e.logger.DebugContext(ctx, "upstream token endpoint rejected exchange",
			"status", status,
			"error_code", rErr.ErrorCode,
			"body", string(rErr.Body),
		)
		xErr := &ExchangeError{StatusCode: status, ErrorCode: rErr.ErrorCode}
		// Some providers answer 200 with an error field and no token.
		if status >= 200 && status < 300 {
			return dErrors.Wrap(xErr, dErrors.CodeBadRequest, "missing access token")
		}
		return dErrors.Wrap(xErr, dErrors.CodeUpstream, "failed to fetch access token")
	}

	var uErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &uErr) && uErr.Timeout()) {
		return dErrors.Wrap(&ExchangeError{Err: err}, dErrors.CodeTimeout, "upstream token endpoint timed out")
	}

	if uErr != nil {
		e.logger.WarnContext(ctx, "upstream token endpoint unreachable", "error", uErr.Err)
		return dErrors.Wrap(&ExchangeError{Err: err}, dErrors.CodeBadGateway, "upstream token endpoint unreachable")
	}

	// x/oauth2 reports a 2xx body without access_token (or an unparsable one)
	// as a plain error.
	e.logger.DebugContext(ctx, "upstream token response unusable", "error", err)
	return dErrors.Wrap(&ExchangeError{Err: err}, dErrors.CodeBadRequest, "missing access token")
}

// ExchangeError describes a failed code exchange without carrying the
// upstream response body.
type ExchangeError struct {
	// StatusCode is the upstream HTTP status, zero when no response arrived.
	StatusCode int
	// ErrorCode is the OAuth error field from the response, if any.
	ErrorCode string
	Err       error
}

func (e *ExchangeError) Error() string {
	var b strings.Builder
	b.WriteString("upstream code exchange failed")
	if e.StatusCode != 0 {
		b.WriteString(": status ")
		b.WriteString(strconv.Itoa(e.StatusCode))
	}
	if e.ErrorCode != "" {
		b.WriteString(": ")
		b.WriteString(e.ErrorCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

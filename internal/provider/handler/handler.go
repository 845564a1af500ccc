// Package handler exposes the downstream authorization server's JSON
// endpoints: token, dynamic registration, userinfo and RFC 8414 metadata.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"mcpauth/internal/platform/metrics"
	"mcpauth/internal/platform/middleware"
	"mcpauth/internal/provider/models"
	dErrors "mcpauth/pkg/domain-errors"
	"mcpauth/pkg/platform/httputil"
	"mcpauth/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

const (
	TokenPath     = "/token"
	RegisterPath  = "/register"
	UserInfoPath  = "/userinfo"
	MetadataPath  = "/.well-known/oauth-authorization-server"
	maxBodyBytes  = 64 << 10
	clientIDParam = "client_id"
)

// Service is the provider surface these endpoints call into.
type Service interface {
	Token(ctx context.Context, req *models.TokenRequest) (*models.TokenResult, error)
	Register(ctx context.Context, req *models.RegistrationRequest) (*models.RegistrationResult, error)
	UserInfo(ctx context.Context, sessionID string) (*models.UserInfo, error)
	Metadata(issuer string) *models.ServerMetadata
}

// Handler serves the provider endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Service
	validator middleware.JWTValidator
	metrics   *metrics.Metrics
	issuer    string

	registerLimit []func(http.Handler) http.Handler
	tokenLimit    []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithRegisterLimit wraps POST /register, typically in a per-IP rate limit.
func WithRegisterLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.registerLimit = append(h.registerLimit, mw)
	}
}

// WithTokenLimit wraps POST /token.
func WithTokenLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.tokenLimit = append(h.tokenLimit, mw)
	}
}

// New creates a provider Handler. When issuer is empty it is derived from each
// request's origin.
func New(service Service, validator middleware.JWTValidator, logger *slog.Logger, m *metrics.Metrics, issuer string, opts ...Option) *Handler {
	h := &Handler{
		logger:    logger,
		service:   service,
		validator: validator,
		metrics:   m,
		issuer:    strings.TrimSuffix(issuer, "/"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the provider routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Use(middleware.LatencyMiddleware(h.metrics))

		r.Get(MetadataPath, h.handleMetadata)
		r.With(h.tokenLimit...).Post(TokenPath, h.handleToken)
		r.With(h.registerLimit...).Post(RegisterPath, h.handleRegister)
		r.With(middleware.RequireAuth(h.validator, h.logger)).Get(UserInfoPath, h.handleUserInfo)
	})
}

func (h *Handler) handleMetadata(w http.ResponseWriter, r *http.Request) {
	issuer := h.issuer
	if issuer == "" {
		issuer = httputil.RequestOrigin(r)
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.Metadata(issuer))
}

// handleToken accepts client credentials either through HTTP Basic or the
// form body, but not both.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "malformed form body"))
		return
	}

	req, err := tokenRequestFromForm(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.service.Token(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "token request rejected",
			"request_id", requestID,
			"client_id", req.ClientID,
			"error", err.Error(),
		)
		if dErrors.HasCode(err, dErrors.CodeInvalidClient) {
			w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
		}
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Pragma", "no-cache")
	httputil.WriteJSON(w, http.StatusOK, res)
}

func tokenRequestFromForm(r *http.Request) (*models.TokenRequest, error) {
	req := &models.TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		ClientID:     r.PostForm.Get(clientIDParam),
		ClientSecret: r.PostForm.Get("client_secret"),
		CodeVerifier: r.PostForm.Get("code_verifier"),
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return req, nil
	}
	if req.ClientSecret != "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "multiple client authentication methods")
	}
	// RFC 6749 2.3.1: credentials are form-urlencoded before Basic encoding.
	id, err := url.QueryUnescape(user)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidClient, "malformed client credentials")
	}
	secret, err := url.QueryUnescape(pass)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidClient, "malformed client credentials")
	}
	if req.ClientID != "" && req.ClientID != id {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "client_id does not match credentials")
	}
	req.ClientID = id
	req.ClientSecret = secret
	return req, nil
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req models.RegistrationRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode registration request",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidClientMetadata, "invalid JSON body"))
		return
	}

	res, err := h.service.Register(ctx, &req)
	if err != nil {
		h.logger.WarnContext(ctx, "client registration failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	info, err := h.service.UserInfo(ctx, requestcontext.SessionID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "userinfo lookup failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

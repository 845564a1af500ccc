// Package broker runs the browser-facing half of the authorization flow:
// consent, the upstream redirect and the callback that hands the upstream
// identity to the downstream provider.
//
// No flow state is kept server side. The pending request travels in the
// dialog form and in the upstream state parameter; approvals live in a signed
// cookie.
package broker

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"mcpauth/internal/consent/dialog"
	"mcpauth/internal/continuation"
	"mcpauth/internal/domain"
	"mcpauth/internal/platform/metrics"
	"mcpauth/internal/platform/middleware"
	"mcpauth/internal/upstream"
	dErrors "mcpauth/pkg/domain-errors"
	"mcpauth/pkg/platform/audit"
	"mcpauth/pkg/platform/httputil"
)

const (
	AuthorizePath = "/authorize"
	CallbackPath  = "/callback"

	maxFormBytes = 64 << 10
)

// Authorize and callback outcomes, used as metric labels.
const (
	outcomePrompted   = "prompted"
	outcomeApproved   = "approved"
	outcomeRedirected = "redirected"
	outcomeRejected   = "rejected"
	outcomeCompleted  = "completed"
	outcomeDenied     = "denied"
	outcomeFailed     = "failed"
)

// Config holds the broker settings that do not come from collaborators.
type Config struct {
	// PublicURL is the externally visible base URL. When empty the callback
	// URL is derived from the request.
	PublicURL string
	// Scope is requested from the upstream provider.
	Scope  string
	Server dialog.ServerInfo
}

// approvalState is the continuation embedded in the consent form.
type approvalState struct {
	OAuthReqInfo *domain.AuthRequest `json:"oauthReqInfo"`
}

// Handler serves /authorize and /callback.
type Handler struct {
	logger   *slog.Logger
	provider Provider
	upstream Upstream
	identity IdentityFetcher
	consent  ConsentCache
	auditor  AuditPublisher
	metrics  *metrics.Metrics
	cfg      Config
}

// New creates a broker Handler.
func New(
	provider Provider,
	up Upstream,
	identity IdentityFetcher,
	consent ConsentCache,
	auditor AuditPublisher,
	logger *slog.Logger,
	m *metrics.Metrics,
	cfg Config,
) *Handler {
	cfg.PublicURL = strings.TrimSuffix(cfg.PublicURL, "/")
	return &Handler{
		logger:   logger,
		provider: provider,
		upstream: up,
		identity: identity,
		consent:  consent,
		auditor:  auditor,
		metrics:  m,
		cfg:      cfg,
	}
}

// Register registers the broker routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.LatencyMiddleware(h.metrics))
		r.HandleFunc(AuthorizePath, h.handleAuthorize)
		r.Get(CallbackPath, h.handleCallback)
	})
}

// handleAuthorize dispatches on method so that anything other than GET and
// POST gets the JSON 400 rather than a bare 405.
func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.handleAuthorizeStart(w, r)
	case http.MethodPost:
		h.handleApprove(w, r)
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "method not allowed"))
	}
}

// handleAuthorizeStart parses the downstream request and either skips straight
// to the upstream provider or asks the user to approve the client.
func (h *Handler) handleAuthorizeStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, err := h.provider.ParseAuthRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid authorization request",
			"request_id", requestID,
			"error", err.Error(),
		)
		h.metrics.IncrementAuthorizeOutcome(outcomeRejected)
		httputil.WriteError(w, asBadRequest(err, "invalid authorization request"))
		return
	}
	if req == nil || req.ClientID == "" {
		h.metrics.IncrementAuthorizeOutcome(outcomeRejected)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "missing client_id"))
		return
	}

	if h.consent.IsApproved(r.Header.Get("Cookie"), req.ClientID) {
		h.redirectUpstream(w, r, req)
		return
	}

	client, err := h.provider.LookupClient(ctx, req.ClientID)
	if err != nil {
		h.logger.ErrorContext(ctx, "client lookup failed",
			"request_id", requestID,
			"client_id", req.ClientID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	state, err := continuation.Encode(approvalState{OAuthReqInfo: req})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode approval state",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build consent dialog"))
		return
	}

	page, err := dialog.RenderBytes(dialog.Page{
		Client: client,
		Server: h.cfg.Server,
		Action: r.URL.Path,
		State:  state,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to render consent dialog",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build consent dialog"))
		return
	}

	h.metrics.IncrementAuthorizeOutcome(outcomePrompted)
	h.emit(r, audit.Event{
		Action:   string(audit.EventConsentPrompted),
		ClientID: req.ClientID,
	})

	header := w.Header()
	header.Set("Content-Type", "text/html; charset=utf-8")
	header.Set("Cache-Control", "no-store")
	header.Set("X-Frame-Options", "DENY")
	header.Set("Content-Security-Policy", "frame-ancestors 'none'")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(page)
	}
}

// handleApprove records the user's approval and continues upstream.
func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.metrics.IncrementAuthorizeOutcome(outcomeRejected)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidRequest, "invalid form body"))
		return
	}

	raw := r.PostForm.Get("state")
	if raw == "" {
		h.metrics.IncrementAuthorizeOutcome(outcomeRejected)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "missing state"))
		return
	}

	var st approvalState
	if err := continuation.Decode(raw, &st); err != nil {
		h.logger.WarnContext(ctx, "invalid approval state",
			"request_id", requestID,
			"error", err.Error(),
		)
		h.metrics.IncrementAuthorizeOutcome(outcomeRejected)
		httputil.WriteError(w, err)
		return
	}
	if st.OAuthReqInfo == nil || st.OAuthReqInfo.ClientID == "" {
		h.metrics.IncrementAuthorizeOutcome(outcomeRejected)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "invalid state: missing client_id"))
		return
	}

	cookie, err := h.consent.Approve(r.Header.Get("Cookie"), st.OAuthReqInfo.ClientID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to record approval",
			"request_id", requestID,
			"client_id", st.OAuthReqInfo.ClientID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	http.SetCookie(w, cookie)

	h.metrics.IncrementAuthorizeOutcome(outcomeApproved)
	h.emit(r, audit.Event{
		Action:   string(audit.EventConsentGranted),
		ClientID: st.OAuthReqInfo.ClientID,
		Decision: "approved",
	})
	h.redirectUpstream(w, r, st.OAuthReqInfo)
}

// redirectUpstream sends the browser to the identity provider with the
// pending request as state.
func (h *Handler) redirectUpstream(w http.ResponseWriter, r *http.Request, req *domain.AuthRequest) {
	ctx := r.Context()
	state, err := continuation.Encode(req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode upstream state",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build upstream redirect"))
		return
	}

	target := h.upstream.AuthorizeURL(upstream.AuthorizeParams{
		RedirectURI: h.callbackURL(r),
		State:       state,
		Scope:       h.cfg.Scope,
	})

	h.metrics.IncrementAuthorizeOutcome(outcomeRedirected)
	h.emit(r, audit.Event{
		Action:   string(audit.EventUpstreamRedirected),
		ClientID: req.ClientID,
	})
	http.Redirect(w, r, target, http.StatusFound)
}

// handleCallback finishes the flow: exchange, identity, downstream grant.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	q := r.URL.Query()

	if upstreamErr := q.Get("error"); upstreamErr != "" {
		h.logger.InfoContext(ctx, "upstream authorization denied",
			"request_id", requestID,
			"upstream_error", upstreamErr,
		)
		h.metrics.IncrementCallbackOutcome(outcomeDenied)
		h.emit(r, audit.Event{
			Action:   string(audit.EventAuthFailed),
			Decision: "denied",
			Reason:   "upstream_denied",
		})
		httputil.WriteError(w, dErrors.New(dErrors.CodeAccessDenied, "authorization was denied at the identity provider"))
		return
	}

	var req domain.AuthRequest
	if err := continuation.Decode(q.Get("state"), &req); err != nil {
		h.logger.WarnContext(ctx, "invalid callback state",
			"request_id", requestID,
			"error", err.Error(),
		)
		h.failCallback(w, r, "", "invalid_state", err)
		return
	}
	if req.ClientID == "" {
		h.failCallback(w, r, "", "invalid_state",
			dErrors.New(dErrors.CodeInvalidRequest, "invalid state: missing client_id"))
		return
	}

	code := q.Get("code")
	if code == "" {
		h.failCallback(w, r, req.ClientID, "missing_code",
			dErrors.New(dErrors.CodeInvalidRequest, "missing code"))
		return
	}

	token, err := h.upstream.ExchangeCode(ctx, upstream.ExchangeParams{
		Code:        code,
		RedirectURI: h.callbackURL(r),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "upstream code exchange failed",
			"request_id", requestID,
			"client_id", req.ClientID,
			"error", err.Error(),
		)
		h.failCallback(w, r, req.ClientID, "exchange_failed", err)
		return
	}

	identity, err := h.identity.FetchIdentity(ctx, token)
	if err != nil {
		h.logger.WarnContext(ctx, "upstream identity fetch failed",
			"request_id", requestID,
			"client_id", req.ClientID,
			"error", err.Error(),
		)
		h.failCallback(w, r, req.ClientID, "identity_failed", asServerError(err))
		return
	}

	redirectTo, err := h.provider.CompleteAuthorization(ctx, domain.Completion{
		Identity:    identity,
		AccessToken: token,
		Request:     req,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to complete authorization",
			"request_id", requestID,
			"client_id", req.ClientID,
			"user_id", identity.Login,
			"error", err.Error(),
		)
		h.failCallback(w, r, req.ClientID, "completion_failed", err)
		return
	}

	h.metrics.IncrementCallbackOutcome(outcomeCompleted)
	h.emit(r, audit.Event{
		Action:   string(audit.EventAuthorizationCompleted),
		UserID:   identity.Login,
		ClientID: req.ClientID,
		Decision: "granted",
	})
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

func (h *Handler) failCallback(w http.ResponseWriter, r *http.Request, clientID, reason string, err error) {
	h.metrics.IncrementCallbackOutcome(outcomeFailed)
	h.emit(r, audit.Event{
		Action:   string(audit.EventAuthFailed),
		ClientID: clientID,
		Decision: "failed",
		Reason:   reason,
	})
	httputil.WriteError(w, err)
}

// callbackURL is the redirect_uri registered with the upstream provider.
func (h *Handler) callbackURL(r *http.Request) string {
	if h.cfg.PublicURL != "" {
		return h.cfg.PublicURL + CallbackPath
	}
	return httputil.RequestOrigin(r) + CallbackPath
}

func (h *Handler) emit(r *http.Request, event audit.Event) {
	if h.auditor == nil {
		return
	}
	ctx := r.Context()
	if err := h.auditor.Emit(ctx, event); err != nil {
		h.logger.WarnContext(ctx, "failed to emit audit event",
			"request_id", middleware.GetRequestID(ctx),
			"action", event.Action,
			"error", err.Error(),
		)
	}
}

// asBadRequest keeps 400-class provider errors and folds everything else into
// invalid_request.
func asBadRequest(err error, msg string) error {
	if dErrors.ToHTTPStatus(dErrors.CodeOf(err)) == http.StatusBadRequest {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInvalidRequest, msg)
}

// asServerError keeps 5xx errors and folds everything else into upstream_error.
func asServerError(err error) error {
	if dErrors.ToHTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to fetch identity")
}

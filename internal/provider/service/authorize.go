package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"mcpauth/internal/domain"
	"mcpauth/internal/provider/models"
	dErrors "mcpauth/pkg/domain-errors"
	"mcpauth/pkg/platform/sentinel"
	pstrings "mcpauth/pkg/platform/strings"
)

// ParseAuthRequest validates an incoming /authorize request against the
// registry. Every rejection is a 400-class error.
func (s *Service) ParseAuthRequest(r *http.Request) (*domain.AuthRequest, error) {
	ctx := r.Context()
	q := r.URL.Query()

	if rt := q.Get("response_type"); rt != models.ResponseTypeCode {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "response_type must be code")
	}
	clientID := q.Get("client_id")
	if clientID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "missing client_id")
	}

	client, err := s.findClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	redirectURI := q.Get("redirect_uri")
	switch {
	case redirectURI == "" && len(client.RedirectURIs) == 1:
		redirectURI = client.RedirectURIs[0]
	case redirectURI == "":
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "redirect_uri is required")
	case !client.HasRedirectURI(redirectURI):
		return nil, dErrors.New(dErrors.CodeInvalidRedirectURI, "redirect_uri is not registered for this client")
	}

	challenge := q.Get("code_challenge")
	method := q.Get("code_challenge_method")
	switch {
	case challenge == "" && method != "":
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "code_challenge_method without code_challenge")
	case challenge != "" && method == "":
		method = models.PKCEMethodPlain
	}
	if method != "" && method != models.PKCEMethodS256 && method != models.PKCEMethodPlain {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "unsupported code_challenge_method")
	}
	if client.IsPublic() && challenge == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "public clients must use PKCE")
	}

	return &domain.AuthRequest{
		ResponseType:        models.ResponseTypeCode,
		ClientID:            client.ClientID,
		RedirectURI:         redirectURI,
		Scope:               pstrings.SplitFields(q.Get("scope")),
		State:               q.Get("state"),
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
	}, nil
}

// LookupClient returns display metadata, or nil for unknown clients.
func (s *Service) LookupClient(ctx context.Context, clientID string) (*domain.ClientInfo, error) {
	client, err := s.clients.FindByID(ctx, clientID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "client lookup failed")
	}
	return client.Info(), nil
}

// CompleteAuthorization mints a single-use grant for the upstream identity and
// returns the client's redirect URI carrying code and state. The client and
// redirect URI are checked again since the request came back through the
// browser.
func (s *Service) CompleteAuthorization(ctx context.Context, c domain.Completion) (string, error) {
	req := c.Request
	if c.Identity.Login == "" {
		return "", dErrors.New(dErrors.CodeUpstream, "identity has no login")
	}

	client, err := s.findClient(ctx, req.ClientID)
	if err != nil {
		return "", err
	}
	if !client.HasRedirectURI(req.RedirectURI) {
		return "", dErrors.New(dErrors.CodeInvalidRedirectURI, "redirect_uri is not registered for this client")
	}
	target, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidRedirectURI, "invalid redirect_uri")
	}

	now := s.now()
	grant := &models.Grant{
		Code:                uuid.NewString(),
		ClientID:            client.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		UserID:              c.Identity.Login,
		Label:               c.Identity.Label(),
		Props:               models.PropsFromIdentity(c.Identity),
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.grantTTL),
	}
	if err := s.grants.Save(ctx, grant); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist grant")
	}

	q := target.Query()
	q.Set("code", grant.Code)
	if req.State != "" {
		q.Set("state", req.State)
	}
	target.RawQuery = q.Encode()

	s.logger.InfoContext(ctx, "authorization grant issued",
		"client_id", client.ClientID,
		"user_id", grant.UserID,
	)
	return target.String(), nil
}

// findClient maps registry misses to invalid_request.
func (s *Service) findClient(ctx context.Context, clientID string) (*models.Client, error) {
	client, err := s.clients.FindByID(ctx, clientID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "unknown client")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "client lookup failed")
	}
	return client, nil
}

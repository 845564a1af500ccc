package service

import (
	"context"
	"errors"
	"strings"

	"mcpauth/internal/provider/models"
	"mcpauth/internal/provider/secrets"
	dErrors "mcpauth/pkg/domain-errors"
	"mcpauth/pkg/platform/audit"
	"mcpauth/pkg/platform/sentinel"
)

// Token redeems an authorization code for a downstream access token.
func (s *Service) Token(ctx context.Context, req *models.TokenRequest) (*models.TokenResult, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		s.rejectToken(ctx, req.ClientID, "invalid_request")
		return nil, err
	}

	res, err := s.exchangeAuthorizationCode(ctx, req)
	if err != nil {
		s.rejectToken(ctx, req.ClientID, string(dErrors.CodeOf(err)))
		return nil, err
	}
	return res, nil
}

func (s *Service) exchangeAuthorizationCode(ctx context.Context, req *models.TokenRequest) (*models.TokenResult, error) {
	client, err := s.clients.FindByID(ctx, req.ClientID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeInvalidClient, "unknown client")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "client lookup failed")
	}
	if !client.IsPublic() {
		if err := secrets.Verify(req.ClientSecret, client.ClientSecretHash); err != nil {
			return nil, err
		}
	}

	grant, err := s.grants.Consume(ctx, req.Code)
	switch {
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrExpired):
		return nil, dErrors.New(dErrors.CodeInvalidGrant, "authorization code is invalid or expired")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to redeem code")
	}
	if grant.IsExpired(s.now()) {
		return nil, dErrors.New(dErrors.CodeInvalidGrant, "authorization code is invalid or expired")
	}
	if grant.ClientID != client.ClientID {
		return nil, dErrors.New(dErrors.CodeInvalidGrant, "authorization code was issued to another client")
	}
	if req.RedirectURI != "" && req.RedirectURI != grant.RedirectURI {
		return nil, dErrors.New(dErrors.CodeInvalidGrant, "redirect_uri does not match the authorization request")
	}
	if !grant.VerifyPKCE(req.CodeVerifier) {
		return nil, dErrors.New(dErrors.CodeInvalidGrant, "code_verifier does not match")
	}

	token, err := s.tokens.GenerateAccessToken(grant.UserID, client.ClientID, grant.Scope, s.accessTokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access token")
	}

	session := &models.Session{
		ID:        token.JTI,
		ClientID:  client.ClientID,
		UserID:    grant.UserID,
		Label:     grant.Label,
		Scope:     grant.Scope,
		Props:     grant.Props,
		CreatedAt: s.now(),
		ExpiresAt: token.ExpiresAt,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist session")
	}

	s.metrics.IncrementTokensIssued(models.GrantTypeAuthorizationCode)
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventTokenIssued),
		UserID:   grant.UserID,
		ClientID: client.ClientID,
		Decision: "issued",
	})

	return &models.TokenResult{
		AccessToken: token.Token,
		TokenType:   models.TokenTypeBearer,
		ExpiresIn:   int(s.accessTokenTTL.Seconds()),
		Scope:       strings.Join(grant.Scope, " "),
	}, nil
}

func (s *Service) rejectToken(ctx context.Context, clientID, reason string) {
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventTokenRejected),
		ClientID: clientID,
		Decision: "rejected",
		Reason:   reason,
	})
}

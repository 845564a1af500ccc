package service

import (
	"context"
	"errors"
	"strings"

	"mcpauth/internal/provider/models"
	dErrors "mcpauth/pkg/domain-errors"
	"mcpauth/pkg/platform/audit"
	"mcpauth/pkg/platform/sentinel"
)

// UserInfo returns the identity behind an access token's session.
func (s *Service) UserInfo(ctx context.Context, sessionID string) (*models.UserInfo, error) {
	if sessionID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing session")
	}
	sess, err := s.sessions.FindByID(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "session lookup failed")
	}
	if sess.IsExpired(s.now()) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session expired")
	}

	s.emit(ctx, audit.Event{
		Action:   string(audit.EventUserInfoAccessed),
		UserID:   sess.UserID,
		ClientID: sess.ClientID,
	})
	return &models.UserInfo{
		Login: sess.Props.Login,
		Name:  sess.Props.Name,
		Email: sess.Props.Email,
	}, nil
}

// Metadata builds the RFC 8414 document for the given issuer base URL.
func (s *Service) Metadata(issuer string) *models.ServerMetadata {
	issuer = strings.TrimSuffix(issuer, "/")
	return &models.ServerMetadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + "/authorize",
		TokenEndpoint:                     issuer + "/token",
		RegistrationEndpoint:              issuer + "/register",
		UserinfoEndpoint:                  issuer + "/userinfo",
		ResponseTypesSupported:            []string{models.ResponseTypeCode},
		GrantTypesSupported:               []string{models.GrantTypeAuthorizationCode},
		TokenEndpointAuthMethodsSupported: []string{models.AuthMethodSecretBasic, models.AuthMethodSecretPost, models.AuthMethodNone},
		CodeChallengeMethodsSupported:     []string{models.PKCEMethodS256, models.PKCEMethodPlain},
	}
}

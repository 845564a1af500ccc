package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"mcpauth/internal/provider/models"
	"mcpauth/internal/provider/secrets"
	dErrors "mcpauth/pkg/domain-errors"
	"mcpauth/pkg/platform/audit"
	"mcpauth/pkg/platform/sentinel"
)

// Register performs RFC 7591 dynamic client registration. Confidential
// clients get a generated secret that is returned once and stored hashed.
func (s *Service) Register(ctx context.Context, req *models.RegistrationRequest) (*models.RegistrationResult, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	client := &models.Client{
		ClientID:                uuid.NewString(),
		ClientName:              req.ClientName,
		ClientURI:               req.ClientURI,
		LogoURI:                 req.LogoURI,
		PolicyURI:               req.PolicyURI,
		TosURI:                  req.TosURI,
		RedirectURIs:            req.RedirectURIs,
		Contacts:                req.Contacts,
		TokenEndpointAuthMethod: req.TokenEndpointAuthMethod,
		CreatedAt:               now,
	}

	var plaintext string
	if !client.IsPublic() {
		secret, err := secrets.Generate()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate client secret")
		}
		hash, err := secrets.Hash(secret)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash client secret")
		}
		plaintext = secret
		client.ClientSecretHash = hash
	}

	if err := s.clients.Create(ctx, client); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "client id already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register client")
	}

	s.metrics.IncrementClientsRegistered()
	s.emit(ctx, audit.Event{
		Action:   string(audit.EventClientRegistered),
		ClientID: client.ClientID,
	})
	s.logger.InfoContext(ctx, "client registered",
		"client_id", client.ClientID,
		"auth_method", client.TokenEndpointAuthMethod,
	)

	return &models.RegistrationResult{
		Client:           client,
		ClientSecret:     plaintext,
		ClientIDIssuedAt: now.Unix(),
		GrantTypes:       req.GrantTypes,
		ResponseTypes:    req.ResponseTypes,
	}, nil
}

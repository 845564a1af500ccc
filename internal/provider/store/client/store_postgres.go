package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"mcpauth/internal/provider/models"
	"mcpauth/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists registrations in the oauth_clients table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registry.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Client) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_clients (
			client_id, client_secret_hash, client_name, client_uri, logo_uri,
			policy_uri, tos_uri, redirect_uris, contacts, token_endpoint_auth_method, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		c.ClientID, c.ClientSecretHash, c.ClientName, c.ClientURI, c.LogoURI,
		c.PolicyURI, c.TosURI, pq.Array(c.RedirectURIs), pq.Array(nonNil(c.Contacts)),
		c.TokenEndpointAuthMethod, c.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("client %s: %w", c.ClientID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, clientID string) (*models.Client, error) {
	var c models.Client
	err := s.db.QueryRowContext(ctx, `
		SELECT client_id, client_secret_hash, client_name, client_uri, logo_uri,
			policy_uri, tos_uri, redirect_uris, contacts, token_endpoint_auth_method, created_at
		FROM oauth_clients
		WHERE client_id = $1
	`, clientID).Scan(
		&c.ClientID, &c.ClientSecretHash, &c.ClientName, &c.ClientURI, &c.LogoURI,
		&c.PolicyURI, &c.TosURI, pq.Array(&c.RedirectURIs), pq.Array(&c.Contacts),
		&c.TokenEndpointAuthMethod, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query client: %w", err)
	}
	return &c, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

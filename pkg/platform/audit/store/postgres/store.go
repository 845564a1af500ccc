package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "mcpauth/pkg/platform/audit"
)

// Store persists audit events in the audit_events table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one event. The category is always derived from the action.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, user_id, client_id, action,
			decision, reason, request_id, ip, user_agent, browser
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		string(audit.AuditEvent(event.Action).Category()),
		event.Timestamp,
		event.UserID,
		event.ClientID,
		event.Action,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.IP,
		event.UserAgent,
		event.Browser,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByUser returns a user's events oldest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, user_id, client_id, action,
			decision, reason, request_id, ip, user_agent, browser
		FROM audit_events
		WHERE user_id = $1
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var category string
		if err := rows.Scan(&category, &e.Timestamp, &e.UserID, &e.ClientID, &e.Action,
			&e.Decision, &e.Reason, &e.RequestID, &e.IP, &e.UserAgent, &e.Browser); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

package audit

import (
	"context"
	"errors"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks
// can apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers user decisions with lasting effect: consent
	// given, authorizations completed.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers failed or suspicious flows.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity and may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from handlers and services to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	// UserID is the upstream login once it is known.
	UserID   string `json:"user_id,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Action   string `json:"action"`
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Browser   string `json:"browser,omitempty"`
}

type AuditEvent string

const (
	// Authorization flow
	EventConsentPrompted        AuditEvent = "consent_prompted"
	EventConsentGranted         AuditEvent = "consent_granted"
	EventUpstreamRedirected     AuditEvent = "upstream_redirected"
	EventAuthorizationCompleted AuditEvent = "authorization_completed"
	EventAuthFailed             AuditEvent = "auth_failed"

	// Token endpoint and registry
	EventTokenIssued      AuditEvent = "token_issued"
	EventTokenRejected    AuditEvent = "token_rejected"
	EventClientRegistered AuditEvent = "client_registered"
	EventUserInfoAccessed AuditEvent = "userinfo_accessed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventConsentGranted:         CategoryCompliance,
	EventAuthorizationCompleted: CategoryCompliance,

	EventAuthFailed:    CategorySecurity,
	EventTokenRejected: CategorySecurity,

	EventConsentPrompted:    CategoryOperations,
	EventUpstreamRedirected: CategoryOperations,
	EventTokenIssued:        CategoryOperations,
	EventClientRegistered:   CategoryOperations,
	EventUserInfoAccessed:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// ErrNotListable is returned when no configured store can be queried back.
var ErrNotListable = errors.New("audit store does not support listing")

// Lister is implemented by stores that can be queried back.
type Lister interface {
	ListByUser(ctx context.Context, userID string) ([]Event, error)
}

// Fanout appends every event to each store and joins their errors. The
// result is also a Lister, answering from the first store that is one.
func Fanout(stores ...Store) Store {
	return fanout(stores)
}

type fanout []Store

func (f fanout) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) ListByUser(ctx context.Context, userID string) ([]Event, error) {
	for _, s := range f {
		if l, ok := s.(Lister); ok {
			return l.ListByUser(ctx, userID)
		}
	}
	return nil, ErrNotListable
}

// Package publisher emits audit events, enriching them with request metadata
// from the context.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/mssola/useragent"

	audit "mcpauth/pkg/platform/audit"
	"mcpauth/pkg/platform/audit/worker"
	"mcpauth/pkg/requestcontext"
)

// ErrBufferFull is returned in async mode when the queue is saturated.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher captures structured audit events. Synchronous by default; with
// WithAsyncBuffer events are queued and appended by a background worker.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	queue chan audit.Event
	done  chan struct{}
	close sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous mode with a queue of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan audit.Event, n)
		}
	}
}

// WithLogger mirrors every event to logger at info level.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.done = make(chan struct{})
		w := worker.NewWorker(store, p.queue, p.logger)
		go func() {
			defer close(p.done)
			w.Run(context.Background())
		}()
	}
	return p
}

// Emit records event. In async mode it never blocks: a full queue yields
// ErrBufferFull, or ctx.Err() when ctx is already done.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = enrich(ctx, event)
	if p.logger != nil {
		p.logger.InfoContext(ctx, "audit",
			"action", event.Action,
			"category", event.Category,
			"user_id", event.UserID,
			"client_id", event.ClientID,
			"decision", event.Decision,
			"reason", event.Reason,
			"request_id", event.RequestID,
			"browser", event.Browser,
		)
	}

	if p.queue == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.queue <- event:
		return nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrBufferFull
}

// List returns a user's events when the store supports queries.
func (p *Publisher) List(ctx context.Context, userID string) ([]audit.Event, error) {
	lister, ok := p.store.(audit.Lister)
	if !ok {
		return nil, audit.ErrNotListable
	}
	return lister.ListByUser(ctx, userID)
}

// Close drains queued events and stops the worker. Safe to call twice.
func (p *Publisher) Close() {
	p.close.Do(func() {
		if p.queue != nil {
			close(p.queue)
			<-p.done
		}
	})
}

func enrich(ctx context.Context, event audit.Event) audit.Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	event.Category = audit.AuditEvent(event.Action).Category()
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	if event.Browser == "" && event.UserAgent != "" {
		event.Browser = browserName(event.UserAgent)
	}
	return event
}

// browserName reduces a User-Agent header to "Name Version".
func browserName(userAgent string) string {
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "bot"
	}
	name, version := ua.Browser()
	return strings.TrimSpace(name + " " + version)
}

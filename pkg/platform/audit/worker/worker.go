package worker

import (
	"context"
	"log/slog"

	audit "mcpauth/pkg/platform/audit"
)

// Worker drains audit events from a channel into a store. A failing append
// is logged and the event dropped; audit never blocks the request path.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run processes events until the inbox is closed. Events still queued when
// ctx is cancelled are appended with a background context.
func (w *Worker) Run(ctx context.Context) {
	for event := range w.inbox {
		appendCtx := ctx
		if ctx.Err() != nil {
			appendCtx = context.Background()
		}
		if err := w.store.Append(appendCtx, event); err != nil {
			w.logger.Warn("failed to append audit event",
				"action", event.Action,
				"request_id", event.RequestID,
				"error", err,
			)
		}
	}
}

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"chainscreen/pkg/domain"
	"chainscreen/pkg/requestcontext"
)

// Recorder is the hot-path interface modules use to emit audit events.
type Recorder interface {
	Record(ctx context.Context, kind, subject string, payload any) error
}

// Publisher appends events to the outbox. Shipping to the broker is the
// Shipper's job; Record never touches the network.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

func (p *Publisher) Record(ctx context.Context, kind, subject string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	event := &Event{
		ID:        domain.NewEventID(),
		Kind:      kind,
		Subject:   subject,
		Payload:   body,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := p.store.Append(ctx, event); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	p.logger.InfoContext(ctx, "audit event recorded",
		"kind", kind,
		"subject", subject,
		"event_id", event.ID,
	)
	return nil
}

// NopRecorder drops events. Used where auditing is not wired, never in
// production configurations.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, string, string, any) error { return nil }

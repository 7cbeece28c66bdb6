package screening

import (
	"context"

	"chainscreen/internal/canonical"
	"chainscreen/pkg/domain"
)

// Store is the append-only decision log. Append assigns the monotonic
// sequence number; decisions are never updated or deleted.
type Store interface {
	// Append persists a decision and fills in its Seq. The write must be
	// durable before Append returns.
	Append(ctx context.Context, decision *Decision) error

	// FindDecision returns a decision by ID, or sentinel.ErrNotFound.
	FindDecision(ctx context.Context, id domain.DecisionID) (*Decision, error)

	// DecisionsForAddress returns the decision history for an address,
	// newest first, capped at limit.
	DecisionsForAddress(ctx context.Context, addr canonical.Address, limit int) ([]*Decision, error)
}

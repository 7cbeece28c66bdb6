package cases

import (
	"context"

	"chainscreen/internal/canonical"
	"chainscreen/pkg/domain"
)

// Store persists cases and their histories.
type Store interface {
	// Create persists a new case. Fails with sentinel.ErrConflict when the
	// ID exists or when the subject already has an open case, so at most one
	// open case exists per (chain, canonical address).
	Create(ctx context.Context, c *Case) error

	// Find returns a case by ID, or sentinel.ErrNotFound.
	Find(ctx context.Context, id domain.CaseID) (*Case, error)

	// FindOpenByAddress returns the open case for an address, or
	// sentinel.ErrNotFound when none is open.
	FindOpenByAddress(ctx context.Context, addr canonical.Address) (*Case, error)

	// Update persists a case's mutable fields (status, priority, risk,
	// timestamps).
	Update(ctx context.Context, c *Case) error

	// ListByStatus returns cases in a status, oldest SLA deadline first.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Case, error)

	// ListOpen returns every open case, oldest SLA deadline first.
	ListOpen(ctx context.Context, limit int) ([]*Case, error)

	// AppendAction records one line of the ordered actions_taken history.
	AppendAction(ctx context.Context, entry *ActionEntry) error

	// ActionsFor returns a case's actions in append order.
	ActionsFor(ctx context.Context, id domain.CaseID) ([]ActionEntry, error)

	// AppendNote records analyst commentary.
	AppendNote(ctx context.Context, note *Note) error

	// NotesFor returns a case's notes in append order.
	NotesFor(ctx context.Context, id domain.CaseID) ([]Note, error)
}

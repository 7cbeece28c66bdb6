package cases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"chainscreen/internal/audit"
	"chainscreen/internal/canonical"
	"chainscreen/internal/cases/cleared"
	"chainscreen/internal/cases/metrics"
	"chainscreen/pkg/domain"
	"chainscreen/pkg/platform/sentinel"
	"chainscreen/pkg/requestcontext"
)

// OpenRequest asks for a case on a screened address. MatchType and risk feed
// priority; entity fields carry list evidence when the hit was exact.
type OpenRequest struct {
	Address    canonical.Address
	RiskScore  int
	MatchType  string
	EntityUID  string
	EntityName string
	Program    string
}

// Detail is a case with its full histories.
type Detail struct {
	Case    *Case
	Actions []ActionEntry
	Notes   []Note
}

// Service enforces the case lifecycle. Mutations on one case are serialized
// by a per-case lock; distinct cases proceed concurrently.
type Service struct {
	store    Store
	registry cleared.Registry
	audit    audit.Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics

	locksMu sync.Mutex
	locks   map[domain.CaseID]*sync.Mutex
}

func NewService(store Store, registry cleared.Registry, recorder audit.Recorder, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		registry: registry,
		audit:    recorder,
		logger:   logger,
		metrics:  m,
		locks:    make(map[domain.CaseID]*sync.Mutex),
	}
}

// OpenForScreening opens a case for a hit, or refreshes the existing open
// case for the same address. Reuse keeps one case per subject under review
// instead of one per screening call.
func (s *Service) OpenForScreening(ctx context.Context, req OpenRequest) (*Case, error) {
	now := requestcontext.Now(ctx)

	existing, err := s.store.FindOpenByAddress(ctx, req.Address)
	switch {
	case err == nil:
		return s.refreshOpenCase(ctx, existing, req)
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, fmt.Errorf("find open case: %w", err)
	}

	priority := PriorityForRisk(req.RiskScore)
	c := &Case{
		ID:          domain.NewCaseID(),
		Address:     req.Address,
		EntityUID:   req.EntityUID,
		EntityName:  req.EntityName,
		Program:     req.Program,
		Status:      StatusNew,
		Priority:    priority,
		RiskScore:   req.RiskScore,
		OpenedAt:    now,
		SLADeadline: now.Add(SLAWindow(priority)),
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A concurrent first hit on the same subject won the insert.
			existing, findErr := s.store.FindOpenByAddress(ctx, req.Address)
			if findErr != nil {
				return nil, fmt.Errorf("find conflicting open case: %w", findErr)
			}
			return s.refreshOpenCase(ctx, existing, req)
		}
		return nil, fmt.Errorf("create case: %w", err)
	}

	s.metrics.IncrementOpened(string(priority))
	s.logger.InfoContext(ctx, "case opened",
		"case_id", c.ID,
		"chain", c.Address.Chain,
		"priority", priority,
		"risk_score", req.RiskScore,
		"match_type", req.MatchType,
	)
	if err := s.audit.Record(ctx, audit.KindCaseOpened, c.ID.String(), caseEvent(c, "", req.MatchType)); err != nil {
		s.logger.ErrorContext(ctx, "audit record failed", "case_id", c.ID, "error", err)
	}
	return c, nil
}

// refreshOpenCase escalates an open case when a new hit carries higher risk.
// Priority and SLA only tighten; a low-risk repeat never relaxes them.
func (s *Service) refreshOpenCase(ctx context.Context, c *Case, req OpenRequest) (*Case, error) {
	unlock := s.lock(c.ID)
	defer unlock()

	now := requestcontext.Now(ctx)
	if req.RiskScore > c.RiskScore {
		c.RiskScore = req.RiskScore
		newPriority := PriorityForRisk(req.RiskScore)
		if SLAWindow(newPriority) < SLAWindow(c.Priority) {
			c.Priority = newPriority
			deadline := c.OpenedAt.Add(SLAWindow(newPriority))
			if deadline.Before(c.SLADeadline) {
				c.SLADeadline = deadline
			}
		}
	}
	c.UpdatedAt = now
	if err := s.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("refresh case: %w", err)
	}
	s.logger.InfoContext(ctx, "open case refreshed",
		"case_id", c.ID,
		"risk_score", c.RiskScore,
		"priority", c.Priority,
	)
	return c, nil
}

// Transition moves a case through the lifecycle table. Illegal moves return
// *IllegalTransitionError and leave the case untouched. Resolving as
// FalsePositive also records the subject in the cleared registry.
func (s *Service) Transition(ctx context.Context, id domain.CaseID, to Status, actor, note string) (*Case, error) {
	unlock := s.lock(id)
	defer unlock()

	c, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find case: %w", err)
	}
	from := c.Status
	if !CanTransition(from, to) {
		s.metrics.IncrementRejected()
		return nil, &IllegalTransitionError{CaseID: id, From: from, To: to}
	}

	now := requestcontext.Now(ctx)
	c.Status = to
	c.UpdatedAt = now
	if to == StatusClosed {
		c.ClosedAt = &now
	}
	if err := s.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update case: %w", err)
	}

	entry := &ActionEntry{
		CaseID:     id,
		Actor:      actor,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		OccurredAt: now,
	}
	if err := s.store.AppendAction(ctx, entry); err != nil {
		return nil, fmt.Errorf("append case action: %w", err)
	}

	if to == StatusFalsePositive {
		if err := s.registry.Add(ctx, c.Address, c.ID, now); err != nil {
			return nil, fmt.Errorf("record cleared subject: %w", err)
		}
		if err := s.audit.Record(ctx, audit.KindSubjectCleared, c.ID.String(), caseEvent(c, string(from), "")); err != nil {
			s.logger.ErrorContext(ctx, "audit record failed", "case_id", id, "error", err)
		}
	}

	s.metrics.IncrementTransition(string(to))
	s.logger.InfoContext(ctx, "case transitioned",
		"case_id", id,
		"from", from,
		"to", to,
		"actor", actor,
	)
	if err := s.audit.Record(ctx, audit.KindCaseTransitioned, id.String(), caseEvent(c, string(from), "")); err != nil {
		s.logger.ErrorContext(ctx, "audit record failed", "case_id", id, "error", err)
	}
	return c, nil
}

// AddNote attaches analyst commentary to a case.
func (s *Service) AddNote(ctx context.Context, id domain.CaseID, author, body string) (*Note, error) {
	if _, err := s.store.Find(ctx, id); err != nil {
		return nil, fmt.Errorf("find case: %w", err)
	}
	note := &Note{
		CaseID:    id,
		Author:    author,
		Body:      body,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.AppendNote(ctx, note); err != nil {
		return nil, fmt.Errorf("append case note: %w", err)
	}
	return note, nil
}

// Get returns a case with its action history and notes, gathered in parallel.
func (s *Service) Get(ctx context.Context, id domain.CaseID) (*Detail, error) {
	c, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find case: %w", err)
	}

	detail := &Detail{Case: c}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		actions, err := s.store.ActionsFor(gctx, id)
		if err != nil {
			return fmt.Errorf("load case actions: %w", err)
		}
		detail.Actions = actions
		return nil
	})
	g.Go(func() error {
		notes, err := s.store.NotesFor(gctx, id)
		if err != nil {
			return fmt.Errorf("load case notes: %w", err)
		}
		detail.Notes = notes
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListByStatus returns cases in a status, most urgent first.
func (s *Service) ListByStatus(ctx context.Context, status Status, limit int) ([]*Case, error) {
	return s.store.ListByStatus(ctx, status, limit)
}

// SweepSLA reports every open case past its deadline. The sweep observes and
// emits; it never transitions a case.
func (s *Service) SweepSLA(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	open, err := s.store.ListOpen(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list open cases: %w", err)
	}

	byStatus := make(map[string]int)
	breached := 0
	for _, c := range open {
		byStatus[string(c.Status)]++
		if !now.After(c.SLADeadline) {
			continue
		}
		breached++
		s.metrics.IncrementSLABreach(string(c.Priority))
		s.logger.ErrorContext(ctx, "case past SLA deadline",
			"case_id", c.ID,
			"priority", c.Priority,
			"deadline", c.SLADeadline,
			"overdue", now.Sub(c.SLADeadline),
		)
		if err := s.audit.Record(ctx, audit.KindSLABreached, c.ID.String(), caseEvent(c, "", "")); err != nil {
			s.logger.ErrorContext(ctx, "audit record failed", "case_id", c.ID, "error", err)
		}
	}
	for status, n := range byStatus {
		s.metrics.SetOpenCases(status, n)
	}
	return breached, nil
}

func (s *Service) lock(id domain.CaseID) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	s.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

type caseEventBody struct {
	CaseID    string `json:"case_id"`
	Chain     string `json:"chain"`
	Address   string `json:"address"`
	Status    string `json:"status"`
	From      string `json:"from,omitempty"`
	Priority  string `json:"priority"`
	RiskScore int    `json:"risk_score"`
	MatchType string `json:"match_type,omitempty"`
}

func caseEvent(c *Case, from, matchType string) caseEventBody {
	return caseEventBody{
		CaseID:    c.ID.String(),
		Chain:     string(c.Address.Chain),
		Address:   c.Address.Canonical,
		Status:    string(c.Status),
		From:      from,
		Priority:  string(c.Priority),
		RiskScore: c.RiskScore,
		MatchType: matchType,
	}
}

package screening

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"chainscreen/internal/canonical"
	"chainscreen/internal/cases"
	"chainscreen/internal/cases/cleared"
	"chainscreen/internal/index"
	"chainscreen/internal/screening/metrics"
	"chainscreen/pkg/domain"
	"chainscreen/pkg/platform/sentinel"
	"chainscreen/pkg/requestcontext"
)

// CaseOpener is the slice of the case manager the engine needs. Case creation
// is synchronous: when a screening demands review, the case exists before the
// decision is returned.
type CaseOpener interface {
	OpenForScreening(ctx context.Context, req cases.OpenRequest) (*cases.Case, error)
}

// AuditRecorder mirrors audit.Recorder without importing the package here.
type AuditRecorder interface {
	Record(ctx context.Context, kind, subject string, payload any) error
}

const auditKindDecision = "screening.decision_recorded"

// Service is the screening engine. Reads go to the published index snapshot;
// every call appends exactly one decision to the log before returning, and a
// decision that cannot be persisted fails the call closed.
type Service struct {
	snapshot *index.Snapshot
	store    Store
	oracle   RiskOracle
	cases    CaseOpener
	registry cleared.Registry
	audit    AuditRecorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

func NewService(snapshot *index.Snapshot, store Store, oracle RiskOracle, opener CaseOpener, registry cleared.Registry, recorder AuditRecorder, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		snapshot: snapshot,
		store:    store,
		oracle:   oracle,
		cases:    opener,
		registry: registry,
		audit:    recorder,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("chainscreen/screening"),
	}
}

// Screen evaluates one address and returns the persisted decision.
func (s *Service) Screen(ctx context.Context, chain canonical.Chain, raw string) (*Decision, error) {
	start := time.Now()
	defer s.metrics.ObserveScreen(start)

	ctx, span := s.tracer.Start(ctx, "screening.Screen",
		trace.WithAttributes(attribute.String("chain", string(chain))))
	defer span.End()

	addr, err := canonical.NewAddress(chain, raw)
	if err != nil {
		if errors.Is(err, canonical.ErrInvalidAddressFormat) {
			decision := s.newDecision(ctx, canonical.Address{Chain: chain, Raw: raw})
			decision.Annotation = AnnotationInvalidFormat
			return s.persist(ctx, decision)
		}
		return nil, fmt.Errorf("canonicalize address: %w", err)
	}

	idx := s.snapshot.Current()
	if match := idx.Lookup(addr); match != nil {
		return s.exactHit(ctx, addr, match)
	}

	decision := s.newDecision(ctx, addr)
	decision.ListVersionsUsed = idx.VersionIDs()
	s.applyVendorRisk(ctx, decision, addr)

	if RequiresCase(decision.Action) {
		if err := s.openCase(ctx, decision, addr); err != nil {
			return nil, err
		}
	}
	return s.persist(ctx, decision)
}

// ScreenByTicker expands a feed ticker into candidate chains by address shape
// and screens each candidate concurrently. An exact hit on any candidate is a
// hit for the subject.
func (s *Service) ScreenByTicker(ctx context.Context, ticker, raw string) ([]*Decision, error) {
	candidates, err := canonical.ExpandCandidates(ticker, raw)
	if err != nil {
		return nil, fmt.Errorf("expand candidates: %w", err)
	}

	decisions := make([]*Decision, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, candidate := range candidates {
		g.Go(func() error {
			d, err := s.Screen(gctx, candidate.Chain, candidate.Raw)
			if err != nil {
				return err
			}
			decisions[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// Decision returns a persisted decision by ID.
func (s *Service) Decision(ctx context.Context, id domain.DecisionID) (*Decision, error) {
	return s.store.FindDecision(ctx, id)
}

// History returns the decision log for an address, newest first.
func (s *Service) History(ctx context.Context, chain canonical.Chain, raw string, limit int) ([]*Decision, error) {
	addr, err := canonical.NewAddress(chain, raw)
	if err != nil {
		return nil, err
	}
	return s.store.DecisionsForAddress(ctx, addr, limit)
}

func (s *Service) exactHit(ctx context.Context, addr canonical.Address, match *index.Match) (*Decision, error) {
	s.metrics.IncrementExactHit()

	decision := s.newDecision(ctx, addr)
	decision.MatchType = MatchExact
	decision.RiskScore = 100
	decision.Action = ActionBlock
	decision.ListVersionsUsed = match.VersionIDs
	decision.EntityUID = match.EntityUID
	decision.EntityName = match.EntityName
	decision.Program = match.Program

	if err := s.openCase(ctx, decision, addr); err != nil {
		return nil, err
	}
	return s.persist(ctx, decision)
}

// applyVendorRisk consults the vendor oracle and folds its signal through the
// policy table. Oracle unavailability degrades to exact-match-only screening;
// the cleared registry softens repeat vendor holds but never touches exact
// hits.
func (s *Service) applyVendorRisk(ctx context.Context, decision *Decision, addr canonical.Address) {
	if s.oracle == nil {
		return
	}

	oracleStart := time.Now()
	signal, err := s.oracle.Query(ctx, addr)
	s.metrics.ObserveOracle(oracleStart)
	switch {
	case errors.Is(err, ErrNoSignal):
		return
	case errors.Is(err, sentinel.ErrUnavailable):
		s.metrics.IncrementOracleFailure()
		decision.Annotation = AnnotationOracleUnavailable
		return
	case err != nil:
		s.metrics.IncrementOracleFailure()
		s.logger.ErrorContext(ctx, "vendor oracle query failed", "chain", addr.Chain, "error", err)
		decision.Annotation = AnnotationOracleUnavailable
		return
	}

	score := ClampScore(signal.Score)
	decision.MatchType = MatchVendor
	decision.RiskScore = score
	decision.Action = ActionForRisk(score)
	decision.Vendor = signal.Vendor

	if decision.Action == ActionHold || decision.Action == ActionEnhancedDD {
		wasCleared, err := s.registry.Contains(ctx, addr)
		if err != nil {
			s.logger.ErrorContext(ctx, "cleared registry lookup failed", "chain", addr.Chain, "error", err)
			return
		}
		if wasCleared {
			s.metrics.IncrementClearedOverride()
			decision.Action = ActionMonitor
			decision.Annotation = AnnotationClearedOverride
		}
	}
}

func (s *Service) openCase(ctx context.Context, decision *Decision, addr canonical.Address) error {
	c, err := s.cases.OpenForScreening(ctx, cases.OpenRequest{
		Address:    addr,
		RiskScore:  decision.RiskScore,
		MatchType:  string(decision.MatchType),
		EntityUID:  decision.EntityUID,
		EntityName: decision.EntityName,
		Program:    decision.Program,
	})
	if err != nil {
		return fmt.Errorf("open case for screening: %w", err)
	}
	decision.CaseID = c.ID
	return nil
}

// persist appends the decision to the log. A failed append fails the
// screening closed: the caller gets an error, never a decision it could
// mistake for an allow.
func (s *Service) persist(ctx context.Context, decision *Decision) (*Decision, error) {
	if err := s.store.Append(ctx, decision); err != nil {
		s.metrics.IncrementPersistFailure()
		s.logger.ErrorContext(ctx, "decision persistence failed",
			"chain", decision.Address.Chain,
			"action", decision.Action,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrDecisionNotPersisted, err)
	}

	s.metrics.IncrementScreening(string(decision.Action), string(decision.MatchType))
	s.logger.InfoContext(ctx, "address screened",
		"chain", decision.Address.Chain,
		"match_type", decision.MatchType,
		"risk_score", decision.RiskScore,
		"action", decision.Action,
		"seq", decision.Seq,
	)
	if err := s.audit.Record(ctx, auditKindDecision, decision.ID.String(), decisionEvent(decision)); err != nil {
		s.logger.ErrorContext(ctx, "audit record failed", "decision_id", decision.ID, "error", err)
	}
	return decision, nil
}

func (s *Service) newDecision(ctx context.Context, addr canonical.Address) *Decision {
	return &Decision{
		ID:         domain.NewDecisionID(),
		Address:    addr,
		MatchType:  MatchNone,
		RiskScore:  0,
		Action:     ActionAllow,
		RequestID:  requestcontext.RequestID(ctx),
		ScreenedAt: requestcontext.Now(ctx),
	}
}

type decisionEventBody struct {
	DecisionID string `json:"decision_id"`
	Seq        int64  `json:"seq"`
	Chain      string `json:"chain"`
	Address    string `json:"address"`
	MatchType  string `json:"match_type"`
	RiskScore  int    `json:"risk_score"`
	Action     string `json:"action"`
	Annotation string `json:"annotation,omitempty"`
	CaseID     string `json:"case_id,omitempty"`
}

func decisionEvent(d *Decision) decisionEventBody {
	body := decisionEventBody{
		DecisionID: d.ID.String(),
		Seq:        d.Seq,
		Chain:      string(d.Address.Chain),
		Address:    d.Address.Canonical,
		MatchType:  string(d.MatchType),
		RiskScore:  d.RiskScore,
		Action:     string(d.Action),
		Annotation: d.Annotation,
	}
	if !d.CaseID.IsNil() {
		body.CaseID = d.CaseID.String()
	}
	return body
}

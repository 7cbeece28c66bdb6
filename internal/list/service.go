package list

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chainscreen/internal/audit"
	"chainscreen/internal/canonical"
	"chainscreen/internal/list/metrics"
	"chainscreen/internal/list/parser"
	"chainscreen/pkg/domain"
	"chainscreen/pkg/platform/sentinel"
	"chainscreen/pkg/requestcontext"
)

// Rebuilder republishes the screening index from the current active versions.
// Satisfied by index.Rebuilder; an interface here keeps the dependency
// pointing outward.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// SmokePair is a known-sanctioned address that must be present in a candidate
// version before it can go active.
type SmokePair struct {
	Chain   canonical.Chain
	Address string
}

// DefaultSmokeSets holds the per-source known-good pairs checked before
// promotion. The OFAC pair is the Tornado Cash ETH address, sanctioned since
// 2022 and expected in every SDN snapshot.
func DefaultSmokeSets() map[Source][]SmokePair {
	return map[Source][]SmokePair{
		SourceOFACSDN: {
			{Chain: canonical.ChainEthereum, Address: "0x7F367cc41522cE07553e823bf3be79A889DEbe1B"},
		},
	}
}

// Service owns the version lifecycle: ingest, validate, promote, rollback.
// Validation failures never disturb the currently active version.
type Service struct {
	store     Store
	rebuilder Rebuilder
	smoke     map[Source][]SmokePair
	audit     audit.Recorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewService(store Store, rebuilder Rebuilder, smoke map[Source][]SmokePair, recorder audit.Recorder, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:     store,
		rebuilder: rebuilder,
		smoke:     smoke,
		audit:     recorder,
		logger:    logger,
		metrics:   m,
		tracer:    otel.Tracer("chainscreen/list"),
	}
}

// Ingest records a fetched payload as a pending version. When the feed
// declared a checksum and it disagrees with the computed content hash, the
// version is recorded as failed and ErrIntegrityMismatch is returned.
func (s *Service) Ingest(ctx context.Context, source Source, payload []byte, sourceURI, declaredChecksum, parserVersion string) (*ListVersion, error) {
	now := requestcontext.Now(ctx)
	sum := sha256.Sum256(payload)
	contentHash := hex.EncodeToString(sum[:])

	version := &ListVersion{
		ID:            domain.NewVersionID(),
		Source:        source,
		Format:        "xml",
		SourceURI:     sourceURI,
		RetrievedAt:   now,
		ContentHash:   contentHash,
		ParserVersion: parserVersion,
		Status:        StatusPending,
		CreatedAt:     now,
	}

	if declaredChecksum != "" && declaredChecksum != contentHash {
		version.Status = StatusFailed
		version.FailureReason = ErrIntegrityMismatch.Error()
		if err := s.store.CreateVersion(ctx, version); err != nil {
			return nil, fmt.Errorf("record failed version: %w", err)
		}
		s.metrics.IncrementIngested(string(source), "integrity_mismatch")
		s.logger.ErrorContext(ctx, "payload integrity mismatch",
			"source", source,
			"version_id", version.ID,
			"declared", declaredChecksum,
			"computed", contentHash,
		)
		return version, ErrIntegrityMismatch
	}

	if err := s.store.CreateVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("record pending version: %w", err)
	}
	s.metrics.IncrementIngested(string(source), "pending")
	s.logger.InfoContext(ctx, "version ingested",
		"source", source,
		"version_id", version.ID,
		"content_hash", contentHash,
	)
	return version, nil
}

// Validate runs the promotion gate over a pending version's parsed records.
// Rules run in order; the first failure marks the version failed and returns
// a *ValidationError. On success the version's entries and counts are
// persisted and the version moves to validated, ready for Promote.
func (s *Service) Validate(ctx context.Context, id domain.VersionID, records []parser.Record) (*ValidationResult, error) {
	start := time.Now()
	defer s.metrics.ObserveValidate(start)

	version, err := s.store.FindVersion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find version: %w", err)
	}
	if version.Status != StatusPending {
		return nil, sentinel.ErrInvalidState
	}

	if vErr := s.checkRecordCountDrop(ctx, version, len(records)); vErr != nil {
		return nil, s.failValidation(ctx, version, vErr)
	}

	entries, quarantined := s.canonicalizeRecords(ctx, version, records)
	entries, deduplicated := s.deduplicate(ctx, version, entries)

	if vErr := s.checkSmokeSet(version.Source, entries); vErr != nil {
		return nil, s.failValidation(ctx, version, vErr)
	}

	if err := s.store.SaveEntries(ctx, id, entries); err != nil {
		return nil, fmt.Errorf("save entries: %w", err)
	}
	if err := s.store.SetCounts(ctx, id, len(records), len(entries)); err != nil {
		return nil, fmt.Errorf("set counts: %w", err)
	}

	s.metrics.AddQuarantined(string(version.Source), len(quarantined))
	s.metrics.AddDeduplicated(string(version.Source), deduplicated)
	s.logger.InfoContext(ctx, "version validated",
		"source", version.Source,
		"version_id", version.ID,
		"records", len(records),
		"entries", len(entries),
		"quarantined", len(quarantined),
		"deduplicated", deduplicated,
	)

	return &ValidationResult{
		VersionID:    id,
		RecordCount:  len(records),
		AddressCount: len(entries),
		Deduplicated: deduplicated,
		Quarantined:  quarantined,
	}, nil
}

// Promote atomically swaps the source's active pointer to the given validated
// version and republishes the index. Versions that have not passed Validate,
// along with failed and superseded ones, are rejected with
// sentinel.ErrInvalidState; an operator cannot push an unvalidated payload
// live out of order.
func (s *Service) Promote(ctx context.Context, id domain.VersionID, promotedBy string) (*ListVersion, error) {
	ctx, span := s.tracer.Start(ctx, "list.Promote",
		trace.WithAttributes(attribute.String("version_id", id.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	if err := s.store.Promote(ctx, id, now, promotedBy); err != nil {
		return nil, fmt.Errorf("promote version %s: %w", id, err)
	}

	version, err := s.store.FindVersion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload promoted version: %w", err)
	}

	if err := s.rebuilder.Rebuild(ctx); err != nil {
		// The store swap already committed; the next rebuild picks it up.
		s.logger.ErrorContext(ctx, "index rebuild after promote failed",
			"source", version.Source,
			"version_id", id,
			"error", err,
		)
	}

	s.metrics.IncrementPromotion(string(version.Source))
	s.logger.InfoContext(ctx, "version promoted",
		"source", version.Source,
		"version_id", id,
		"promoted_by", promotedBy,
		"address_count", version.AddressCount,
	)
	s.recordVersionEvent(ctx, audit.KindVersionPromoted, version, promotedBy)
	return version, nil
}

// Rollback reactivates the most recent superseded version of a source,
// superseding the currently active one, then republishes the index. Failed
// versions are never rollback targets.
func (s *Service) Rollback(ctx context.Context, source Source, actor string) (*ListVersion, error) {
	versions, err := s.store.VersionsBySource(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("list versions for rollback: %w", err)
	}

	var target *ListVersion
	for _, v := range versions {
		if v.Status == StatusSuperseded {
			target = v
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("no superseded version of %s to roll back to: %w", source, sentinel.ErrNotFound)
	}

	now := requestcontext.Now(ctx)
	if err := s.store.Reactivate(ctx, target.ID, now, actor); err != nil {
		return nil, fmt.Errorf("reactivate version %s: %w", target.ID, err)
	}

	if err := s.rebuilder.Rebuild(ctx); err != nil {
		s.logger.ErrorContext(ctx, "index rebuild after rollback failed",
			"source", source,
			"version_id", target.ID,
			"error", err,
		)
	}

	s.metrics.IncrementRollback(string(source))
	s.logger.InfoContext(ctx, "version rolled back",
		"source", source,
		"version_id", target.ID,
		"actor", actor,
	)
	s.recordVersionEvent(ctx, audit.KindVersionRolledBack, target, actor)
	return s.store.FindVersion(ctx, target.ID)
}

// Version returns a single version record.
func (s *Service) Version(ctx context.Context, id domain.VersionID) (*ListVersion, error) {
	return s.store.FindVersion(ctx, id)
}

// History returns all versions of a source, newest first.
func (s *Service) History(ctx context.Context, source Source) ([]*ListVersion, error) {
	return s.store.VersionsBySource(ctx, source)
}

func (s *Service) checkRecordCountDrop(ctx context.Context, version *ListVersion, newCount int) *ValidationError {
	previous, err := s.store.ActiveVersion(ctx, version.Source)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return &ValidationError{Rule: RuleRecordCountDrop, Detail: fmt.Sprintf("load previous active version: %v", err)}
	}
	floor := previous.RecordCount * 9 / 10
	if newCount < floor {
		return &ValidationError{
			Rule: RuleRecordCountDrop,
			Detail: fmt.Sprintf("record count dropped from %d to %d (floor %d)",
				previous.RecordCount, newCount, floor),
		}
	}
	return nil
}

// canonicalizeRecords expands each record's ticker into candidate chains and
// canonicalizes the address on each. Records whose ticker is unmapped or
// whose address fits no candidate grammar are quarantined, never dropped
// silently.
func (s *Service) canonicalizeRecords(ctx context.Context, version *ListVersion, records []parser.Record) ([]Entry, []QuarantinedRecord) {
	var (
		entries     []Entry
		quarantined []QuarantinedRecord
	)
	for _, record := range records {
		addresses, err := canonical.ExpandCandidates(record.Ticker, record.Address)
		if err != nil {
			q := QuarantinedRecord{
				EntityUID: record.EntityUID,
				IDType:    record.Ticker,
				IDValue:   record.Address,
				Reason:    err.Error(),
			}
			quarantined = append(quarantined, q)
			s.logger.InfoContext(ctx, "record quarantined",
				"source", version.Source,
				"version_id", version.ID,
				"entity_uid", record.EntityUID,
				"ticker", record.Ticker,
				"reason", err.Error(),
			)
			continue
		}
		for _, addr := range addresses {
			entries = append(entries, Entry{
				VersionID:  version.ID,
				Address:    addr,
				EntityUID:  record.EntityUID,
				EntityName: record.EntityName,
				Program:    record.Program,
			})
		}
	}
	return entries, quarantined
}

// deduplicate drops repeated (chain, canonical) pairs, keeping the first
// occurrence.
func (s *Service) deduplicate(ctx context.Context, version *ListVersion, entries []Entry) ([]Entry, int) {
	type key struct {
		chain     canonical.Chain
		canonical string
	}
	seen := make(map[key]struct{}, len(entries))
	kept := entries[:0]
	dropped := 0
	for _, e := range entries {
		k := key{chain: e.Address.Chain, canonical: e.Address.Canonical}
		if _, dup := seen[k]; dup {
			dropped++
			s.logger.InfoContext(ctx, "duplicate entry dropped",
				"source", version.Source,
				"version_id", version.ID,
				"chain", e.Address.Chain,
				"address", e.Address.Canonical,
			)
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, e)
	}
	return kept, dropped
}

func (s *Service) checkSmokeSet(source Source, entries []Entry) *ValidationError {
	pairs := s.smoke[source]
	if len(pairs) == 0 {
		return nil
	}
	type key struct {
		chain     canonical.Chain
		canonical string
	}
	present := make(map[key]struct{}, len(entries))
	for _, e := range entries {
		present[key{chain: e.Address.Chain, canonical: e.Address.Canonical}] = struct{}{}
	}
	for _, pair := range pairs {
		addr, err := canonical.NewAddress(pair.Chain, pair.Address)
		if err != nil {
			return &ValidationError{Rule: RuleSmokeTest, Detail: fmt.Sprintf("smoke pair invalid: %v", err)}
		}
		if _, ok := present[key{chain: addr.Chain, canonical: addr.Canonical}]; !ok {
			return &ValidationError{
				Rule:   RuleSmokeTest,
				Detail: fmt.Sprintf("known-sanctioned %s address %s missing from candidate version", pair.Chain, addr.Canonical),
			}
		}
	}
	return nil
}

func (s *Service) failValidation(ctx context.Context, version *ListVersion, vErr *ValidationError) error {
	if err := s.store.MarkFailed(ctx, version.ID, vErr.Error()); err != nil {
		return fmt.Errorf("mark version failed: %w", err)
	}
	s.metrics.IncrementValidationFailure(string(version.Source), vErr.Rule)
	s.logger.ErrorContext(ctx, "version validation failed",
		"source", version.Source,
		"version_id", version.ID,
		"rule", vErr.Rule,
		"detail", vErr.Detail,
	)
	s.recordVersionEvent(ctx, audit.KindVersionFailed, version, vErr.Rule)
	return vErr
}

type versionEventBody struct {
	VersionID   string `json:"version_id"`
	Source      string `json:"source"`
	ContentHash string `json:"content_hash"`
	Actor       string `json:"actor,omitempty"`
}

func (s *Service) recordVersionEvent(ctx context.Context, kind string, version *ListVersion, actor string) {
	body := versionEventBody{
		VersionID:   version.ID.String(),
		Source:      string(version.Source),
		ContentHash: version.ContentHash,
		Actor:       actor,
	}
	if err := s.audit.Record(ctx, kind, version.ID.String(), body); err != nil {
		s.logger.ErrorContext(ctx, "audit record failed", "version_id", version.ID, "error", err)
	}
}

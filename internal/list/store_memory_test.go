package list

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chainscreen/internal/canonical"
	"chainscreen/pkg/domain"
	"chainscreen/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newVersion(source Source, createdAt time.Time) *ListVersion {
	return &ListVersion{
		ID:            domain.NewVersionID(),
		Source:        source,
		Format:        "xml",
		SourceURI:     "https://example.org/feed.xml",
		RetrievedAt:   createdAt,
		ContentHash:   "deadbeef",
		ParserVersion: "ofac-sdn/1",
		Status:        StatusPending,
		CreatedAt:     createdAt,
	}
}

// validate moves a pending version to validated the way Validate does.
func (s *InMemoryStoreSuite) validate(v *ListVersion) {
	s.Require().NoError(s.store.SetCounts(s.ctx, v.ID, 1, 1))
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	v := s.newVersion(SourceOFACSDN, time.Now())
	s.Require().NoError(s.store.CreateVersion(s.ctx, v))

	found, err := s.store.FindVersion(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(v.ID, found.ID)
	s.Equal(StatusPending, found.Status)

	s.Run("duplicate id rejected", func() {
		s.ErrorIs(s.store.CreateVersion(s.ctx, v), sentinel.ErrConflict)
	})

	s.Run("unknown id not found", func() {
		_, err := s.store.FindVersion(s.ctx, domain.NewVersionID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestPromoteSwapsActive() {
	now := time.Now()
	first := s.newVersion(SourceOFACSDN, now)
	second := s.newVersion(SourceOFACSDN, now.Add(time.Hour))
	s.Require().NoError(s.store.CreateVersion(s.ctx, first))
	s.Require().NoError(s.store.CreateVersion(s.ctx, second))
	s.validate(first)
	s.validate(second)

	s.Require().NoError(s.store.Promote(s.ctx, first.ID, now, "scheduler"))

	active, err := s.store.ActiveVersion(s.ctx, SourceOFACSDN)
	s.Require().NoError(err)
	s.Equal(first.ID, active.ID)
	s.Require().NotNil(active.PromotedAt)
	s.Equal("scheduler", active.PromotedBy)

	s.Require().NoError(s.store.Promote(s.ctx, second.ID, now.Add(time.Hour), "admin"))

	active, err = s.store.ActiveVersion(s.ctx, SourceOFACSDN)
	s.Require().NoError(err)
	s.Equal(second.ID, active.ID)

	superseded, err := s.store.FindVersion(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(StatusSuperseded, superseded.Status)
}

func (s *InMemoryStoreSuite) TestPromoteRequiresValidated() {
	now := time.Now()
	unvalidated := s.newVersion(SourceOFACSDN, now)
	s.Require().NoError(s.store.CreateVersion(s.ctx, unvalidated))

	// Pending means validation has not run; such a version never activates.
	s.ErrorIs(s.store.Promote(s.ctx, unvalidated.ID, now, "admin"), sentinel.ErrInvalidState)

	failed := s.newVersion(SourceOFACSDN, now)
	s.Require().NoError(s.store.CreateVersion(s.ctx, failed))
	s.Require().NoError(s.store.MarkFailed(s.ctx, failed.ID, "checksum mismatch"))
	s.ErrorIs(s.store.Promote(s.ctx, failed.ID, now, "admin"), sentinel.ErrInvalidState)

	s.ErrorIs(s.store.Promote(s.ctx, domain.NewVersionID(), now, "admin"), sentinel.ErrNotFound)

	// Neither version ever became active.
	_, err := s.store.ActiveVersion(s.ctx, SourceOFACSDN)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestPromoteIsolatedPerSource() {
	now := time.Now()
	ofac := s.newVersion(SourceOFACSDN, now)
	un := s.newVersion(SourceUNConsolidated, now)
	s.Require().NoError(s.store.CreateVersion(s.ctx, ofac))
	s.Require().NoError(s.store.CreateVersion(s.ctx, un))
	s.validate(ofac)
	s.validate(un)

	s.Require().NoError(s.store.Promote(s.ctx, ofac.ID, now, "scheduler"))
	s.Require().NoError(s.store.Promote(s.ctx, un.ID, now, "scheduler"))

	actives, err := s.store.ActiveVersions(s.ctx)
	s.Require().NoError(err)
	s.Len(actives, 2)
}

func (s *InMemoryStoreSuite) TestReactivate() {
	now := time.Now()
	first := s.newVersion(SourceOFACSDN, now)
	second := s.newVersion(SourceOFACSDN, now.Add(time.Hour))
	s.Require().NoError(s.store.CreateVersion(s.ctx, first))
	s.Require().NoError(s.store.CreateVersion(s.ctx, second))
	s.validate(first)
	s.validate(second)
	s.Require().NoError(s.store.Promote(s.ctx, first.ID, now, "scheduler"))
	s.Require().NoError(s.store.Promote(s.ctx, second.ID, now.Add(time.Hour), "scheduler"))

	s.Run("only superseded versions can reactivate", func() {
		s.ErrorIs(s.store.Reactivate(s.ctx, second.ID, now, "admin"), sentinel.ErrInvalidState)
	})

	s.Require().NoError(s.store.Reactivate(s.ctx, first.ID, now.Add(2*time.Hour), "admin"))

	active, err := s.store.ActiveVersion(s.ctx, SourceOFACSDN)
	s.Require().NoError(err)
	s.Equal(first.ID, active.ID)

	demoted, err := s.store.FindVersion(s.ctx, second.ID)
	s.Require().NoError(err)
	s.Equal(StatusSuperseded, demoted.Status)
}

func (s *InMemoryStoreSuite) TestVersionsBySourceNewestFirst() {
	base := time.Now()
	var ids []domain.VersionID
	for i := 0; i < 3; i++ {
		v := s.newVersion(SourceOFACSDN, base.Add(time.Duration(i)*time.Hour))
		s.Require().NoError(s.store.CreateVersion(s.ctx, v))
		ids = append(ids, v.ID)
	}
	other := s.newVersion(SourceUKSanctions, base)
	s.Require().NoError(s.store.CreateVersion(s.ctx, other))

	versions, err := s.store.VersionsBySource(s.ctx, SourceOFACSDN)
	s.Require().NoError(err)
	s.Require().Len(versions, 3)
	s.Equal(ids[2], versions[0].ID)
	s.Equal(ids[0], versions[2].ID)
}

func (s *InMemoryStoreSuite) TestEntriesRoundTrip() {
	now := time.Now()
	v := s.newVersion(SourceOFACSDN, now)
	s.Require().NoError(s.store.CreateVersion(s.ctx, v))

	addr, err := canonical.NewAddress(canonical.ChainEthereum, "0x7F367cc41522cE07553e823bf3be79A889DEbe1B")
	s.Require().NoError(err)
	entries := []Entry{{
		VersionID:  v.ID,
		Address:    addr,
		EntityUID:  "30518",
		EntityName: "TORNADO CASH",
		Program:    "CYBER2",
	}}
	s.Require().NoError(s.store.SaveEntries(s.ctx, v.ID, entries))

	got, err := s.store.EntriesForVersions(s.ctx, []domain.VersionID{v.ID})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(addr.Canonical, got[0].Address.Canonical)

	s.Run("unknown version yields nothing", func() {
		got, err := s.store.EntriesForVersions(s.ctx, []domain.VersionID{domain.NewVersionID()})
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *InMemoryStoreSuite) TestSetCountsRequiresPending() {
	now := time.Now()
	v := s.newVersion(SourceOFACSDN, now)
	s.Require().NoError(s.store.CreateVersion(s.ctx, v))
	s.Require().NoError(s.store.SetCounts(s.ctx, v.ID, 100, 80))

	validated, err := s.store.FindVersion(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(StatusValidated, validated.Status)

	s.Require().NoError(s.store.Promote(s.ctx, v.ID, now, "scheduler"))

	s.ErrorIs(s.store.SetCounts(s.ctx, v.ID, 1, 1), sentinel.ErrInvalidState)
}

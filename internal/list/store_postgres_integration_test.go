//go:build integration

package list_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"chainscreen/internal/canonical"
	"chainscreen/internal/list"
	"chainscreen/pkg/domain"
	"chainscreen/pkg/platform/sentinel"
	"chainscreen/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *list.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = list.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "sanction_entries", "list_versions")
	s.Require().NoError(err)
}

func newTestVersion(source list.Source, createdAt time.Time) *list.ListVersion {
	return &list.ListVersion{
		ID:            domain.NewVersionID(),
		Source:        source,
		Format:        "xml",
		SourceURI:     "https://example.org/feed.xml",
		RetrievedAt:   createdAt,
		ContentHash:   "deadbeef",
		ParserVersion: "ofac-sdn/1",
		Status:        list.StatusPending,
		CreatedAt:     createdAt,
	}
}

// validateVersion moves a pending version to validated the way Validate does.
func (s *PostgresStoreSuite) validateVersion(ctx context.Context, v *list.ListVersion) {
	s.Require().NoError(s.store.SetCounts(ctx, v.ID, 1, 1))
}

func (s *PostgresStoreSuite) TestVersionRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	v := newTestVersion(list.SourceOFACSDN, now)
	s.Require().NoError(s.store.CreateVersion(ctx, v))

	found, err := s.store.FindVersion(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(v.ID, found.ID)
	s.Equal(list.SourceOFACSDN, found.Source)
	s.Equal(list.StatusPending, found.Status)
	s.Nil(found.PromotedAt)
	s.WithinDuration(now, found.CreatedAt, time.Second)

	_, err = s.store.FindVersion(ctx, domain.NewVersionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestEntriesCopyAndQuery() {
	ctx := context.Background()
	now := time.Now().UTC()
	v := newTestVersion(list.SourceOFACSDN, now)
	s.Require().NoError(s.store.CreateVersion(ctx, v))

	addr, err := canonical.NewAddress(canonical.ChainEthereum, "0x7F367cc41522cE07553e823bf3be79A889DEbe1B")
	s.Require().NoError(err)
	entries := []list.Entry{{
		VersionID:  v.ID,
		Address:    addr,
		EntityUID:  "30518",
		EntityName: "TORNADO CASH",
		Program:    "CYBER2",
	}}
	s.Require().NoError(s.store.SaveEntries(ctx, v.ID, entries))

	got, err := s.store.EntriesForVersions(ctx, []domain.VersionID{v.ID})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(canonical.ChainEthereum, got[0].Address.Chain)
	s.Equal(addr.Canonical, got[0].Address.Canonical)
	s.Equal("TORNADO CASH", got[0].EntityName)
}

func (s *PostgresStoreSuite) TestPromoteLifecycle() {
	ctx := context.Background()
	now := time.Now().UTC()
	first := newTestVersion(list.SourceOFACSDN, now)
	second := newTestVersion(list.SourceOFACSDN, now.Add(time.Hour))
	s.Require().NoError(s.store.CreateVersion(ctx, first))
	s.Require().NoError(s.store.CreateVersion(ctx, second))
	s.validateVersion(ctx, first)
	s.validateVersion(ctx, second)

	s.Require().NoError(s.store.Promote(ctx, first.ID, now, "scheduler"))
	s.Require().NoError(s.store.Promote(ctx, second.ID, now.Add(time.Hour), "scheduler"))

	active, err := s.store.ActiveVersion(ctx, list.SourceOFACSDN)
	s.Require().NoError(err)
	s.Equal(second.ID, active.ID)
	s.Equal("scheduler", active.PromotedBy)

	superseded, err := s.store.FindVersion(ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(list.StatusSuperseded, superseded.Status)

	s.Run("promote rejects superseded", func() {
		s.ErrorIs(s.store.Promote(ctx, first.ID, now, "admin"), sentinel.ErrInvalidState)
	})

	s.Run("promote rejects unvalidated pending", func() {
		raw := newTestVersion(list.SourceOFACSDN, now.Add(2*time.Hour))
		s.Require().NoError(s.store.CreateVersion(ctx, raw))
		s.ErrorIs(s.store.Promote(ctx, raw.ID, now, "admin"), sentinel.ErrInvalidState)

		active, err := s.store.ActiveVersion(ctx, list.SourceOFACSDN)
		s.Require().NoError(err)
		s.Equal(second.ID, active.ID)
	})

	s.Run("promote rejects unknown id", func() {
		s.ErrorIs(s.store.Promote(ctx, domain.NewVersionID(), now, "admin"), sentinel.ErrNotFound)
	})

	s.Run("reactivate swaps back", func() {
		s.Require().NoError(s.store.Reactivate(ctx, first.ID, now.Add(2*time.Hour), "oncall"))
		active, err := s.store.ActiveVersion(ctx, list.SourceOFACSDN)
		s.Require().NoError(err)
		s.Equal(first.ID, active.ID)
	})
}

// TestConcurrentPromotes verifies that racing promotions of sibling validated
// versions never leave a source with zero or two active versions.
func (s *PostgresStoreSuite) TestConcurrentPromotes() {
	ctx := context.Background()
	now := time.Now().UTC()
	const racers = 10

	versions := make([]*list.ListVersion, racers)
	for i := range versions {
		versions[i] = newTestVersion(list.SourceOFACSDN, now.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.store.CreateVersion(ctx, versions[i]))
		s.validateVersion(ctx, versions[i])
	}

	var wg sync.WaitGroup
	var okCount atomic.Int32
	for i := range versions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.store.Promote(ctx, versions[i].ID, now, "racer"); err == nil {
				okCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	// Serialization conflicts may fail some racers; at least one must land.
	s.Positive(okCount.Load())

	actives, err := s.store.ActiveVersions(ctx)
	s.Require().NoError(err)
	s.Len(actives, 1)
}

func (s *PostgresStoreSuite) TestMarkFailedAndCounts() {
	ctx := context.Background()
	now := time.Now().UTC()
	v := newTestVersion(list.SourceOFACSDN, now)
	s.Require().NoError(s.store.CreateVersion(ctx, v))

	s.Require().NoError(s.store.MarkFailed(ctx, v.ID, "smoke test failed"))

	found, err := s.store.FindVersion(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(list.StatusFailed, found.Status)
	s.Equal("smoke test failed", found.FailureReason)

	s.ErrorIs(s.store.MarkFailed(ctx, v.ID, "again"), sentinel.ErrInvalidState)
	s.ErrorIs(s.store.SetCounts(ctx, v.ID, 1, 1), sentinel.ErrInvalidState)

	s.Run("set counts moves pending to validated", func() {
		other := newTestVersion(list.SourceOFACSDN, now.Add(time.Hour))
		s.Require().NoError(s.store.CreateVersion(ctx, other))
		s.Require().NoError(s.store.SetCounts(ctx, other.ID, 100, 80))

		validated, err := s.store.FindVersion(ctx, other.ID)
		s.Require().NoError(err)
		s.Equal(list.StatusValidated, validated.Status)
		s.Equal(100, validated.RecordCount)
		s.Equal(80, validated.AddressCount)

		// Validation already passed; failing it afterwards is not a thing.
		s.ErrorIs(s.store.MarkFailed(ctx, other.ID, "late"), sentinel.ErrInvalidState)
	})
}

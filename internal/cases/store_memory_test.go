package cases

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
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newCase(raw string, priority Priority, window time.Duration) *Case {
	addr, err := canonical.NewAddress(canonical.ChainEthereum, raw)
	s.Require().NoError(err)
	return &Case{
		ID:          domain.NewCaseID(),
		Address:     addr,
		Status:      StatusNew,
		Priority:    priority,
		OpenedAt:    s.now,
		SLADeadline: s.now.Add(window),
		UpdatedAt:   s.now,
	}
}

func (s *InMemoryStoreSuite) TestCreateFindUpdate() {
	c := s.newCase("0x7F367cc41522cE07553e823bf3be79A889DEbe1B", PriorityCritical, 4*time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, c))
	s.ErrorIs(s.store.Create(s.ctx, c), sentinel.ErrConflict)

	found, err := s.store.Find(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.ID, found.ID)

	found.Status = StatusUnderReview
	s.Require().NoError(s.store.Update(s.ctx, found))
	reloaded, err := s.store.Find(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(StatusUnderReview, reloaded.Status)

	_, err = s.store.Find(s.ctx, domain.NewCaseID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestFindOpenByAddressSkipsClosed() {
	c := s.newCase("0x7F367cc41522cE07553e823bf3be79A889DEbe1B", PriorityHigh, 24*time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, c))

	open, err := s.store.FindOpenByAddress(s.ctx, c.Address)
	s.Require().NoError(err)
	s.Equal(c.ID, open.ID)

	closed := s.now.Add(time.Hour)
	c.Status = StatusClosed
	c.ClosedAt = &closed
	s.Require().NoError(s.store.Update(s.ctx, c))

	_, err = s.store.FindOpenByAddress(s.ctx, c.Address)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestCreateRejectsSecondOpenCaseForSubject() {
	first := s.newCase("0x7F367cc41522cE07553e823bf3be79A889DEbe1B", PriorityHigh, 24*time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, first))

	duplicate := s.newCase("0x7F367CC41522CE07553E823BF3BE79A889DEBE1B", PriorityHigh, 24*time.Hour)
	s.ErrorIs(s.store.Create(s.ctx, duplicate), sentinel.ErrConflict)

	// Closing the first frees the subject for a fresh case.
	closed := s.now.Add(time.Hour)
	first.Status = StatusClosed
	first.ClosedAt = &closed
	s.Require().NoError(s.store.Update(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, duplicate))
}

func (s *InMemoryStoreSuite) TestListOpenOrdersByDeadline() {
	slow := s.newCase("0x00000000219ab540356cBB839Cbe05303d7705Fa", PriorityLow, 168*time.Hour)
	fast := s.newCase("0x7F367cc41522cE07553e823bf3be79A889DEbe1B", PriorityCritical, 4*time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, slow))
	s.Require().NoError(s.store.Create(s.ctx, fast))

	open, err := s.store.ListOpen(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(open, 2)
	s.Equal(fast.ID, open[0].ID, "tightest deadline first")

	capped, err := s.store.ListOpen(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(capped, 1)
}

func (s *InMemoryStoreSuite) TestActionsAndNotesShareSequence() {
	c := s.newCase("0x7F367cc41522cE07553e823bf3be79A889DEbe1B", PriorityHigh, 24*time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, c))

	action := &ActionEntry{CaseID: c.ID, Actor: "analyst", FromStatus: StatusNew, ToStatus: StatusUnderReview, OccurredAt: s.now}
	s.Require().NoError(s.store.AppendAction(s.ctx, action))
	note := &Note{CaseID: c.ID, Author: "analyst", Body: "first look", CreatedAt: s.now}
	s.Require().NoError(s.store.AppendNote(s.ctx, note))

	s.Positive(action.Seq)
	s.Greater(note.Seq, action.Seq)

	actions, err := s.store.ActionsFor(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Len(actions, 1)
	notes, err := s.store.NotesFor(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Len(notes, 1)

	s.ErrorIs(s.store.AppendAction(s.ctx, &ActionEntry{CaseID: domain.NewCaseID()}), sentinel.ErrNotFound)
	s.ErrorIs(s.store.AppendNote(s.ctx, &Note{CaseID: domain.NewCaseID()}), sentinel.ErrNotFound)
}

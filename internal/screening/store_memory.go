package screening

import (
	"context"
	"sync"

	"chainscreen/internal/canonical"
	"chainscreen/pkg/domain"
	"chainscreen/pkg/platform/sentinel"
)

// InMemoryStore keeps the decision log in process memory for tests and
// single-node runs.
type InMemoryStore struct {
	mu        sync.RWMutex
	decisions []*Decision
	byID      map[domain.DecisionID]*Decision
	nextSeq   int64

	// failNext forces the next Append to fail; tests use it to exercise the
	// fail-closed path.
	failNext error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[domain.DecisionID]*Decision),
		nextSeq: 1,
	}
}

// FailNextAppend makes the next Append return err.
func (s *InMemoryStore) FailNextAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *InMemoryStore) Append(_ context.Context, decision *Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	decision.Seq = s.nextSeq
	s.nextSeq++
	copied := *decision
	s.decisions = append(s.decisions, &copied)
	s.byID[decision.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindDecision(_ context.Context, id domain.DecisionID) (*Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (s *InMemoryStore) DecisionsForAddress(_ context.Context, addr canonical.Address, limit int) ([]*Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Decision
	for i := len(s.decisions) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		d := s.decisions[i]
		if d.Address.Chain == addr.Chain && d.Address.Canonical == addr.Canonical {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

// Len returns the total number of appended decisions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decisions)
}

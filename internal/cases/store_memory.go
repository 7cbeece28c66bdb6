package cases

import (
	"context"
	"sort"
	"sync"

	"chainscreen/internal/canonical"
	"chainscreen/pkg/domain"
	"chainscreen/pkg/platform/sentinel"
)

// InMemoryStore keeps cases in process memory for tests and single-node runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	cases   map[domain.CaseID]*Case
	order   []domain.CaseID
	actions map[domain.CaseID][]ActionEntry
	notes   map[domain.CaseID][]Note
	nextSeq int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		cases:   make(map[domain.CaseID]*Case),
		actions: make(map[domain.CaseID][]ActionEntry),
		notes:   make(map[domain.CaseID][]Note),
		nextSeq: 1,
	}
}

func (s *InMemoryStore) Create(_ context.Context, c *Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cases[c.ID]; exists {
		return sentinel.ErrConflict
	}
	// One open case per subject, matching the partial unique index in
	// PostgresStore.
	for _, id := range s.order {
		existing := s.cases[id]
		if existing.Open() && existing.Address.Chain == c.Address.Chain &&
			existing.Address.Canonical == c.Address.Canonical {
			return sentinel.ErrConflict
		}
	}
	copied := *c
	s.cases[c.ID] = &copied
	s.order = append(s.order, c.ID)
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, id domain.CaseID) (*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *InMemoryStore) FindOpenByAddress(_ context.Context, addr canonical.Address) (*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		c := s.cases[id]
		if c.Open() && c.Address.Chain == addr.Chain && c.Address.Canonical == addr.Canonical {
			copied := *c
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Update(_ context.Context, c *Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *c
	s.cases[c.ID] = &copied
	return nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status Status, limit int) ([]*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Case
	for _, id := range s.order {
		c := s.cases[id]
		if c.Status == status {
			copied := *c
			out = append(out, &copied)
		}
	}
	sortBySLA(out)
	return capCases(out, limit), nil
}

func (s *InMemoryStore) ListOpen(_ context.Context, limit int) ([]*Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Case
	for _, id := range s.order {
		c := s.cases[id]
		if c.Open() {
			copied := *c
			out = append(out, &copied)
		}
	}
	sortBySLA(out)
	return capCases(out, limit), nil
}

func (s *InMemoryStore) AppendAction(_ context.Context, entry *ActionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[entry.CaseID]; !ok {
		return sentinel.ErrNotFound
	}
	entry.Seq = s.nextSeq
	s.nextSeq++
	s.actions[entry.CaseID] = append(s.actions[entry.CaseID], *entry)
	return nil
}

func (s *InMemoryStore) ActionsFor(_ context.Context, id domain.CaseID) ([]ActionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ActionEntry{}, s.actions[id]...), nil
}

func (s *InMemoryStore) AppendNote(_ context.Context, note *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[note.CaseID]; !ok {
		return sentinel.ErrNotFound
	}
	note.Seq = s.nextSeq
	s.nextSeq++
	s.notes[note.CaseID] = append(s.notes[note.CaseID], *note)
	return nil
}

func (s *InMemoryStore) NotesFor(_ context.Context, id domain.CaseID) ([]Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Note{}, s.notes[id]...), nil
}

func sortBySLA(cs []*Case) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].SLADeadline.Before(cs[j].SLADeadline)
	})
}

func capCases(cs []*Case, limit int) []*Case {
	if limit > 0 && len(cs) > limit {
		return cs[:limit]
	}
	return cs
}

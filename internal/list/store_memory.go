package list

import (
	"context"
	"sort"
	"sync"
	"time"

	"chainscreen/pkg/domain"
	"chainscreen/pkg/platform/sentinel"
)

// InMemoryStore keeps versions and entries in process memory. It backs unit
// tests and single-node deployments; production uses PostgresStore.
type InMemoryStore struct {
	mu       sync.RWMutex
	versions map[domain.VersionID]*ListVersion
	entries  map[domain.VersionID][]Entry
	order    []domain.VersionID // creation order, for stable listings
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		versions: make(map[domain.VersionID]*ListVersion),
		entries:  make(map[domain.VersionID][]Entry),
	}
}

func (s *InMemoryStore) CreateVersion(_ context.Context, version *ListVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.versions[version.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *version
	s.versions[version.ID] = &copied
	s.order = append(s.order, version.ID)
	return nil
}

func (s *InMemoryStore) FindVersion(_ context.Context, id domain.VersionID) (*ListVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (s *InMemoryStore) ActiveVersion(_ context.Context, source Source) (*ListVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions {
		if v.Source == source && v.Status == StatusActive {
			copied := *v
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ActiveVersions(_ context.Context) ([]*ListVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var actives []*ListVersion
	for _, id := range s.order {
		v := s.versions[id]
		if v.Status == StatusActive {
			copied := *v
			actives = append(actives, &copied)
		}
	}
	return actives, nil
}

func (s *InMemoryStore) VersionsBySource(_ context.Context, source Source) ([]*ListVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var versions []*ListVersion
	for _, id := range s.order {
		v := s.versions[id]
		if v.Source == source {
			copied := *v
			versions = append(versions, &copied)
		}
	}
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].CreatedAt.After(versions[j].CreatedAt)
	})
	return versions, nil
}

func (s *InMemoryStore) MarkFailed(_ context.Context, id domain.VersionID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if v.Status != StatusPending {
		return sentinel.ErrInvalidState
	}
	v.Status = StatusFailed
	v.FailureReason = reason
	return nil
}

func (s *InMemoryStore) SetCounts(_ context.Context, id domain.VersionID, recordCount, addressCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if v.Status != StatusPending {
		return sentinel.ErrInvalidState
	}
	v.RecordCount = recordCount
	v.AddressCount = addressCount
	v.Status = StatusValidated
	return nil
}

func (s *InMemoryStore) SaveEntries(_ context.Context, id domain.VersionID, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.versions[id]; !ok {
		return sentinel.ErrNotFound
	}
	s.entries[id] = append([]Entry{}, entries...)
	return nil
}

func (s *InMemoryStore) EntriesForVersions(_ context.Context, ids []domain.VersionID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, id := range ids {
		out = append(out, s.entries[id]...)
	}
	return out, nil
}

func (s *InMemoryStore) Promote(_ context.Context, id domain.VersionID, promotedAt time.Time, promotedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.versions[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if next.Status != StatusValidated {
		return sentinel.ErrInvalidState
	}
	s.swapActiveLocked(next, promotedAt, promotedBy)
	return nil
}

func (s *InMemoryStore) Reactivate(_ context.Context, id domain.VersionID, promotedAt time.Time, promotedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.versions[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if next.Status != StatusSuperseded {
		return sentinel.ErrInvalidState
	}
	s.swapActiveLocked(next, promotedAt, promotedBy)
	return nil
}

// swapActiveLocked supersedes the current active version of next.Source and
// activates next in one step under the store lock.
func (s *InMemoryStore) swapActiveLocked(next *ListVersion, promotedAt time.Time, promotedBy string) {
	for _, v := range s.versions {
		if v.Source == next.Source && v.Status == StatusActive {
			v.Status = StatusSuperseded
		}
	}
	next.Status = StatusActive
	next.PromotedAt = &promotedAt
	next.PromotedBy = promotedBy
}

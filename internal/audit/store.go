package audit

import (
	"context"
	"sync"
	"time"

	"chainscreen/pkg/domain"
)

func nowUTC() time.Time { return time.Now().UTC() }

// Store is the outbox. Append is called on the hot path and must be cheap;
// Unpublished and MarkPublished drive the background shipper.
type Store interface {
	// Append persists an event with PublishedAt unset, filling in Seq.
	Append(ctx context.Context, event *Event) error

	// Unpublished returns the oldest unshipped events, up to limit.
	Unpublished(ctx context.Context, limit int) ([]*Event, error)

	// MarkPublished stamps events as shipped.
	MarkPublished(ctx context.Context, ids []domain.EventID) error
}

// InMemoryStore backs unit tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	events  []*Event
	nextSeq int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextSeq: 1}
}

func (s *InMemoryStore) Append(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.Seq = s.nextSeq
	s.nextSeq++
	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

func (s *InMemoryStore) Unpublished(_ context.Context, limit int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Event
	for _, e := range s.events {
		if e.PublishedAt == nil {
			copied := *e
			out = append(out, &copied)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []domain.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := make(map[domain.EventID]struct{}, len(ids))
	for _, id := range ids {
		marked[id] = struct{}{}
	}
	for _, e := range s.events {
		if _, ok := marked[e.ID]; ok && e.PublishedAt == nil {
			now := nowUTC()
			e.PublishedAt = &now
		}
	}
	return nil
}

// Events returns every appended event, for assertions.
func (s *InMemoryStore) Events() []*Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Event, 0, len(s.events))
	for _, e := range s.events {
		copied := *e
		out = append(out, &copied)
	}
	return out
}

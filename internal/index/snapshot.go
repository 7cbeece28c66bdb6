package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chainscreen/internal/index/metrics"
	"chainscreen/internal/list"
	"chainscreen/pkg/domain"
)

// Snapshot publishes the current index. Readers call Current on every
// screening; writers swap in a freshly built index with a single pointer
// store. The zero-value snapshot serves an empty index until the first
// publish.
type Snapshot struct {
	current atomic.Pointer[Index]
}

func NewSnapshot() *Snapshot {
	s := &Snapshot{}
	s.current.Store(Build(nil, nil, time.Time{}))
	return s
}

// Current returns the published index. Never nil, never blocks.
func (s *Snapshot) Current() *Index {
	return s.current.Load()
}

// Publish swaps the given index in.
func (s *Snapshot) Publish(idx *Index) {
	s.current.Store(idx)
}

// Rebuilder rebuilds the snapshot from the store's active versions. Rebuilds
// are serialized; screening reads are not.
type Rebuilder struct {
	mu       sync.Mutex
	store    EntrySource
	snapshot *Snapshot
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// EntrySource is the slice of list.Store a rebuild needs.
type EntrySource interface {
	ActiveVersions(ctx context.Context) ([]*list.ListVersion, error)
	EntriesForVersions(ctx context.Context, ids []domain.VersionID) ([]list.Entry, error)
}

func NewRebuilder(store EntrySource, snapshot *Snapshot, logger *slog.Logger, m *metrics.Metrics) *Rebuilder {
	return &Rebuilder{
		store:    store,
		snapshot: snapshot,
		logger:   logger,
		metrics:  m,
	}
}

// Rebuild loads the active versions, builds a fresh index, and publishes it.
// On any error the previously published index stays in place.
func (r *Rebuilder) Rebuild(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	versions, err := r.store.ActiveVersions(ctx)
	if err != nil {
		return fmt.Errorf("load active versions: %w", err)
	}
	ids := make([]domain.VersionID, 0, len(versions))
	for _, v := range versions {
		ids = append(ids, v.ID)
	}
	entries, err := r.store.EntriesForVersions(ctx, ids)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}

	idx := Build(versions, entries, time.Now().UTC())
	r.snapshot.Publish(idx)

	r.metrics.ObserveRebuild(start, idx.Size())
	r.logger.InfoContext(ctx, "index published",
		"versions", len(versions),
		"addresses", idx.Size(),
		"build_duration", time.Since(start),
	)
	return nil
}

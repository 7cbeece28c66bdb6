// Package cleared holds the durable registry of subjects resolved as false
// positives. The screening engine consults it to soften repeat vendor-driven
// holds; it never affects exact list hits.
package cleared

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"chainscreen/internal/canonical"
	"chainscreen/pkg/domain"
)

// Registry records false-positive resolutions and answers membership checks.
type Registry interface {
	// Add marks an address as cleared, recording the resolving case.
	Add(ctx context.Context, addr canonical.Address, caseID domain.CaseID, clearedAt time.Time) error

	// Contains reports whether an address was previously cleared.
	Contains(ctx context.Context, addr canonical.Address) (bool, error)
}

// InMemoryRegistry backs unit tests and single-node runs.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	cleared map[string]struct{}
}

func NewInMemory() *InMemoryRegistry {
	return &InMemoryRegistry{cleared: make(map[string]struct{})}
}

func (r *InMemoryRegistry) Add(_ context.Context, addr canonical.Address, _ domain.CaseID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared[memberKey(addr)] = struct{}{}
	return nil
}

func (r *InMemoryRegistry) Contains(_ context.Context, addr canonical.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cleared[memberKey(addr)]
	return ok, nil
}

// RedisRegistry is the durable production registry. Entries are hash fields
// keyed by (chain, canonical) with the resolving case and timestamp as the
// value, so operators can audit why an address is cleared.
type RedisRegistry struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

const redisKey = "chainscreen:cleared"

func (r *RedisRegistry) Add(ctx context.Context, addr canonical.Address, caseID domain.CaseID, clearedAt time.Time) error {
	value := fmt.Sprintf("%s@%s", caseID, clearedAt.UTC().Format(time.RFC3339))
	if err := r.client.HSet(ctx, redisKey, memberKey(addr), value).Err(); err != nil {
		return fmt.Errorf("record cleared subject: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Contains(ctx context.Context, addr canonical.Address) (bool, error) {
	ok, err := r.client.HExists(ctx, redisKey, memberKey(addr)).Result()
	if err != nil {
		return false, fmt.Errorf("check cleared subject: %w", err)
	}
	return ok, nil
}

func memberKey(addr canonical.Address) string {
	return string(addr.Chain) + ":" + addr.Canonical
}

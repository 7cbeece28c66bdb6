package screening

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"chainscreen/internal/canonical"
	"chainscreen/pkg/platform/sentinel"
)

// RiskOracle is an untrusted vendor risk source. ErrNoSignal means the vendor
// has nothing to say about the address, which is not a failure.
type RiskOracle interface {
	Query(ctx context.Context, addr canonical.Address) (RiskSignal, error)
}

// ErrNoSignal reports that the vendor has no assessment for an address.
var ErrNoSignal = errors.New("no vendor risk signal")

// TimeoutOracle bounds every vendor query with a deadline. On timeout or
// vendor failure it reports sentinel.ErrUnavailable so the engine can degrade
// to exact-match-only screening.
type TimeoutOracle struct {
	inner   RiskOracle
	timeout time.Duration
	logger  *slog.Logger
}

func NewTimeoutOracle(inner RiskOracle, timeout time.Duration, logger *slog.Logger) *TimeoutOracle {
	return &TimeoutOracle{inner: inner, timeout: timeout, logger: logger}
}

func (o *TimeoutOracle) Query(ctx context.Context, addr canonical.Address) (RiskSignal, error) {
	queryCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	signal, err := o.inner.Query(queryCtx, addr)
	if err != nil {
		if errors.Is(err, ErrNoSignal) {
			return RiskSignal{}, err
		}
		o.logger.ErrorContext(ctx, "vendor oracle unavailable",
			"chain", addr.Chain,
			"error", err,
		)
		return RiskSignal{}, fmt.Errorf("vendor oracle: %w", sentinel.ErrUnavailable)
	}
	return signal, nil
}

// CachedOracle memoizes vendor responses in Redis. Vendor risk is slow-moving
// relative to the cache TTL; cache failures fall through to the vendor.
type CachedOracle struct {
	inner  RiskOracle
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedOracle(inner RiskOracle, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedOracle {
	return &CachedOracle{inner: inner, client: client, ttl: ttl, logger: logger}
}

type cachedSignal struct {
	Vendor   string `json:"vendor"`
	Score    int    `json:"score"`
	Category string `json:"category"`
	NoSignal bool   `json:"no_signal"`
}

func (o *CachedOracle) Query(ctx context.Context, addr canonical.Address) (RiskSignal, error) {
	key := fmt.Sprintf("chainscreen:risk:%s:%s", addr.Chain, addr.Canonical)

	if raw, err := o.client.Get(ctx, key).Bytes(); err == nil {
		var cached cachedSignal
		if err := json.Unmarshal(raw, &cached); err == nil {
			if cached.NoSignal {
				return RiskSignal{}, ErrNoSignal
			}
			return RiskSignal{Vendor: cached.Vendor, Score: cached.Score, Category: cached.Category}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		o.logger.InfoContext(ctx, "risk cache read failed", "error", err)
	}

	signal, err := o.inner.Query(ctx, addr)
	if err != nil && !errors.Is(err, ErrNoSignal) {
		// Unavailability is never cached.
		return RiskSignal{}, err
	}

	cached := cachedSignal{
		Vendor:   signal.Vendor,
		Score:    signal.Score,
		Category: signal.Category,
		NoSignal: errors.Is(err, ErrNoSignal),
	}
	if raw, marshalErr := json.Marshal(cached); marshalErr == nil {
		if setErr := o.client.Set(ctx, key, raw, o.ttl).Err(); setErr != nil {
			o.logger.InfoContext(ctx, "risk cache write failed", "error", setErr)
		}
	}
	return signal, err
}

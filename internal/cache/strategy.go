package cache

import (
	"time"

	"github.com/gencache/gencache/pkg/errors"
)

// Eviction strategy names accepted by configuration.
const (
	StrategyLRU        = "lru"
	StrategyLFU        = "lfu"
	StrategyCostAware  = "cost-aware"
	StrategyPopularity = "popularity"
)

// Strategy orders entries for eviction. Entries with the lowest score are
// evicted first. Tie-break within one pass follows the store's scan order;
// it is unspecified but stable within a single eviction run.
type Strategy interface {
	Name() string
	Score(e *Entry, now time.Time) float64
}

// NewStrategy returns the strategy registered under name. The popularity
// strategy needs the TTL policy for its cost threshold.
func NewStrategy(name string, policy *TTLPolicy) (Strategy, error) {
	switch name {
	case StrategyLRU:
		return lruStrategy{}, nil
	case StrategyLFU:
		return lfuStrategy{}, nil
	case StrategyCostAware:
		return costAwareStrategy{}, nil
	case StrategyPopularity, "":
		return popularityStrategy{policy: policy}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown eviction strategy %q", name).
			WithComponent("cache")
	}
}

// lruStrategy evicts the least recently accessed entries first.
type lruStrategy struct{}

func (lruStrategy) Name() string { return StrategyLRU }

func (lruStrategy) Score(e *Entry, now time.Time) float64 {
	return float64(e.LastAccess.UnixNano())
}

// lfuStrategy evicts the least frequently hit entries first.
type lfuStrategy struct{}

func (lfuStrategy) Name() string { return StrategyLFU }

func (lfuStrategy) Score(e *Entry, now time.Time) float64 {
	return float64(e.Hits)
}

// costAwareStrategy weights reuse by production cost, so a cheap rarely-hit
// entry goes before an expensive well-used one.
type costAwareStrategy struct{}

func (costAwareStrategy) Name() string { return StrategyCostAware }

func (costAwareStrategy) Score(e *Entry, now time.Time) float64 {
	return e.Cost * float64(e.Hits)
}

// popularityStrategy evicts by the derived popularity score, the default.
type popularityStrategy struct {
	policy *TTLPolicy
}

func (popularityStrategy) Name() string { return StrategyPopularity }

func (s popularityStrategy) Score(e *Entry, now time.Time) float64 {
	return s.policy.PopularityScore(e.Hits, e.Cost, e.LastAccess, now)
}

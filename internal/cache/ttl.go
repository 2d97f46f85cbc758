package cache

import (
	"math"
	"time"
)

// TTLPolicy computes adaptive entry lifetimes from production cost, hit
// popularity, access recency, and operation class. Expensive and
// frequently-reused artifacts survive longer; stale-access artifacts decay
// toward the base TTL; latency-sensitive operation classes get explicit
// short multipliers.
type TTLPolicy struct {
	BaseTTL             time.Duration
	CostThreshold       float64
	PopularityThreshold int64

	// OperationMultipliers scales lifetimes per operation class,
	// e.g. embeddings x10, chat x0.5, realtime x0.1. Missing operations
	// default to 1.
	OperationMultipliers map[string]float64
}

// Compute returns the lifetime for an entry written now.
func (p *TTLPolicy) Compute(operation string, cost float64, hits int64, lastAccess, now time.Time) time.Duration {
	costMultiplier := 1.0
	if p.CostThreshold > 0 {
		costMultiplier = clamp(cost/p.CostThreshold, 1, 10)
	}

	popularityMultiplier := 1.0
	if hits > p.PopularityThreshold {
		popularityMultiplier = 2.0
	}

	// Decays from 2 down to 1 over 24 hours since last access.
	hoursSinceAccess := now.Sub(lastAccess).Hours()
	recencyMultiplier := math.Max(1, 2-hoursSinceAccess/24)

	operationMultiplier := 1.0
	if m, ok := p.OperationMultipliers[operation]; ok && m > 0 {
		operationMultiplier = m
	}

	ttl := float64(p.BaseTTL) * costMultiplier * popularityMultiplier * recencyMultiplier * operationMultiplier
	if ttl < 1 {
		ttl = 1
	}
	return time.Duration(ttl)
}

// PopularityScore ranks an entry's retention value:
// ln(hits+1) * min(cost/costThreshold, 5) * max(0, 1 - daysSinceAccess/7).
func (p *TTLPolicy) PopularityScore(hits int64, cost float64, lastAccess, now time.Time) float64 {
	costFactor := 0.0
	if p.CostThreshold > 0 {
		costFactor = math.Min(cost/p.CostThreshold, 5)
	}

	daysSinceAccess := now.Sub(lastAccess).Hours() / 24
	recencyFactor := math.Max(0, 1-daysSinceAccess/7)

	return math.Log(float64(hits)+1) * costFactor * recencyFactor
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Package types holds the read-only statistic and report structures shared
// between the cache engine and its callers.
package types

import (
	"time"
)

// CacheStats represents the core cache performance counters.
type CacheStats struct {
	Entries     int     `json:"entries"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Expired     uint64  `json:"expired"`
	HitRate     float64 `json:"hit_rate"`
	MemoryUsage int64   `json:"memory_usage"`
	MemoryLimit int64   `json:"memory_limit"`
	PeakMemory  int64   `json:"peak_memory"`
	Utilization float64 `json:"utilization"`
}

// OperationStats tracks per-operation request statistics.
type OperationStats struct {
	Count           int64         `json:"count"`
	Hits            int64         `json:"hits"`
	TotalCost       float64       `json:"total_cost"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	LastSeen        time.Time     `json:"last_seen"`
}

// TTLDistribution summarizes lifetimes across live entries.
type TTLDistribution struct {
	Average time.Duration `json:"average"`
	Median  time.Duration `json:"median"`
	P95     time.Duration `json:"p95"`
	Samples int           `json:"samples"`
}

// PopularEntry identifies a high-retention-value cache entry.
type PopularEntry struct {
	Key             string  `json:"key"`
	Operation       string  `json:"operation"`
	Hits            int64   `json:"hits"`
	Cost            float64 `json:"cost"`
	PopularityScore float64 `json:"popularity_score"`
}

// AdvancedStats is the full analytics view returned by the cache.
type AdvancedStats struct {
	CacheStats

	Operations        map[string]OperationStats `json:"operations"`
	TTL               TTLDistribution           `json:"ttl"`
	TopEntries        []PopularEntry            `json:"top_entries"`
	EvictionsByReason map[string]uint64         `json:"evictions_by_reason"`
	AvgResponseTime   time.Duration             `json:"avg_response_time"`
	CostSavedTotal    float64                   `json:"cost_saved_total"`
	CostSavedPerHour  float64                   `json:"cost_saved_per_hour"`
	Uptime            time.Duration             `json:"uptime"`
}

// WarmingCandidate reports a queued proactive-refresh candidate.
type WarmingCandidate struct {
	Operation string  `json:"operation"`
	Priority  float64 `json:"priority"`
	Frequency int64   `json:"frequency"`
}

package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/gencache/gencache/pkg/types"
)

// responseTimeSamples bounds the per-operation response time ring buffer.
const responseTimeSamples = 50

type opStats struct {
	count     int64
	hits      int64
	totalCost float64
	lastSeen  time.Time

	samples [responseTimeSamples]time.Duration
	next    int
	filled  int
}

func (o *opStats) record(d time.Duration) {
	o.samples[o.next] = d
	o.next = (o.next + 1) % responseTimeSamples
	if o.filled < responseTimeSamples {
		o.filled++
	}
}

func (o *opStats) avgResponseTime() time.Duration {
	if o.filled == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < o.filled; i++ {
		total += o.samples[i]
	}
	return total / time.Duration(o.filled)
}

// Analytics aggregates hit/miss counts, per-operation statistics, eviction
// reasons, and cost savings. It tolerates eventual consistency relative to
// the entry table and deliberately survives a cache flush: Clear on the
// store does not reset history here. All views are computed lazily when
// requested.
type Analytics struct {
	mu      sync.Mutex
	enabled bool
	clock   Clock

	startedAt time.Time

	requests uint64
	hits     uint64
	misses   uint64
	expired  uint64

	evictions         uint64
	evictionsByReason map[string]uint64

	invalidated     uint64
	invalidatedCost float64

	peakMemory int64
	savedCost  float64

	ops map[string]*opStats
}

// NewAnalytics creates a collector. When disabled, all recording methods are
// no-ops and reports are empty.
func NewAnalytics(enabled bool, clock Clock) *Analytics {
	if clock == nil {
		clock = realClock{}
	}
	return &Analytics{
		enabled:           enabled,
		clock:             clock,
		startedAt:         clock.Now(),
		evictionsByReason: make(map[string]uint64),
		ops:               make(map[string]*opStats),
	}
}

// RecordHit accumulates a successful read; cost is the production cost the
// hit avoided.
func (a *Analytics) RecordHit(operation string, cost float64) {
	if !a.enabled {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests++
	a.hits++
	a.savedCost += cost

	op := a.opLocked(operation)
	op.count++
	op.hits++
}

// RecordMiss accumulates a failed read.
func (a *Analytics) RecordMiss(operation string) {
	if !a.enabled {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests++
	a.misses++
	a.opLocked(operation).count++
}

// RecordSet accumulates the declared cost of a stored value.
func (a *Analytics) RecordSet(operation string, cost float64) {
	if !a.enabled {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.opLocked(operation).totalCost += cost
}

// RecordResponseTime stores a producer response time sample for operation.
func (a *Analytics) RecordResponseTime(operation string, d time.Duration) {
	if !a.enabled {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.opLocked(operation).record(d)
}

// RecordEviction counts one forced removal under the named strategy.
func (a *Analytics) RecordEviction(reason string) {
	if !a.enabled {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.evictions++
	a.evictionsByReason[reason]++
}

// RecordExpired counts entries removed because their TTL elapsed.
func (a *Analytics) RecordExpired(n int) {
	if !a.enabled || n <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.expired += uint64(n)
}

// RecordInvalidation counts a tag-based bulk removal and the production cost
// it discarded.
func (a *Analytics) RecordInvalidation(count int, cost float64) {
	if !a.enabled || count <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.invalidated += uint64(count)
	a.invalidatedCost += cost
}

// ObserveMemory tracks the peak byte usage seen.
func (a *Analytics) ObserveMemory(bytes int64) {
	if !a.enabled {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if bytes > a.peakMemory {
		a.peakMemory = bytes
	}
}

// Report assembles the lazily-computed analytics view.
func (a *Analytics) Report() types.AdvancedStats {
	if !a.enabled {
		return types.AdvancedStats{
			Operations:        map[string]types.OperationStats{},
			EvictionsByReason: map[string]uint64{},
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	stats := types.AdvancedStats{
		CacheStats: types.CacheStats{
			Hits:       a.hits,
			Misses:     a.misses,
			Evictions:  a.evictions,
			Expired:    a.expired,
			PeakMemory: a.peakMemory,
		},
		Operations:        make(map[string]types.OperationStats, len(a.ops)),
		EvictionsByReason: make(map[string]uint64, len(a.evictionsByReason)),
		CostSavedTotal:    a.savedCost,
		Uptime:            now.Sub(a.startedAt),
	}

	if a.requests > 0 {
		stats.HitRate = float64(a.hits) / float64(a.requests)
	}

	if hours := now.Sub(a.startedAt).Hours(); hours > 0 {
		stats.CostSavedPerHour = a.savedCost / hours
	}

	var totalResponse time.Duration
	var sampled int
	for name, op := range a.ops {
		avg := op.avgResponseTime()
		stats.Operations[name] = types.OperationStats{
			Count:           op.count,
			Hits:            op.hits,
			TotalCost:       op.totalCost,
			AvgResponseTime: avg,
			LastSeen:        op.lastSeen,
		}
		if op.filled > 0 {
			totalResponse += avg
			sampled++
		}
	}
	if sampled > 0 {
		stats.AvgResponseTime = totalResponse / time.Duration(sampled)
	}

	for reason, n := range a.evictionsByReason {
		stats.EvictionsByReason[reason] = n
	}

	return stats
}

func (a *Analytics) opLocked(operation string) *opStats {
	op, ok := a.ops[operation]
	if !ok {
		op = &opStats{}
		a.ops[operation] = op
	}
	op.lastSeen = a.clock.Now()
	return op
}

// TTLDistributionOf summarizes average, median, and 95th percentile TTL
// across the live entries in snapshot.
func TTLDistributionOf(snapshot map[string]Entry, now time.Time) types.TTLDistribution {
	ttls := make([]time.Duration, 0, len(snapshot))
	var total time.Duration
	for _, e := range snapshot {
		if !e.Live(now) {
			continue
		}
		ttls = append(ttls, e.TTL)
		total += e.TTL
	}
	if len(ttls) == 0 {
		return types.TTLDistribution{}
	}

	sort.Slice(ttls, func(i, j int) bool { return ttls[i] < ttls[j] })

	p95 := (95*len(ttls) - 1) / 100
	if p95 < 0 {
		p95 = 0
	}
	if p95 >= len(ttls) {
		p95 = len(ttls) - 1
	}

	return types.TTLDistribution{
		Average: total / time.Duration(len(ttls)),
		Median:  ttls[len(ttls)/2],
		P95:     ttls[p95],
		Samples: len(ttls),
	}
}

// TopEntries returns the n most popular live entries, highest score first.
func TopEntries(snapshot map[string]Entry, now time.Time, n int) []types.PopularEntry {
	entries := make([]types.PopularEntry, 0, len(snapshot))
	for key, e := range snapshot {
		if !e.Live(now) {
			continue
		}
		entries = append(entries, types.PopularEntry{
			Key:             key,
			Operation:       e.Operation,
			Hits:            e.Hits,
			Cost:            e.Cost,
			PopularityScore: e.PopularityScore,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PopularityScore != entries[j].PopularityScore {
			return entries[i].PopularityScore > entries[j].PopularityScore
		}
		return entries[i].Hits > entries[j].Hits
	})

	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

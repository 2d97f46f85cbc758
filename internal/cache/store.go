package cache

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	// Eviction triggers above this share of the byte budget and frees
	// entries until usage is back under the target share.
	evictTriggerRatio = 0.8
	evictTargetRatio  = 0.7
)

// Store owns the entry table and the running byte-size accounting. A single
// mutex serializes Set, Get, and the eviction scan-and-delete so they never
// interleave inconsistently; background tasks acquire the same lock.
type Store struct {
	mu          sync.Mutex
	entries     map[string]*Entry
	memoryUsage int64

	memoryLimit int64
	maxEntries  int

	strategy  Strategy
	policy    *TTLPolicy
	clock     Clock
	logger    *slog.Logger
	metrics   Metrics
	analytics *Analytics
}

// NewStore creates an entry store bounded by memoryLimit bytes and
// maxEntries entries (either may be 0 for unbounded).
func NewStore(memoryLimit int64, maxEntries int, strategy Strategy, policy *TTLPolicy, clock Clock, logger *slog.Logger, metrics Metrics, analytics *Analytics) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Store{
		entries:     make(map[string]*Entry),
		memoryLimit: memoryLimit,
		maxEntries:  maxEntries,
		strategy:    strategy,
		policy:      policy,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
		analytics:   analytics,
	}
}

// Get returns the value and cost for key. Stale entries are deleted on
// access (lazy expiry). On a hit the entry's hit count, last access, and
// popularity score are updated.
func (s *Store) Get(key string) (any, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, 0, false
	}

	now := s.clock.Now()
	if !e.Live(now) {
		s.removeLocked(key, e)
		s.analytics.RecordExpired(1)
		s.metrics.Expired(1)
		return nil, 0, false
	}

	e.Hits++
	e.LastAccess = now
	e.PopularityScore = s.policy.PopularityScore(e.Hits, e.Cost, e.LastAccess, now)
	return e.Value, e.Cost, true
}

// Peek returns the hit count and last access of a live entry without
// touching its statistics. Used to feed TTL computation on refresh.
func (s *Store) Peek(key string) (hits int64, lastAccess time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[key]
	if !exists || !e.Live(s.clock.Now()) {
		return 0, time.Time{}, false
	}
	return e.Hits, e.LastAccess, true
}

// Has reports liveness for key without updating hit or access statistics.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	return ok && e.Live(s.clock.Now())
}

// Set inserts or overwrites the entry under key. Prior hit counts and last
// access survive a refresh of the same key so popularity is not reset. If the
// byte budget cannot accommodate the entry even after eviction, Set leaves
// the store unchanged and returns false.
func (s *Store) Set(key string, e *Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, replacing := s.entries[key]
	if replacing {
		// Treat replace as remove+insert for accounting, restoring the
		// prior entry if the new one cannot fit.
		s.memoryUsage -= prior.Size
		delete(s.entries, key)

		e.Hits = prior.Hits
		if prior.LastAccess.After(e.LastAccess) {
			e.LastAccess = prior.LastAccess
		}
		now := s.clock.Now()
		e.PopularityScore = s.policy.PopularityScore(e.Hits, e.Cost, e.LastAccess, now)
	}

	if !s.ensureRoomLocked(e.Size) {
		if replacing {
			s.entries[key] = prior
			s.memoryUsage += prior.Size
		}
		s.logger.Warn("cache set rejected: memory budget exhausted",
			"key", key, "operation", e.Operation, "size", e.Size, "limit", s.memoryLimit)
		return false
	}

	s.entries[key] = e
	s.memoryUsage += e.Size

	if s.memoryLimit > 0 && float64(s.memoryUsage) > float64(s.memoryLimit)*evictTriggerRatio {
		s.evictLocked(int64(float64(s.memoryLimit) * evictTargetRatio))
	}
	s.enforceEntryCapLocked()
	return true
}

// ensureRoomLocked frees space so an entry of size bytes can be inserted,
// evicting down to the target share if needed. Returns false when the entry
// can never fit.
func (s *Store) ensureRoomLocked(size int64) bool {
	if s.memoryLimit <= 0 {
		return true
	}
	if size > s.memoryLimit {
		return false
	}
	if s.memoryUsage+size <= s.memoryLimit {
		return true
	}

	target := int64(float64(s.memoryLimit)*evictTargetRatio) - size
	if target < 0 {
		target = 0
	}
	s.evictLocked(target)
	return s.memoryUsage+size <= s.memoryLimit
}

// evictLocked removes entries, cheapest-to-keep first under the active
// strategy, until memory usage drops to target bytes or the store is empty.
func (s *Store) evictLocked(target int64) {
	if s.memoryUsage <= target {
		return
	}

	now := s.clock.Now()
	type candidate struct {
		key   string
		score float64
	}
	candidates := make([]candidate, 0, len(s.entries))
	for key, e := range s.entries {
		candidates = append(candidates, candidate{key: key, score: s.strategy.Score(e, now)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score < candidates[j].score
	})

	for _, c := range candidates {
		if s.memoryUsage <= target {
			break
		}
		e := s.entries[c.key]
		if e == nil {
			continue
		}
		s.removeLocked(c.key, e)
		s.analytics.RecordEviction(s.strategy.Name())
		s.metrics.Eviction(s.strategy.Name())
		s.logger.Debug("evicted cache entry",
			"key", c.key, "operation", e.Operation, "strategy", s.strategy.Name(), "size", e.Size)
	}
}

// enforceEntryCapLocked evicts by strategy order until the entry count cap
// is respected.
func (s *Store) enforceEntryCapLocked() {
	if s.maxEntries <= 0 || len(s.entries) <= s.maxEntries {
		return
	}

	now := s.clock.Now()
	type candidate struct {
		key   string
		score float64
	}
	candidates := make([]candidate, 0, len(s.entries))
	for key, e := range s.entries {
		candidates = append(candidates, candidate{key: key, score: s.strategy.Score(e, now)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score < candidates[j].score
	})

	for _, c := range candidates {
		if len(s.entries) <= s.maxEntries {
			break
		}
		if e := s.entries[c.key]; e != nil {
			s.removeLocked(c.key, e)
			s.analytics.RecordEviction(s.strategy.Name())
			s.metrics.Eviction(s.strategy.Name())
		}
	}
}

// EvictIfNeeded applies the budget check outside of a Set, for the periodic
// memory monitor.
func (s *Store) EvictIfNeeded() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.memoryLimit > 0 && float64(s.memoryUsage) > float64(s.memoryLimit)*evictTriggerRatio {
		s.evictLocked(int64(float64(s.memoryLimit) * evictTargetRatio))
	}
}

// RemoveExpired deletes all stale entries and returns how many were removed.
func (s *Store) RemoveExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for key, e := range s.entries {
		if !e.Live(now) {
			s.removeLocked(key, e)
			removed++
		}
	}
	if removed > 0 {
		s.analytics.RecordExpired(removed)
		s.metrics.Expired(removed)
	}
	return removed
}

// ClearByTag removes every entry carrying tag. It returns the removed keys
// and the sum of their declared cost.
func (s *Store) ClearByTag(tag string) ([]string, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	cost := 0.0
	for key, e := range s.entries {
		if e.HasTag(tag) {
			cost += e.Cost
			s.removeLocked(key, e)
			removed = append(removed, key)
		}
	}
	return removed, cost
}

// Delete removes the entry under key if present.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	s.removeLocked(key, e)
	return true
}

// Clear empties the store and resets the running byte counter. Historical
// analytics are retained separately and survive a flush.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*Entry)
	s.memoryUsage = 0
}

// Len returns the number of resident entries, live or stale.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// MemoryUsage returns the current estimated byte usage.
func (s *Store) MemoryUsage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memoryUsage
}

// MemoryLimit returns the configured byte budget (0 means unbounded).
func (s *Store) MemoryLimit() int64 {
	return s.memoryLimit
}

// Snapshot returns copies of all entries keyed by cache key. Values are
// shared; metadata is copied so callers can read without holding the lock.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Entry, len(s.entries))
	for key, e := range s.entries {
		out[key] = *e
	}
	return out
}

func (s *Store) removeLocked(key string, e *Entry) {
	delete(s.entries, key)
	s.memoryUsage -= e.Size
}

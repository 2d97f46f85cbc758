package cache

import (
	"testing"
	"time"
)

// TestAnalytics_HitRate tests request counting and hit rate computation.
func TestAnalytics_HitRate(t *testing.T) {
	clock := newFakeClock()
	a := NewAnalytics(true, clock)

	a.RecordHit("chat", 0.05)
	a.RecordHit("chat", 0.05)
	a.RecordHit("embeddings", 0.10)
	a.RecordMiss("chat")

	stats := a.Report()
	if stats.Hits != 3 {
		t.Errorf("expected 3 hits, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
	if stats.HitRate != 0.75 {
		t.Errorf("expected hit rate 0.75, got %v", stats.HitRate)
	}

	chat, ok := stats.Operations["chat"]
	if !ok {
		t.Fatal("expected chat operation stats")
	}
	if chat.Count != 3 || chat.Hits != 2 {
		t.Errorf("expected chat count=3 hits=2, got count=%d hits=%d", chat.Count, chat.Hits)
	}
}

// TestAnalytics_CostSavings tests that hits accumulate avoided production
// cost and normalize it per hour of uptime.
func TestAnalytics_CostSavings(t *testing.T) {
	clock := newFakeClock()
	a := NewAnalytics(true, clock)

	a.RecordHit("chat", 0.30)
	a.RecordHit("chat", 0.30)

	clock.Advance(2 * time.Hour)

	stats := a.Report()
	if stats.CostSavedTotal != 0.60 {
		t.Errorf("expected total savings 0.60, got %v", stats.CostSavedTotal)
	}
	if stats.CostSavedPerHour != 0.30 {
		t.Errorf("expected 0.30 saved per hour, got %v", stats.CostSavedPerHour)
	}
	if stats.Uptime != 2*time.Hour {
		t.Errorf("expected 2h uptime, got %v", stats.Uptime)
	}
}

// TestAnalytics_EvictionsByReason tests eviction and expiry counters.
func TestAnalytics_EvictionsByReason(t *testing.T) {
	a := NewAnalytics(true, newFakeClock())

	a.RecordEviction("lru")
	a.RecordEviction("lru")
	a.RecordEviction("cost-aware")
	a.RecordExpired(4)

	stats := a.Report()
	if stats.Evictions != 3 {
		t.Errorf("expected 3 evictions, got %d", stats.Evictions)
	}
	if stats.EvictionsByReason["lru"] != 2 || stats.EvictionsByReason["cost-aware"] != 1 {
		t.Errorf("unexpected eviction breakdown: %v", stats.EvictionsByReason)
	}
	if stats.Expired != 4 {
		t.Errorf("expected 4 expired, got %d", stats.Expired)
	}
}

// TestAnalytics_ResponseTimes tests the bounded response time averaging.
func TestAnalytics_ResponseTimes(t *testing.T) {
	a := NewAnalytics(true, newFakeClock())

	a.RecordResponseTime("chat", 100*time.Millisecond)
	a.RecordResponseTime("chat", 300*time.Millisecond)

	stats := a.Report()
	if got := stats.Operations["chat"].AvgResponseTime; got != 200*time.Millisecond {
		t.Errorf("expected 200ms average, got %v", got)
	}

	// The ring buffer keeps only the most recent samples.
	for i := 0; i < responseTimeSamples; i++ {
		a.RecordResponseTime("chat", time.Second)
	}
	stats = a.Report()
	if got := stats.Operations["chat"].AvgResponseTime; got != time.Second {
		t.Errorf("expected 1s average after buffer rollover, got %v", got)
	}
}

// TestAnalytics_PeakMemory tests the high-water memory mark.
func TestAnalytics_PeakMemory(t *testing.T) {
	a := NewAnalytics(true, newFakeClock())

	a.ObserveMemory(100)
	a.ObserveMemory(500)
	a.ObserveMemory(200)

	if got := a.Report().PeakMemory; got != 500 {
		t.Errorf("expected peak memory 500, got %d", got)
	}
}

// TestAnalytics_Disabled tests that a disabled collector records nothing.
func TestAnalytics_Disabled(t *testing.T) {
	a := NewAnalytics(false, newFakeClock())

	a.RecordHit("chat", 0.30)
	a.RecordMiss("chat")
	a.RecordEviction("lru")

	stats := a.Report()
	if stats.Hits != 0 || stats.Misses != 0 || stats.Evictions != 0 {
		t.Errorf("disabled collector recorded data: %+v", stats.CacheStats)
	}
	if len(stats.Operations) != 0 {
		t.Errorf("disabled collector tracked operations: %v", stats.Operations)
	}
}

// TestTTLDistributionOf tests the lifetime percentile summary.
func TestTTLDistributionOf(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	snapshot := map[string]Entry{}
	for i, ttl := range []time.Duration{time.Minute, 2 * time.Minute, 3 * time.Minute, 10 * time.Minute} {
		snapshot[string(rune('a'+i))] = Entry{Timestamp: now, TTL: ttl}
	}
	// Stale entries must not contribute.
	snapshot["stale"] = Entry{Timestamp: now.Add(-time.Hour), TTL: time.Minute}

	dist := TTLDistributionOf(snapshot, now)
	if dist.Samples != 4 {
		t.Errorf("expected 4 samples, got %d", dist.Samples)
	}
	if dist.Average != 4*time.Minute {
		t.Errorf("expected 4m average, got %v", dist.Average)
	}
	if dist.Median != 3*time.Minute {
		t.Errorf("expected 3m median, got %v", dist.Median)
	}
	if dist.P95 != 10*time.Minute {
		t.Errorf("expected 10m p95, got %v", dist.P95)
	}

	empty := TTLDistributionOf(map[string]Entry{}, now)
	if empty.Samples != 0 || empty.Average != 0 {
		t.Errorf("expected zero distribution for empty snapshot, got %+v", empty)
	}
}

// TestTopEntries tests popularity ranking and truncation.
func TestTopEntries(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	snapshot := map[string]Entry{
		"low":  {Timestamp: now, TTL: time.Hour, Operation: "chat", Hits: 1, PopularityScore: 0.5},
		"high": {Timestamp: now, TTL: time.Hour, Operation: "embeddings", Hits: 40, PopularityScore: 9.1},
		"mid":  {Timestamp: now, TTL: time.Hour, Operation: "chat", Hits: 10, PopularityScore: 3.2},
	}

	top := TopEntries(snapshot, now, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Key != "high" || top[1].Key != "mid" {
		t.Errorf("unexpected ranking: %s, %s", top[0].Key, top[1].Key)
	}
}

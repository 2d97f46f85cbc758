package cache

import (
	"context"
	"fmt"
	"testing"
)

func observeEligible(w *Warmer, key, operation string, cost float64) {
	// Two writes with enough accumulated hits cross the discovery
	// thresholds.
	w.Observe(key, operation, nil, cost, 0)
	w.Observe(key, operation, nil, cost, warmingMinHits)
}

// TestWarmer_Discovery tests the candidate eligibility thresholds.
func TestWarmer_Discovery(t *testing.T) {
	w := NewWarmer(5, 600, 0.01, nil)

	// One write is never enough, whatever the hit count.
	w.Observe("once", "chat", nil, 0.05, 100)

	// Two writes without hits are not enough either.
	w.Observe("unread", "chat", nil, 0.05, 0)
	w.Observe("unread", "chat", nil, 0.05, 0)

	observeEligible(w, "hot", "embeddings", 0.05)

	queue := w.Queue()
	if len(queue) != 1 {
		t.Fatalf("expected 1 eligible candidate, got %d", len(queue))
	}
	if queue[0].Operation != "embeddings" {
		t.Errorf("expected the hot candidate, got %q", queue[0].Operation)
	}
	if queue[0].Frequency != 2 {
		t.Errorf("expected frequency 2, got %d", queue[0].Frequency)
	}
}

// TestWarmer_PriorityCap tests that priority saturates at the cap however
// expensive the operation is.
func TestWarmer_PriorityCap(t *testing.T) {
	w := NewWarmer(5, 600, 0.01, nil)

	observeEligible(w, "pricey", "embeddings", 1000)
	observeEligible(w, "mild", "chat", 0.05)

	queue := w.Queue()
	if len(queue) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(queue))
	}
	if queue[0].Priority != warmingMaxPriority {
		t.Errorf("expected capped priority %d, got %v", warmingMaxPriority, queue[0].Priority)
	}
	if queue[1].Priority != 5 {
		t.Errorf("expected priority 5 for cost 0.05, got %v", queue[1].Priority)
	}
}

// TestWarmer_RunOnce tests batch bounding and the already-cached skip.
func TestWarmer_RunOnce(t *testing.T) {
	w := NewWarmer(2, 600, 0.01, nil)

	// Distinct costs give a deterministic ranking: k3, k2, k1, k0.
	for i := 0; i < 4; i++ {
		observeEligible(w, fmt.Sprintf("k%d", i), "chat", 0.01*float64(i+1))
	}

	var refreshed []string
	w.RunOnce(context.Background(),
		func(key string) bool { return key == "k3" }, // highest priority, already cached
		func(ctx context.Context, q *WarmingQuery) error {
			refreshed = append(refreshed, q.Key)
			return nil
		})

	if len(refreshed) != 2 {
		t.Fatalf("expected batch of 2 refreshes, got %d: %v", len(refreshed), refreshed)
	}
	for _, key := range refreshed {
		if key == "k3" {
			t.Error("cached candidate was refreshed")
		}
	}
	// Ranking is priority*frequency descending, so the most expensive
	// uncached candidates refresh first.
	if refreshed[0] != "k2" || refreshed[1] != "k1" {
		t.Errorf("unexpected refresh order: %v", refreshed)
	}
}

// TestWarmer_RunOnceFailuresSkipped tests that a failing refresh does not
// consume the batch.
func TestWarmer_RunOnceFailuresSkipped(t *testing.T) {
	w := NewWarmer(2, 600, 0.01, nil)

	observeEligible(w, "bad", "chat", 100) // ranked first
	observeEligible(w, "good", "chat", 0.05)

	var refreshed []string
	w.RunOnce(context.Background(),
		func(string) bool { return false },
		func(ctx context.Context, q *WarmingQuery) error {
			if q.Key == "bad" {
				return fmt.Errorf("producer unavailable")
			}
			refreshed = append(refreshed, q.Key)
			return nil
		})

	if len(refreshed) != 1 || refreshed[0] != "good" {
		t.Errorf("expected the fallback candidate refreshed, got %v", refreshed)
	}
}

// TestWarmer_Forget tests candidate removal after invalidation.
func TestWarmer_Forget(t *testing.T) {
	w := NewWarmer(5, 600, 0.01, nil)

	observeEligible(w, "hot", "chat", 0.05)
	w.Forget("hot")

	if queue := w.Queue(); len(queue) != 0 {
		t.Errorf("expected empty queue after Forget, got %v", queue)
	}
}

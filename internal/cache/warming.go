package cache

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/gencache/gencache/pkg/types"
)

// Producer computes a value for (operation, params). Producers are supplied
// by the caller; the engine never retries them and imposes no timeout of its
// own.
type Producer func(ctx context.Context, operation string, params any) (any, error)

// Warming candidate discovery thresholds: an operation becomes a refresh
// candidate once it has accumulated at least minHits hits across at least
// minWrites distinct cache writes.
const (
	warmingMinHits     = 3
	warmingMinWrites   = 2
	warmingMaxPriority = 10
)

// WarmingQuery is one proactive-refresh candidate. Candidates are created
// and updated opportunistically on every Set and re-ranked each warming
// cycle; they are never persisted.
type WarmingQuery struct {
	Key       string
	Operation string
	Params    any
	Priority  float64
	Frequency int64
	Cost      float64

	writes  int64
	maxHits int64
}

func (q *WarmingQuery) eligible() bool {
	return q.maxHits >= warmingMinHits && q.writes >= warmingMinWrites
}

// Warmer discovers frequently and expensively recomputed operations and
// refreshes them ahead of expiry through an external producer. It is
// advisory: it reduces cold-start latency and cost but never blocks Get or
// Set, and a missing producer disables it entirely.
type Warmer struct {
	mu         sync.Mutex
	candidates map[string]*WarmingQuery

	batchSize     int
	costThreshold float64
	limiter       *rate.Limiter
	logger        *slog.Logger
}

// NewWarmer creates a warming scheduler refreshing at most batchSize entries
// per cycle. refreshesPerMinute bounds producer invocations across cycles to
// avoid thundering-herd cost spikes.
func NewWarmer(batchSize int, refreshesPerMinute float64, costThreshold float64, logger *slog.Logger) *Warmer {
	if batchSize <= 0 {
		batchSize = 5
	}
	if refreshesPerMinute <= 0 {
		refreshesPerMinute = 60
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Warmer{
		candidates:    make(map[string]*WarmingQuery),
		batchSize:     batchSize,
		costThreshold: costThreshold,
		limiter:       rate.NewLimiter(rate.Limit(refreshesPerMinute/60), batchSize),
		logger:        logger,
	}
}

// Observe records a cache write for candidate discovery. priorHits is the
// hit count the key had accumulated before this write.
func (w *Warmer) Observe(key, operation string, params any, cost float64, priorHits int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	q, ok := w.candidates[key]
	if !ok {
		q = &WarmingQuery{Key: key, Operation: operation}
		w.candidates[key] = q
	}
	q.Params = params
	q.Cost = cost
	q.writes++
	q.Frequency = q.writes
	if priorHits > q.maxHits {
		q.maxHits = priorHits
	}

	if w.costThreshold > 0 {
		q.Priority = math.Min(cost/w.costThreshold, warmingMaxPriority)
	}
}

// Forget drops the candidate for key, e.g. after tag invalidation.
func (w *Warmer) Forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.candidates, key)
}

// RunOnce re-ranks candidates by priority*frequency and refreshes the top
// batch that is not already cached. Refresh failures are logged and never
// propagate.
func (w *Warmer) RunOnce(ctx context.Context, cached func(key string) bool, refresh func(ctx context.Context, q *WarmingQuery) error) {
	batch := w.rank()

	refreshed := 0
	for _, q := range batch {
		if refreshed >= w.batchSize {
			break
		}
		if cached(q.Key) {
			continue
		}
		if !w.limiter.Allow() {
			w.logger.Debug("warming budget exhausted for this cycle", "pending", len(batch)-refreshed)
			break
		}
		if err := refresh(ctx, q); err != nil {
			w.logger.Warn("cache warming refresh failed",
				"operation", q.Operation, "key", q.Key, "error", err)
			continue
		}
		refreshed++
		w.logger.Debug("warmed cache entry", "operation", q.Operation, "key", q.Key)
	}
}

// rank returns eligible candidates ordered by descending priority*frequency.
func (w *Warmer) rank() []*WarmingQuery {
	w.mu.Lock()
	defer w.mu.Unlock()

	ranked := make([]*WarmingQuery, 0, len(w.candidates))
	for _, q := range w.candidates {
		if q.eligible() {
			ranked = append(ranked, q)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority*float64(ranked[i].Frequency) > ranked[j].Priority*float64(ranked[j].Frequency)
	})
	return ranked
}

// Queue reports the current eligible candidates for diagnostics.
func (w *Warmer) Queue() []types.WarmingCandidate {
	ranked := w.rank()
	out := make([]types.WarmingCandidate, 0, len(ranked))
	for _, q := range ranked {
		out = append(out, types.WarmingCandidate{
			Operation: q.Operation,
			Priority:  q.Priority,
			Frequency: q.Frequency,
		})
	}
	return out
}

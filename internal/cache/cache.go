package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gencache/gencache/internal/cluster"
	"github.com/gencache/gencache/pkg/errors"
	"github.com/gencache/gencache/pkg/types"
)

// Config represents cache engine configuration.
type Config struct {
	// MaxEntries caps the number of resident entries (0 = unbounded).
	MaxEntries int `yaml:"max_entries"`

	// DefaultTTL is the base lifetime the adaptive policy scales.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// CostThreshold normalizes declared production cost in the TTL and
	// popularity formulas.
	CostThreshold float64 `yaml:"cost_threshold"`

	// PopularityThreshold is the hit count above which an entry earns the
	// popularity TTL bonus.
	PopularityThreshold int64 `yaml:"popularity_threshold"`

	// MemoryLimitMB is the byte budget in megabytes (0 = unbounded).
	MemoryLimitMB int64 `yaml:"memory_limit_mb"`

	// EvictionStrategy selects the retention ordering:
	// lru, lfu, cost-aware, or popularity.
	EvictionStrategy string `yaml:"eviction_strategy"`

	EnableClustering bool     `yaml:"enable_clustering"`
	ClusterNodes     []string `yaml:"cluster_nodes"`

	EnableAnalytics bool `yaml:"enable_analytics"`

	// CompressionEnabled makes size estimation reflect gzip-encoded
	// payloads. This changes the estimate, not correctness.
	CompressionEnabled bool `yaml:"compression_enabled"`

	// OperationTTLMultipliers scales lifetimes per operation class.
	OperationTTLMultipliers map[string]float64 `yaml:"operation_ttl_multipliers"`

	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	MonitorInterval time.Duration `yaml:"monitor_interval"`

	WarmingInterval time.Duration `yaml:"warming_interval"`
	WarmingBatch    int           `yaml:"warming_batch"`
	// WarmingRefreshRate bounds producer refreshes per minute.
	WarmingRefreshRate float64 `yaml:"warming_refresh_rate"`

	Cluster cluster.Config `yaml:"cluster_sync"`
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxEntries:          1000,
		DefaultTTL:          5 * time.Minute,
		CostThreshold:       0.01,
		PopularityThreshold: 10,
		MemoryLimitMB:       100,
		EvictionStrategy:    StrategyPopularity,
		EnableAnalytics:     true,
		OperationTTLMultipliers: map[string]float64{
			"embeddings": 10,
			"chat":       0.5,
			"realtime":   0.1,
		},
		CleanupInterval:    time.Minute,
		MonitorInterval:    30 * time.Second,
		WarmingInterval:    time.Hour,
		WarmingBatch:       5,
		WarmingRefreshRate: 12,
	}
}

// applyDefaults fills zero-valued fields so partially specified
// configurations behave like the reference one.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = d.DefaultTTL
	}
	if c.CostThreshold <= 0 {
		c.CostThreshold = d.CostThreshold
	}
	if c.PopularityThreshold <= 0 {
		c.PopularityThreshold = d.PopularityThreshold
	}
	if c.EvictionStrategy == "" {
		c.EvictionStrategy = d.EvictionStrategy
	}
	if c.OperationTTLMultipliers == nil {
		c.OperationTTLMultipliers = d.OperationTTLMultipliers
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = d.MonitorInterval
	}
	if c.WarmingInterval <= 0 {
		c.WarmingInterval = d.WarmingInterval
	}
	if c.WarmingBatch <= 0 {
		c.WarmingBatch = d.WarmingBatch
	}
	if c.WarmingRefreshRate <= 0 {
		c.WarmingRefreshRate = d.WarmingRefreshRate
	}
}

// SetOptions carries per-write metadata.
type SetOptions struct {
	// TTL overrides the adaptive lifetime when positive.
	TTL time.Duration
	// Cost is the caller-declared economic cost of producing the value.
	Cost float64
	// Tags label the entry for bulk invalidation.
	Tags []string
}

// Cache is the adaptive generation cache. Construct one per process at
// startup and hand references to call sites; tests construct isolated
// instances.
type Cache struct {
	config    *Config
	policy    *TTLPolicy
	store     *Store
	analytics *Analytics
	warmer    *Warmer
	cluster   *cluster.Manager

	metrics   Metrics
	logger    *slog.Logger
	clock     Clock
	estimate  SizeEstimator
	producer  Producer
	transport cluster.Transport

	flight singleflight.Group

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a cache engine from config. A nil config selects the
// reference defaults.
func New(config *Config, opts ...Option) (*Cache, error) {
	if config == nil {
		config = DefaultConfig()
	}
	config.applyDefaults()

	c := &Cache{
		config:  config,
		logger:  slog.Default(),
		clock:   realClock{},
		metrics: NopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.estimate == nil {
		c.estimate = JSONSizeEstimator(config.CompressionEnabled)
	}

	c.policy = &TTLPolicy{
		BaseTTL:              config.DefaultTTL,
		CostThreshold:        config.CostThreshold,
		PopularityThreshold:  config.PopularityThreshold,
		OperationMultipliers: config.OperationTTLMultipliers,
	}

	strategy, err := NewStrategy(config.EvictionStrategy, c.policy)
	if err != nil {
		return nil, err
	}

	c.analytics = NewAnalytics(config.EnableAnalytics, c.clock)
	c.store = NewStore(config.MemoryLimitMB*1024*1024, config.MaxEntries,
		strategy, c.policy, c.clock, c.logger, c.metrics, c.analytics)
	c.warmer = NewWarmer(config.WarmingBatch, config.WarmingRefreshRate, config.CostThreshold, c.logger)

	c.cluster = cluster.NewManager(config.Cluster, c.transport, c.logger)
	for _, url := range config.ClusterNodes {
		c.cluster.AddNode(url)
	}

	return c, nil
}

// Get returns the cached value for (operation, params), if live.
func (c *Cache) Get(operation string, params any) (any, bool) {
	return c.getByKey(operation, GenerateKey(operation, params))
}

func (c *Cache) getByKey(operation, key string) (any, bool) {
	value, cost, ok := c.store.Get(key)
	if !ok {
		c.analytics.RecordMiss(operation)
		c.metrics.Miss(operation)
		return nil, false
	}
	c.analytics.RecordHit(operation, cost)
	c.metrics.Hit(operation)
	return value, true
}

// Set stores a value under (operation, params). Without an explicit TTL the
// adaptive policy computes one from cost, accumulated hits, and recency.
// Set returns false, with the store unchanged, when the byte budget cannot
// accommodate the entry even after eviction.
func (c *Cache) Set(operation string, params, value any, opts SetOptions) bool {
	return c.setByKey(GenerateKey(operation, params), operation, params, value, opts)
}

func (c *Cache) setByKey(key, operation string, params, value any, opts SetOptions) bool {
	now := c.clock.Now()

	priorHits, lastAccess, existed := c.store.Peek(key)
	if !existed {
		lastAccess = now
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.policy.Compute(operation, opts.Cost, priorHits, lastAccess, now)
	}

	e := &Entry{
		Operation:  operation,
		Value:      value,
		Timestamp:  now,
		TTL:        ttl,
		Cost:       opts.Cost,
		Tags:       opts.Tags,
		LastAccess: now,
		Size:       c.estimate(value),
	}
	e.PopularityScore = c.policy.PopularityScore(priorHits, opts.Cost, now, now)

	if !c.store.Set(key, e) {
		return false
	}

	c.analytics.RecordSet(operation, opts.Cost)
	c.analytics.ObserveMemory(c.store.MemoryUsage())
	c.metrics.SetMemoryUsage(c.store.MemoryUsage())
	c.metrics.SetEntryCount(c.store.Len())
	c.warmer.Observe(key, operation, params, opts.Cost, priorHits)
	return true
}

// Has reports liveness without touching hit or access statistics.
func (c *Cache) Has(operation string, params any) bool {
	return c.store.Has(GenerateKey(operation, params))
}

// ClearByTag removes every entry labeled with tag and returns how many were
// removed.
func (c *Cache) ClearByTag(tag string) int {
	keys, cost := c.store.ClearByTag(tag)
	for _, key := range keys {
		c.warmer.Forget(key)
	}
	c.analytics.RecordInvalidation(len(keys), cost)
	if len(keys) > 0 {
		c.logger.Debug("cleared cache entries by tag", "tag", tag, "count", len(keys), "cost", cost)
		c.metrics.SetMemoryUsage(c.store.MemoryUsage())
		c.metrics.SetEntryCount(c.store.Len())
	}
	return len(keys)
}

// Clear empties the store. Historical analytics survive a flush.
func (c *Cache) Clear() {
	c.store.Clear()
	c.metrics.SetMemoryUsage(0)
	c.metrics.SetEntryCount(0)
}

// WithCache wraps a producer into a memoizing function. On a miss the
// producer runs (coalesced across concurrent callers for the same key) and
// its result is stored only on success; producer errors propagate to the
// caller unmodified and are never cached.
func (c *Cache) WithCache(operation string, producer Producer, opts SetOptions) func(ctx context.Context, params any) (any, error) {
	return func(ctx context.Context, params any) (any, error) {
		key := GenerateKey(operation, params)
		if value, ok := c.getByKey(operation, key); ok {
			return value, nil
		}

		value, err, _ := c.flight.Do(key, func() (any, error) {
			start := c.clock.Now()
			produced, perr := producer(ctx, operation, params)
			if perr != nil {
				return nil, perr
			}

			elapsed := c.clock.Now().Sub(start)
			c.analytics.RecordResponseTime(operation, elapsed)
			c.metrics.ObserveProducer(operation, elapsed)

			c.setByKey(key, operation, params, produced, opts)
			return produced, nil
		})
		return value, err
	}
}

// AdvancedStats assembles the full analytics view. TTL distribution and top
// entries are computed on demand from the live entry table.
func (c *Cache) AdvancedStats() types.AdvancedStats {
	stats := c.analytics.Report()

	now := c.clock.Now()
	snap := c.store.Snapshot()
	stats.Entries = len(snap)
	stats.MemoryUsage = c.store.MemoryUsage()
	stats.MemoryLimit = c.store.MemoryLimit()
	if stats.MemoryLimit > 0 {
		stats.Utilization = float64(stats.MemoryUsage) / float64(stats.MemoryLimit)
	}
	stats.TTL = TTLDistributionOf(snap, now)
	stats.TopEntries = TopEntries(snap, now, 10)
	return stats
}

// WarmingQueue reports the current proactive-refresh candidates.
func (c *Cache) WarmingQueue() []types.WarmingCandidate {
	return c.warmer.Queue()
}

// Export serializes all live entries into a snapshot.
func (c *Cache) Export() ([]byte, error) {
	return encodeSnapshot(c.store.Snapshot(), c.clock.Now(), c.config.CompressionEnabled)
}

// Import restores entries from a snapshot, skipping entries that expired at
// rest or are individually corrupt. It returns how many entries were
// restored.
func (c *Cache) Import(data []byte) (int, error) {
	now := c.clock.Now()
	entries, skipped, err := decodeSnapshot(data, now)
	if err != nil {
		return 0, err
	}

	restored := 0
	for key, e := range entries {
		e.Size = c.estimate(e.Value)
		e.PopularityScore = c.policy.PopularityScore(e.Hits, e.Cost, e.LastAccess, now)
		if c.store.Set(key, e) {
			restored++
		}
	}

	if skipped > 0 {
		c.logger.Debug("skipped snapshot entries during import", "count", skipped)
	}
	c.metrics.SetMemoryUsage(c.store.MemoryUsage())
	c.metrics.SetEntryCount(c.store.Len())
	return restored, nil
}

// AddClusterNode registers a peer cache node and returns its ID.
func (c *Cache) AddClusterNode(url string) string {
	return c.cluster.AddNode(url)
}

// RemoveClusterNode unregisters a peer by ID.
func (c *Cache) RemoveClusterNode(id string) bool {
	return c.cluster.RemoveNode(id)
}

// ClusterStatus reports all registered peers.
func (c *Cache) ClusterStatus() []cluster.Node {
	return c.cluster.Nodes()
}

// Start launches the background tasks: expired-entry cleanup, the memory
// monitor, the warming scheduler (when a producer is configured), and
// cluster sync (when clustering is enabled).
func (c *Cache) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return errors.New(errors.ErrCodeAlreadyStarted, "cache already started").
			WithComponent("cache")
	}

	if c.config.EnableClustering {
		if err := c.cluster.Start(); err != nil {
			return err
		}
	}

	c.started = true
	c.stopCh = make(chan struct{})

	c.wg.Add(2)
	go c.cleanupLoop()
	go c.monitorLoop()

	if c.producer != nil {
		c.wg.Add(1)
		go c.warmingLoop()
	}

	c.logger.Info("cache started",
		"strategy", c.config.EvictionStrategy,
		"memory_limit_mb", c.config.MemoryLimitMB,
		"clustering", c.config.EnableClustering)
	return nil
}

// Stop halts all background tasks deterministically and waits for them to
// exit. Cached entries remain readable after Stop.
func (c *Cache) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
	if c.config.EnableClustering {
		c.cluster.Stop()
	}
	c.logger.Info("cache stopped")
}

func (c *Cache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if removed := c.store.RemoveExpired(); removed > 0 {
				c.logger.Debug("removed expired cache entries", "count", removed)
			}
		}
	}
}

func (c *Cache) monitorLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.store.EvictIfNeeded()
			usage := c.store.MemoryUsage()
			c.analytics.ObserveMemory(usage)
			c.metrics.SetMemoryUsage(usage)
			c.metrics.SetEntryCount(c.store.Len())
		}
	}
}

func (c *Cache) warmingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.WarmingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.warmer.RunOnce(context.Background(), c.store.Has, c.refreshQuery)
		}
	}
}

// refreshQuery recomputes one warming candidate through the external
// producer and stores the fresh value.
func (c *Cache) refreshQuery(ctx context.Context, q *WarmingQuery) error {
	start := c.clock.Now()
	value, err := c.producer(ctx, q.Operation, q.Params)
	if err != nil {
		return err
	}

	elapsed := c.clock.Now().Sub(start)
	c.analytics.RecordResponseTime(q.Operation, elapsed)
	c.metrics.ObserveProducer(q.Operation, elapsed)

	c.setByKey(q.Key, q.Operation, q.Params, value, SetOptions{Cost: q.Cost})
	return nil
}

// Package metrics exports cache engine events as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config represents metrics configuration.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// Collector implements the engine's Metrics interface on a private
// Prometheus registry. All Prometheus metric types are goroutine-safe.
type Collector struct {
	registry *prometheus.Registry

	hits             *prometheus.CounterVec
	misses           *prometheus.CounterVec
	evictions        *prometheus.CounterVec
	expired          prometheus.Counter
	memoryUsage      prometheus.Gauge
	entryCount       prometheus.Gauge
	producerDuration *prometheus.HistogramVec
}

// NewCollector creates and registers the engine metrics.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{Enabled: true, Namespace: "gencache"}
	}
	if config.Namespace == "" {
		config.Namespace = "gencache"
	}

	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "hits_total",
			Help:      "Cache hits by operation",
		}, []string{"operation"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "misses_total",
			Help:      "Cache misses by operation",
		}, []string{"operation"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "evictions_total",
			Help:      "Forced evictions by reason",
		}, []string{"reason"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "expired_total",
			Help:      "Entries removed after TTL elapsed",
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "memory_usage_bytes",
			Help:      "Estimated resident byte size of all entries",
		}),
		entryCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "entries",
			Help:      "Number of resident entries",
		}),
		producerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "producer_duration_seconds",
			Help:      "Duration of producer invocations on cache miss",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		}, []string{"operation"}),
	}

	collectors := []prometheus.Collector{
		c.hits, c.misses, c.evictions, c.expired,
		c.memoryUsage, c.entryCount, c.producerDuration,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Hit increments the hit counter for operation.
func (c *Collector) Hit(operation string) {
	c.hits.WithLabelValues(operation).Inc()
}

// Miss increments the miss counter for operation.
func (c *Collector) Miss(operation string) {
	c.misses.WithLabelValues(operation).Inc()
}

// Eviction increments the eviction counter with the strategy name as reason.
func (c *Collector) Eviction(reason string) {
	c.evictions.WithLabelValues(reason).Inc()
}

// Expired adds removed-after-TTL entries.
func (c *Collector) Expired(count int) {
	c.expired.Add(float64(count))
}

// SetMemoryUsage updates the resident byte gauge.
func (c *Collector) SetMemoryUsage(bytes int64) {
	c.memoryUsage.Set(float64(bytes))
}

// SetEntryCount updates the resident entry gauge.
func (c *Collector) SetEntryCount(count int) {
	c.entryCount.Set(float64(count))
}

// ObserveProducer records one producer invocation duration.
func (c *Collector) ObserveProducer(operation string, d time.Duration) {
	c.producerDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Handler returns an HTTP handler serving the registry in Prometheus
// exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry exposes the private registry for callers embedding these metrics
// into a larger exporter.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

package cache

import (
	"log/slog"

	"github.com/gencache/gencache/internal/cluster"
)

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithLogger sets the structured logger used by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock injects the time source, for deterministic expiry in tests.
func WithClock(clock Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetrics attaches an operational metrics sink such as the Prometheus
// collector.
func WithMetrics(m Metrics) Option {
	return func(c *Cache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSizeEstimator overrides the reflective size estimation for stored
// values.
func WithSizeEstimator(estimate SizeEstimator) Option {
	return func(c *Cache) {
		if estimate != nil {
			c.estimate = estimate
		}
	}
}

// WithTransport supplies the cluster liveness transport. The default is a
// simulated loopback that exchanges no data.
func WithTransport(t cluster.Transport) Option {
	return func(c *Cache) {
		c.transport = t
	}
}

// WithWarmingProducer supplies the producer used to proactively refresh hot
// entries. Without one, the warming scheduler stays idle.
func WithWarmingProducer(p Producer) Option {
	return func(c *Cache) {
		c.producer = p
	}
}

package cache

import "time"

// Metrics receives engine events for operational monitoring. Implementations
// must be safe for concurrent use. The engine works against this interface so
// the exporter (Prometheus in production, a fake in tests) stays pluggable.
type Metrics interface {
	Hit(operation string)
	Miss(operation string)
	Eviction(reason string)
	Expired(count int)
	SetMemoryUsage(bytes int64)
	SetEntryCount(count int)
	ObserveProducer(operation string, d time.Duration)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) Hit(string)                            {}
func (NopMetrics) Miss(string)                           {}
func (NopMetrics) Eviction(string)                       {}
func (NopMetrics) Expired(int)                           {}
func (NopMetrics) SetMemoryUsage(int64)                  {}
func (NopMetrics) SetEntryCount(int)                     {}
func (NopMetrics) ObserveProducer(string, time.Duration) {}

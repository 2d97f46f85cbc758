// Package cache implements an adaptive in-memory cache for expensive,
// costed generation artifacts (completions, templates, embeddings).
//
// The engine memoizes values produced by caller-supplied producer functions
// and decides what to keep under a byte budget using pluggable eviction
// strategies. Entry lifetimes are computed adaptively from production cost,
// hit popularity, access recency, and operation class, so artifacts that are
// expensive to regenerate survive longer than cheap or fast-changing ones.
//
// A Cache owns four background tasks, driven by Start/Stop: removal of
// expired entries, a memory monitor that triggers eviction, a warming
// scheduler that proactively refreshes hot entries before expiry, and a
// best-effort cluster liveness sync. All hot-path operations (Get, Set, Has,
// ClearByTag) are synchronous and never block on network I/O; slow work
// belongs to the producer, outside the cache boundary.
package cache

package cache

import (
	"fmt"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// Entry is one cached value plus its retention metadata. Entries are owned
// exclusively by the Store; other components read them through copies and
// request deletion through the Store's API.
type Entry struct {
	Operation string
	Value     any

	Timestamp  time.Time
	TTL        time.Duration
	Hits       int64
	Cost       float64
	Tags       []string
	LastAccess time.Time
	Size       int64

	// PopularityScore is derived; recomputed on every read and on write.
	PopularityScore float64
}

// Live reports whether the entry is within its lifetime at now. A stale
// entry is logically gone even if it still occupies storage until the next
// cleanup pass.
func (e *Entry) Live(now time.Time) bool {
	return now.Sub(e.Timestamp) < e.TTL
}

// HasTag reports whether the entry carries the given invalidation tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SizeEstimator computes the approximate resident byte size of a value.
// Estimation is approximate by design; the budget bounds memory in aggregate,
// not byte-for-byte.
type SizeEstimator func(value any) int64

// JSONSizeEstimator estimates size from the serialized form of the value.
// With compress set, the size reflects the gzip-encoded payload, matching
// stores that compress payloads at rest.
func JSONSizeEstimator(compress bool) SizeEstimator {
	return func(value any) int64 {
		raw, err := gojson.Marshal(value)
		if err != nil {
			return int64(len(fmt.Sprintf("%v", value)))
		}
		if !compress {
			return int64(len(raw))
		}

		var cw countingWriter
		zw := gzip.NewWriter(&cw)
		if _, err := zw.Write(raw); err != nil {
			return int64(len(raw))
		}
		if err := zw.Close(); err != nil {
			return int64(len(raw))
		}
		return cw.n
	}
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

package cache

import (
	"bytes"
	"io"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/gencache/gencache/pkg/errors"
)

// snapshotVersion is stored in the header so future formats can be detected.
const snapshotVersion = 1

// snapshotCodec names the serialization used for entry values, following the
// named-codec convention of persisted formats.
const snapshotCodec = "go-json"

var gzipMagic = []byte{0x1f, 0x8b}

type snapshotEntry struct {
	Key        string             `json:"key"`
	Operation  string             `json:"operation"`
	Value      gojson.RawMessage  `json:"value"`
	Timestamp  time.Time          `json:"timestamp"`
	TTLMillis  int64              `json:"ttl_ms"`
	Hits       int64              `json:"hits"`
	Cost       float64            `json:"cost"`
	Tags       []string           `json:"tags,omitempty"`
	LastAccess time.Time          `json:"last_access"`
}

type snapshot struct {
	Version   int             `json:"version"`
	Codec     string          `json:"codec"`
	CreatedAt time.Time       `json:"created_at"`
	Entries   []snapshotEntry `json:"entries"`
}

// encodeSnapshot serializes the live entries of the given table. Stale
// entries and entries whose values cannot be serialized are omitted.
func encodeSnapshot(table map[string]Entry, now time.Time, compress bool) ([]byte, error) {
	snap := snapshot{
		Version:   snapshotVersion,
		Codec:     snapshotCodec,
		CreatedAt: now,
		Entries:   make([]snapshotEntry, 0, len(table)),
	}

	for key, e := range table {
		if !e.Live(now) {
			continue
		}
		value, err := gojson.Marshal(e.Value)
		if err != nil {
			continue
		}
		snap.Entries = append(snap.Entries, snapshotEntry{
			Key:        key,
			Operation:  e.Operation,
			Value:      value,
			Timestamp:  e.Timestamp,
			TTLMillis:  e.TTL.Milliseconds(),
			Hits:       e.Hits,
			Cost:       e.Cost,
			Tags:       e.Tags,
			LastAccess: e.LastAccess,
		})
	}

	data, err := gojson.Marshal(snap)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotEncode, "failed to encode cache snapshot").
			WithComponent("cache")
	}

	if !compress {
		return data, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotEncode, "failed to compress cache snapshot").
			WithComponent("cache")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotEncode, "failed to compress cache snapshot").
			WithComponent("cache")
	}
	return buf.Bytes(), nil
}

// decodeSnapshot parses a snapshot, restoring only entries that are still
// live at now. Individually corrupt entries are skipped and counted; only a
// snapshot that cannot be parsed at all is an error.
func decodeSnapshot(data []byte, now time.Time) (entries map[string]*Entry, skipped int, err error) {
	if bytes.HasPrefix(data, gzipMagic) {
		zr, zerr := gzip.NewReader(bytes.NewReader(data))
		if zerr != nil {
			return nil, 0, errors.Wrap(zerr, errors.ErrCodeSnapshotDecode, "failed to decompress cache snapshot").
				WithComponent("cache")
		}
		defer func() { _ = zr.Close() }()

		data, zerr = io.ReadAll(zr)
		if zerr != nil {
			return nil, 0, errors.Wrap(zerr, errors.ErrCodeSnapshotDecode, "failed to decompress cache snapshot").
				WithComponent("cache")
		}
	}

	var snap snapshot
	if uerr := gojson.Unmarshal(data, &snap); uerr != nil {
		return nil, 0, errors.Wrap(uerr, errors.ErrCodeSnapshotDecode, "failed to decode cache snapshot").
			WithComponent("cache")
	}
	if snap.Version != snapshotVersion {
		return nil, 0, errors.Newf(errors.ErrCodeSnapshotVersion, "unsupported snapshot version %d", snap.Version).
			WithComponent("cache")
	}

	entries = make(map[string]*Entry, len(snap.Entries))
	for _, se := range snap.Entries {
		if se.Key == "" || se.TTLMillis <= 0 {
			skipped++
			continue
		}

		ttl := time.Duration(se.TTLMillis) * time.Millisecond
		if now.Sub(se.Timestamp) >= ttl {
			// Expired while the snapshot was at rest.
			skipped++
			continue
		}

		var value any
		if uerr := gojson.Unmarshal(se.Value, &value); uerr != nil {
			skipped++
			continue
		}

		entries[se.Key] = &Entry{
			Operation:  se.Operation,
			Value:      value,
			Timestamp:  se.Timestamp,
			TTL:        ttl,
			Hits:       se.Hits,
			Cost:       se.Cost,
			Tags:       se.Tags,
			LastAccess: se.LastAccess,
		}
	}
	return entries, skipped, nil
}

package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	gojson "github.com/goccy/go-json"
)

// GenerateKey returns the canonical cache key for (operation, params).
//
// Params are serialized to JSON and re-rendered with recursively sorted
// object keys, so semantically identical structures yield the same key
// regardless of field order. The key is the hex SHA-256 digest of the
// canonical form. The function is pure: no validation is performed and
// arbitrary parameter shapes are accepted.
func GenerateKey(operation string, params any) string {
	var buf bytes.Buffer
	buf.WriteString(operation)
	buf.WriteByte(0)

	raw, err := gojson.Marshal(params)
	if err != nil {
		// Unserializable params still get a deterministic key.
		buf.WriteString(fmt.Sprintf("%#v", params))
	} else {
		var v any
		if err := gojson.Unmarshal(raw, &v); err != nil {
			buf.Write(raw)
		} else {
			writeCanonical(&buf, v)
		}
	}

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// writeCanonical renders v as JSON with object keys in sorted order.
func writeCanonical(buf *bytes.Buffer, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := gojson.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			writeCanonical(buf, t[k])
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, e)
		}
		buf.WriteByte(']')
	default:
		b, err := gojson.Marshal(t)
		if err != nil {
			buf.WriteString(fmt.Sprintf("%v", t))
			return
		}
		buf.Write(b)
	}
}

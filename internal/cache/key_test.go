package cache

import (
	"strings"
	"testing"
)

// TestGenerateKey_FieldOrderIndependent tests that semantically identical
// parameter structures produce the same key regardless of field order.
func TestGenerateKey_FieldOrderIndependent(t *testing.T) {
	type ab struct {
		A string `json:"a"`
		B int    `json:"b"`
	}
	type ba struct {
		B int    `json:"b"`
		A string `json:"a"`
	}

	k1 := GenerateKey("embeddings", ab{A: "hello", B: 7})
	k2 := GenerateKey("embeddings", ba{B: 7, A: "hello"})
	if k1 != k2 {
		t.Errorf("expected identical keys for reordered fields, got %s vs %s", k1, k2)
	}
}

// TestGenerateKey_NestedCanonicalization tests key stability for nested maps.
func TestGenerateKey_NestedCanonicalization(t *testing.T) {
	p1 := map[string]any{
		"model": "large",
		"opts":  map[string]any{"temp": 0.7, "top_p": 0.9},
		"input": []any{"a", "b"},
	}
	p2 := map[string]any{
		"input": []any{"a", "b"},
		"opts":  map[string]any{"top_p": 0.9, "temp": 0.7},
		"model": "large",
	}

	if k1, k2 := GenerateKey("chat", p1), GenerateKey("chat", p2); k1 != k2 {
		t.Errorf("expected identical keys for equal nested params, got %s vs %s", k1, k2)
	}
}

// TestGenerateKey_Distinguishes tests that operation and params both
// contribute to the key.
func TestGenerateKey_Distinguishes(t *testing.T) {
	params := map[string]any{"q": "hello"}

	if GenerateKey("chat", params) == GenerateKey("embeddings", params) {
		t.Error("different operations produced the same key")
	}
	if GenerateKey("chat", params) == GenerateKey("chat", map[string]any{"q": "goodbye"}) {
		t.Error("different params produced the same key")
	}
}

// TestGenerateKey_ArrayOrderSignificant tests that array element order is
// preserved, not sorted.
func TestGenerateKey_ArrayOrderSignificant(t *testing.T) {
	k1 := GenerateKey("batch", []string{"a", "b"})
	k2 := GenerateKey("batch", []string{"b", "a"})
	if k1 == k2 {
		t.Error("expected different keys for differently ordered arrays")
	}
}

// TestGenerateKey_Deterministic tests key shape and repeatability, including
// values JSON cannot serialize.
func TestGenerateKey_Deterministic(t *testing.T) {
	tests := []struct {
		name   string
		params any
	}{
		{"nil params", nil},
		{"string params", "raw prompt"},
		{"numeric params", 42},
		{"unserializable params", func() {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k1 := GenerateKey("op", tt.params)
			k2 := GenerateKey("op", tt.params)
			if k1 != k2 {
				t.Errorf("key not deterministic: %s vs %s", k1, k2)
			}
			if len(k1) != 64 || strings.ToLower(k1) != k1 {
				t.Errorf("expected lowercase hex sha256 key, got %q", k1)
			}
		})
	}
}

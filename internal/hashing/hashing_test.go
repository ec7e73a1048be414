package hashing

import "testing"

type orderedA struct {
	B      int            `json:"b"`
	A      int            `json:"a"`
	Nested map[string]any `json:"nested"`
}

func TestCanonicalJSONHashKeyOrderInvariant(t *testing.T) {
	a := map[string]any{
		"b": 2,
		"a": 1,
		"nested": map[string]any{
			"z": 1,
			"y": []int{3, 2, 1},
		},
	}
	b := map[string]any{
		"nested": map[string]any{
			"y": []int{3, 2, 1},
			"z": 1,
		},
		"a": 1,
		"b": 2,
	}

	ha, err := CanonicalJSONHash(a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	hb, err := CanonicalJSONHash(b)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if ha != hb {
		t.Errorf("hashes differ for structurally equal maps: %s vs %s", ha, hb)
	}
}

func TestCanonicalJSONHashStructMatchesMap(t *testing.T) {
	s := orderedA{B: 2, A: 1, Nested: map[string]any{"z": 1, "y": []int{3, 2, 1}}}
	m := map[string]any{"a": 1, "b": 2, "nested": map[string]any{"y": []int{3, 2, 1}, "z": 1}}

	hs, err := CanonicalJSONHash(s)
	if err != nil {
		t.Fatalf("hash struct: %v", err)
	}
	hm, err := CanonicalJSONHash(m)
	if err != nil {
		t.Fatalf("hash map: %v", err)
	}
	if hs != hm {
		t.Errorf("struct and map with same fields hash differently: %s vs %s", hs, hm)
	}
}

func TestCanonicalJSONHashDistinguishesValues(t *testing.T) {
	h1, err := CanonicalJSONHash(map[string]any{"qty": 10})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := CanonicalJSONHash(map[string]any{"qty": 11})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == h2 {
		t.Error("different payloads must not collide")
	}
}

package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalJSONHash returns the SHA-256 hex digest of the canonical JSON
// form of v: object keys sorted, no insignificant whitespace. Two
// structurally equal values hash identically regardless of field or map
// insertion order, which is what lets a trade be bound to the exact
// evidence and decision that justified it.
func CanonicalJSONHash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("hashing: marshal: %w", err)
	}
	// Round-trip through an untyped value so struct field order collapses
	// to sorted map keys.
	var norm any
	if err := json.Unmarshal(raw, &norm); err != nil {
		return "", fmt.Errorf("hashing: normalize: %w", err)
	}
	canonical, err := json.Marshal(norm)
	if err != nil {
		return "", fmt.Errorf("hashing: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

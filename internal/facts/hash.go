// Package facts mines reusable organization and project statements from the
// ingested bundle: a cheap metadata pass over provenance, plus a model-backed
// slot extraction pass with evidence verification.
package facts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// ContentHash derives the dedup key for a fact. Key order is fixed by
// encoding a struct, so the same slot/value pair always hashes identically
// regardless of where it was mined.
func ContentHash(kind, slot, value string) string {
	payload, _ := json.Marshal(struct {
		Kind  string `json:"kind"`
		Slot  string `json:"slot"`
		Value string `json:"value"`
	}{
		Kind:  kind,
		Slot:  strings.ToLower(strings.TrimSpace(slot)),
		Value: strings.TrimSpace(value),
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
